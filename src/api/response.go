package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

func BadRequestResponse(msg string) *APIResponse {
	return &APIResponse{Status: http.StatusBadRequest, Msg: msg}
}

func NotFoundResponse(msg string) *APIResponse {
	return &APIResponse{Status: http.StatusNotFound, Msg: msg}
}

func UnavailableResponse(msg string) *APIResponse {
	return &APIResponse{Status: http.StatusServiceUnavailable, Msg: msg}
}

func InternalErrorResponse(msg string) *APIResponse {
	return &APIResponse{Status: http.StatusInternalServerError, Msg: msg}
}

// write 非 0 状态同时作为 HTTP 状态码
func write(w http.ResponseWriter, r *http.Request, resp *APIResponse) {
	if resp.Status != 0 {
		render.Status(r, resp.Status)
	}
	render.JSON(w, r, resp)
}
