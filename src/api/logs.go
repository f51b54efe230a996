package api

import (
	"fmt"
	"net/http"
)

// StreamLogs 实时推送日志，客户端断开时取消订阅
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	logChan := h.logger.Subscribe()
	defer h.logger.Unsubscribe(logChan)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 写入失败说明客户端已断开
			if _, err := fmt.Fprintln(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
