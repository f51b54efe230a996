package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/report"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/session"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/storage"
)

var (
	ErrUnknownChart    = errors.New("unknown chart")
	ErrUnknownVariable = errors.New("unknown variable")
)

// 查询参数的默认值与上限
const (
	defaultPreviewRows = 10
	maxPreviewRows     = 100
	defaultTripLimit   = 15
	maxTripLimit       = 1000
	defaultHistMax     = 120
	defaultHistBins    = 40
	maxHistBins        = 200
)

// ChartNames 可用的图表
var ChartNames = []string{"hour", "vehicle-user", "day-slot", "day-user", "hour-user"}

// charts 图表名 -> 汇总函数
var charts = map[string]func([]processor.CleanedTrip) interface{}{
	"hour":         func(t []processor.CleanedTrip) interface{} { return report.CountByHour(t) },
	"vehicle-user": func(t []processor.CleanedTrip) interface{} { return report.CountVehicleUser(t) },
	"day-slot":     func(t []processor.CleanedTrip) interface{} { return report.DayBucketCounts(t) },
	"day-user":     func(t []processor.CleanedTrip) interface{} { return report.CountDayUser(t) },
	"hour-user":    func(t []processor.CleanedTrip) interface{} { return report.CountHourUser(t) },
}

// ChartData 按名称计算图表数据
func ChartData(name string, trips []processor.CleanedTrip) (interface{}, error) {
	fn, ok := charts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, name)
	}
	if len(trips) == 0 {
		return nil, report.ErrNoData
	}
	return fn(trips), nil
}

// VariableSummary 按派生变量名计算描述统计
func VariableSummary(name string, trips []processor.CleanedTrip) (interface{}, error) {
	switch name {
	case processor.ColDuration:
		return report.DescribeDuration(trips)
	case processor.ColStartHour:
		return report.DescribeHour(trips)
	case processor.ColDayOfWeek:
		return report.DescribeDay(trips)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
}

// Handler 数据接口控制器
type Handler struct {
	session *session.Session
	logger  *storage.Logger
	coords  report.CoordinateColumns
}

// Health 健康检查
// @Summary 健康检查
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	write(w, r, SuccessResponse("ok", map[string]interface{}{
		"cache_entries": h.session.Len(),
	}))
}

// Dataset 数据集概况与前几行预览
// @Summary 数据集概况
// @Param rows query int false "预览行数"
// @Router /api/dataset [get]
func (h *Handler) Dataset(w http.ResponseWriter, r *http.Request) {
	rows, err := intParam(r, "rows", defaultPreviewRows, 0, maxPreviewRows)
	if err != nil {
		write(w, r, BadRequestResponse(err.Error()))
		return
	}
	entry, ok := h.current(w, r)
	if !ok {
		return
	}

	if rows > entry.Raw.Nrow() {
		rows = entry.Raw.Nrow()
	}
	preview := [][]string{entry.Raw.Names()}
	if rows > 0 {
		idx := make([]int, rows)
		for i := range idx {
			idx[i] = i
		}
		preview = entry.Raw.Subset(idx).Records()
	}

	write(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"load_id":   entry.ID,
		"path":      entry.Key.Path,
		"loaded_at": entry.LoadedAt.Format(time.DateTime),
		"overview":  report.Overview(entry.Raw, entry.Result),
		"preview":   preview,
	}))
}

// Cleaning 清洗日志与列识别结果
// @Summary 清洗日志
// @Router /api/cleaning [get]
func (h *Handler) Cleaning(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	res := entry.Result
	write(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"load_id":       entry.ID,
		"roles":         res.Roles,
		"missing_roles": res.Roles.Missing(),
		"degraded":      res.Log.Degraded(),
		"log":           res.Log,
	}))
}

// Missing 每列缺失比例
// @Summary 缺失值统计
// @Param table query string false "raw 或 clean"
// @Param top query int false "只返回前 N 列，0 表示全部"
// @Param nonzero query bool false "只返回有缺失的列"
// @Router /api/quality/missing [get]
func (h *Handler) Missing(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 0, 0, 1<<20)
	if err != nil {
		write(w, r, BadRequestResponse(err.Error()))
		return
	}
	nonzero := r.URL.Query().Get("nonzero") == "true"
	table := r.URL.Query().Get("table")
	if table == "" {
		table = "raw"
	}
	if table != "raw" && table != "clean" {
		write(w, r, BadRequestResponse("table 只能是 raw 或 clean"))
		return
	}

	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	df := entry.Raw
	if table == "clean" {
		df = entry.Result.Clean
	}

	cols := report.MissingReport(df)
	if nonzero {
		kept := cols[:0]
		for _, c := range cols {
			if c.Missing > 0 {
				kept = append(kept, c)
			}
		}
		cols = kept
	}
	if top > 0 && top < len(cols) {
		cols = cols[:top]
	}
	write(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"table":   table,
		"rows":    df.Nrow(),
		"columns": cols,
	}))
}

// Duplicates 完全重复行
// @Summary 重复行统计
// @Router /api/quality/duplicates [get]
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	write(w, r, SuccessResponse("查询成功", report.DuplicateReport(entry.Raw)))
}

// Durations 清洗前的时长分布与异常计数
// @Summary 时长分布
// @Param max query number false "展示上限(分钟)"
// @Param bins query int false "分箱数"
// @Router /api/quality/durations [get]
func (h *Handler) Durations(w http.ResponseWriter, r *http.Request) {
	bins, err := intParam(r, "bins", defaultHistBins, 1, maxHistBins)
	if err != nil {
		write(w, r, BadRequestResponse(err.Error()))
		return
	}
	maxShow := float64(defaultHistMax)
	if v := r.URL.Query().Get("max"); v != "" {
		maxShow, err = strconv.ParseFloat(v, 64)
		if err != nil || maxShow <= 0 {
			write(w, r, BadRequestResponse("max 必须是正数"))
			return
		}
	}

	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	hist, err := report.DurationHistogram(entry.RawDurations, maxShow, bins)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log := entry.Result.Log
	write(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"max":  maxShow,
		"bins": hist,
		"outliers": map[string]int{
			"dur_le_0":   log.DurLE0,
			"dur_lt_1":   log.DurLTMin,
			"dur_gt_24h": log.DurGTMax,
		},
	}))
}

// Variable 派生变量的描述统计
// @Summary 派生变量统计
// @Param name path string true "trip_duration_min / start_hour / day_of_week"
// @Router /api/variables/{name} [get]
func (h *Handler) Variable(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	data, err := VariableSummary(chi.URLParam(r, "name"), entry.Result.Trips)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	write(w, r, SuccessResponse("查询成功", data))
}

// Trips 清洗后的行程
// @Summary 清洗后的行程
// @Param limit query int false "返回条数"
// @Router /api/trips [get]
func (h *Handler) Trips(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultTripLimit, 1, maxTripLimit)
	if err != nil {
		write(w, r, BadRequestResponse(err.Error()))
		return
	}
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	trips := entry.Result.Trips
	if limit < len(trips) {
		trips = trips[:limit]
	}
	write(w, r, SuccessResponse("查询成功", map[string]interface{}{
		"total": len(entry.Result.Trips),
		"trips": trips,
	}))
}

// Chart 图表数据
// @Summary 图表数据
// @Param chart path string true "hour / vehicle-user / day-slot / day-user / hour-user"
// @Router /api/charts/{chart} [get]
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	data, err := ChartData(chi.URLParam(r, "chart"), entry.Result.Trips)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	write(w, r, SuccessResponse("查询成功", data))
}

// Distance 起终点直线距离
// @Router /api/distance [get]
func (h *Handler) Distance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	write(w, r, SuccessResponse("查询成功", report.DistanceSummary(entry.Result.Trips, h.coords)))
}

// Reload 丢弃缓存并重新加载数据文件
// @Summary 重新加载
// @Router /api/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	n := h.session.Invalidate(h.session.Path())
	entry, ok := h.current(w, r)
	if !ok {
		return
	}
	write(w, r, SuccessResponse("重新加载成功", map[string]interface{}{
		"load_id":     entry.ID,
		"invalidated": n,
		"log":         entry.Result.Log,
	}))
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*session.Entry, bool) {
	entry, err := h.session.Current()
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return entry, true
}

// fail 把错误映射为响应
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, file.ErrInputFile):
		h.logError(r, err)
		write(w, r, UnavailableResponse("数据文件不可用"))
	case errors.Is(err, report.ErrNoData):
		write(w, r, NotFoundResponse("没有可用数据"))
	case errors.Is(err, ErrUnknownChart), errors.Is(err, ErrUnknownVariable):
		write(w, r, NotFoundResponse(err.Error()))
	default:
		h.logError(r, err)
		write(w, r, InternalErrorResponse("内部错误"))
	}
}

func (h *Handler) logError(r *http.Request, err error) {
	if h.logger == nil {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"path":  r.URL.Path,
		"error": err,
	}).Error("请求处理失败")
}

// intParam 读取整数查询参数，缺省时返回 def
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s 必须是 %d 到 %d 之间的整数", name, lo, hi)
	}
	return n, nil
}
