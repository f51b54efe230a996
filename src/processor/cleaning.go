package processor

import (
	"encoding/json"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/sirupsen/logrus"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/utils"
)

// MissingLabel 站点名缺失时的填充值
const MissingLabel = "Missing"

// Options 清洗规则参数
type Options struct {
	MinDurationMin float64    // 最短时长(分钟)，默认 1
	MaxDurationMin float64    // 最长时长(分钟)，默认 1440
	Aliases        AliasTable // 角色别名
	StationColumns []string   // 需要填充 "Missing" 的站点名列
	GeoColumns     []string   // 到达坐标列，全部存在时才启用地理完整性规则
}

func DefaultOptions() Options {
	return Options{
		MinDurationMin: 1,
		MaxDurationMin: 24 * 60,
		Aliases:        DefaultAliases(),
		StationColumns: []string{"start_station_name", "end_station_name"},
		GeoColumns:     []string{"end_lat", "end_lng"},
	}
}

// CleaningLog 一次清洗的审计记录，生成后不再修改
type CleaningLog struct {
	RawN         int    // 原始行数
	CleanN       int    // 清洗后行数
	DroppedTotal int    // 删除总数
	DroppedGeo   int    // 到达坐标缺失
	IncohTime    int    // 结束早于开始
	DurLE0       int    // 时长 <= 0
	DurLTMin     int    // 0 < 时长 < 最短时长
	DurGTMax     int    // 时长 > 最长时长
	DroppedDur   int    // 时长区间过滤删除数
	StartCol     string // 为空表示未识别(降级模式)
	EndCol       string
}

type cleaningLogJSON struct {
	RawN         int     `json:"raw_n"`
	CleanN       int     `json:"clean_n"`
	DroppedTotal int     `json:"dropped_total"`
	DroppedGeo   int     `json:"dropped_geo"`
	IncohTime    int     `json:"incoh_time"`
	DurLE0       int     `json:"dur_le_0"`
	DurLTMin     int     `json:"dur_lt_1"`
	DurGTMax     int     `json:"dur_gt_24h"`
	DroppedDur   int     `json:"dropped_dur"`
	StartCol     *string `json:"start_col"`
	EndCol       *string `json:"end_col"`
}

func (l CleaningLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(cleaningLogJSON{
		RawN:         l.RawN,
		CleanN:       l.CleanN,
		DroppedTotal: l.DroppedTotal,
		DroppedGeo:   l.DroppedGeo,
		IncohTime:    l.IncohTime,
		DurLE0:       l.DurLE0,
		DurLTMin:     l.DurLTMin,
		DurGTMax:     l.DurGTMax,
		DroppedDur:   l.DroppedDur,
		StartCol:     nullable(l.StartCol),
		EndCol:       nullable(l.EndCol),
	})
}

// Degraded 起止时间列未能全部识别
func (l CleaningLog) Degraded() bool {
	return l.StartCol == "" || l.EndCol == ""
}

// Counters 扁平的计数器映射，供展示层使用
func (l CleaningLog) Counters() map[string]int {
	return map[string]int{
		"raw_n":         l.RawN,
		"clean_n":       l.CleanN,
		"dropped_total": l.DroppedTotal,
		"dropped_geo":   l.DroppedGeo,
		"incoh_time":    l.IncohTime,
		"dur_le_0":      l.DurLE0,
		"dur_lt_1":      l.DurLTMin,
		"dur_gt_24h":    l.DurGTMax,
		"dropped_dur":   l.DroppedDur,
	}
}

// Result 清洗结果
type Result struct {
	Roles RoleMap
	Clean dataframe.DataFrame // 原始列 + trip_duration_min/day_of_week/start_hour
	Trips []CleanedTrip
	Log   CleaningLog
}

// Cleaner 按固定顺序执行清洗规则
type Cleaner struct {
	opts   Options
	logger logrus.FieldLogger
}

func NewCleaner(opts Options, logger logrus.FieldLogger) *Cleaner {
	if opts.Aliases == nil {
		opts.Aliases = DefaultAliases()
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	return &Cleaner{opts: opts, logger: logger}
}

func (c *Cleaner) Options() Options { return c.opts }

// Run 执行清洗:
//  1. 站点名缺失填充 "Missing"
//  2. 到达坐标缺失的行删除
//  3. 结束早于开始的行删除(任一时间无法解析的行不在此处处理)
//  4. 计算时长
//  5. 过滤前统计异常时长
//  6. 只保留 [最短, 最长] 区间内的行
//
// 只有表结构本身有错误时才返回 error，数据问题一律计入日志
func (c *Cleaner) Run(raw dataframe.DataFrame) (*Result, error) {
	if raw.Err != nil {
		return nil, fmt.Errorf("原始数据表无效: %w", raw.Err)
	}

	df := raw.Copy()
	n := df.Nrow()
	roles := ResolveRoles(df.Names(), c.opts.Aliases)
	log := CleaningLog{RawN: n}

	// 时间列规范化
	starts := make([]Timestamp, n)
	ends := make([]Timestamp, n)
	if col, ok := roles.Column(RoleStartTime); ok {
		starts = NormalizeSeries(df.Col(col))
		df = df.Mutate(timestampSeries(starts, col))
		log.StartCol = col
	}
	if col, ok := roles.Column(RoleEndTime); ok {
		ends = NormalizeSeries(df.Col(col))
		df = df.Mutate(timestampSeries(ends, col))
		log.EndCol = col
	}
	if log.Degraded() {
		c.logger.WithField("missing_roles", roles.Missing()).
			Warn("起止时间列未识别，时长全部缺失")
	}

	// 1. 站点名填充
	for _, col := range c.opts.StationColumns {
		if utils.HasColumn(df, col) {
			df = df.Mutate(fillNA(df.Col(col), MissingLabel))
		}
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	// 2. 地理完整性
	if len(c.opts.GeoColumns) > 0 && utils.HasColumns(df, c.opts.GeoColumns...) {
		geo := make([]series.Series, len(c.opts.GeoColumns))
		for i, col := range c.opts.GeoColumns {
			geo[i] = df.Col(col)
		}
		before := len(rows)
		rows = keepRows(rows, func(r int) bool {
			for _, s := range geo {
				if s.Elem(r).IsNA() {
					return false
				}
			}
			return true
		})
		log.DroppedGeo = before - len(rows)
	}
	c.logger.WithFields(logrus.Fields{"rule": "geo", "dropped": log.DroppedGeo}).Debug("规则执行完毕")

	// 3. 时间一致性
	if log.StartCol != "" && log.EndCol != "" {
		before := len(rows)
		rows = keepRows(rows, func(r int) bool {
			if !starts[r].Valid || !ends[r].Valid {
				return true
			}
			return !ends[r].Time.Before(starts[r].Time)
		})
		log.IncohTime = before - len(rows)
	}
	c.logger.WithFields(logrus.Fields{"rule": "time", "dropped": log.IncohTime}).Debug("规则执行完毕")

	// 4. 时长
	derived := make([]Derived, n)
	for _, r := range rows {
		derived[r] = Derive(starts[r], ends[r])
	}

	// 5. 异常时长统计(过滤前)
	for _, r := range rows {
		d := derived[r]
		if !d.HasDuration {
			continue
		}
		if d.DurationMin <= 0 {
			log.DurLE0++
		} else if d.DurationMin < c.opts.MinDurationMin {
			log.DurLTMin++
		}
		if d.DurationMin > c.opts.MaxDurationMin {
			log.DurGTMax++
		}
	}

	// 6. 时长区间
	before := len(rows)
	rows = keepRows(rows, func(r int) bool {
		d := derived[r]
		return d.HasDuration &&
			d.DurationMin >= c.opts.MinDurationMin &&
			d.DurationMin <= c.opts.MaxDurationMin
	})
	log.DroppedDur = before - len(rows)
	c.logger.WithFields(logrus.Fields{"rule": "duration", "dropped": log.DroppedDur}).Debug("规则执行完毕")

	log.CleanN = len(rows)
	log.DroppedTotal = log.RawN - log.CleanN

	clean := appendDerived(df.Subset(rows), rows, derived)
	if clean.Err != nil {
		return nil, fmt.Errorf("构建清洗后数据表失败: %w", clean.Err)
	}

	c.logger.WithFields(logrus.Fields{
		"raw_n":         log.RawN,
		"clean_n":       log.CleanN,
		"dropped_total": log.DroppedTotal,
	}).Info("数据清洗完成")

	return &Result{
		Roles: roles,
		Clean: clean,
		Trips: buildTrips(clean, rows, roles, starts, ends),
		Log:   log,
	}, nil
}

// RawDurations 未经清洗的时长分布(跳过缺失值)
func RawDurations(raw dataframe.DataFrame, aliases AliasTable) []float64 {
	roles := ResolveRoles(raw.Names(), aliases)
	startCol, ok1 := roles.Column(RoleStartTime)
	endCol, ok2 := roles.Column(RoleEndTime)
	if !ok1 || !ok2 {
		return nil
	}
	starts := NormalizeSeries(raw.Col(startCol))
	ends := NormalizeSeries(raw.Col(endCol))

	out := make([]float64, 0, len(starts))
	for i := range starts {
		if starts[i].Valid && ends[i].Valid {
			out = append(out, DurationMinutes(starts[i], ends[i]))
		}
	}
	return out
}

func keepRows(rows []int, keep func(r int) bool) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func appendDerived(df dataframe.DataFrame, rows []int, derived []Derived) dataframe.DataFrame {
	durations := make([]float64, len(rows))
	days := make([]string, len(rows))
	hours := make([]int, len(rows))
	for i, r := range rows {
		durations[i] = derived[r].DurationMin
		days[i] = derived[r].DayOfWeek
		hours[i] = derived[r].StartHour
	}

	return df.Mutate(series.New(durations, series.Float, ColDuration)).
		Mutate(series.New(days, series.String, ColDayOfWeek)).
		Mutate(series.New(hours, series.Int, ColStartHour))
}

func buildTrips(clean dataframe.DataFrame, rows []int, roles RoleMap, starts, ends []Timestamp) []CleanedTrip {
	names := clean.Names()
	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = clean.Col(name)
	}
	userCol, _ := roles.Column(RoleUserType)
	bikeCol, _ := roles.Column(RoleVehicleType)

	trips := make([]CleanedTrip, len(rows))
	for i, r := range rows {
		t := CleanedTrip{
			Row:       r,
			Fields:    make(map[string]string, len(names)),
			StartedAt: starts[r].Time,
			EndedAt:   ends[r].Time,
		}
		for j, name := range names {
			el := cols[j].Elem(i)
			if el.IsNA() {
				continue
			}
			switch name {
			case ColDuration:
				t.TripDurationMin = el.Float()
			case ColDayOfWeek:
				t.DayOfWeek = el.String()
			case ColStartHour:
				t.StartHour, _ = el.Int()
			default:
				t.Fields[name] = el.String()
			}
		}
		if userCol != "" {
			t.UserType = t.Fields[userCol]
		}
		if bikeCol != "" {
			t.VehicleType = t.Fields[bikeCol]
		}
		trips[i] = t
	}
	return trips
}

func timestampSeries(ts []Timestamp, name string) series.Series {
	vals := make([]string, len(ts))
	for i, t := range ts {
		vals[i] = t.String()
	}
	return series.New(vals, series.String, name)
}

func fillNA(s series.Series, value string) series.Series {
	vals := s.Records()
	for i := 0; i < s.Len(); i++ {
		if s.Elem(i).IsNA() {
			vals[i] = value
		}
	}
	return series.New(vals, series.String, s.Name)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
