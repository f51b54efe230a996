package report

import (
	"errors"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

// ErrNoData 过滤后没有可统计的值
var ErrNoData = errors.New("no data")

// 列表展示的条目数
const topN = 10

// DurationSummary trip_duration_min 的描述统计
type DurationSummary struct {
	Count   int       `json:"count"`
	Min     float64   `json:"min"`
	Median  float64   `json:"median"`
	Mean    float64   `json:"mean"`
	Max     float64   `json:"max"`
	Longest []float64 `json:"longest"` // 最长的 10 个，降序
}

// DescribeDuration 时长的最小/中位/均值/最大值，以及最长的行程
func DescribeDuration(trips []processor.CleanedTrip) (DurationSummary, error) {
	if len(trips) == 0 {
		return DurationSummary{}, ErrNoData
	}
	x := make([]float64, len(trips))
	for i, t := range trips {
		x[i] = t.TripDurationMin
	}
	sort.Float64s(x)

	longest := make([]float64, 0, topN)
	for i := len(x) - 1; i >= 0 && len(longest) < topN; i-- {
		longest = append(longest, x[i])
	}

	return DurationSummary{
		Count:   len(x),
		Min:     floats.Min(x),
		Median:  median(x),
		Mean:    stat.Mean(x, nil),
		Max:     floats.Max(x),
		Longest: longest,
	}, nil
}

// HourSummary start_hour 的描述统计
type HourSummary struct {
	Count  int        `json:"count"`
	Min    int        `json:"min"`
	Max    int        `json:"max"`
	Unique int        `json:"unique"`
	Mode   int        `json:"mode"` // 出现次数相同时取较小的小时
	Top    []KeyCount `json:"top"`
}

// DescribeHour 出发小时的范围、众数与最常见的 10 个小时
func DescribeHour(trips []processor.CleanedTrip) (HourSummary, error) {
	if len(trips) == 0 {
		return HourSummary{}, ErrNoData
	}
	counts := make(map[int]int)
	lo, hi := trips[0].StartHour, trips[0].StartHour
	for _, t := range trips {
		counts[t.StartHour]++
		if t.StartHour < lo {
			lo = t.StartHour
		}
		if t.StartHour > hi {
			hi = t.StartHour
		}
	}

	top := make([]KeyCount, 0, len(counts))
	for h, c := range counts {
		top = append(top, KeyCount{Key: strconv.Itoa(h), Count: c})
	}
	sortByCount(top)
	mode, _ := strconv.Atoi(top[0].Key)

	return HourSummary{
		Count:  len(trips),
		Min:    lo,
		Max:    hi,
		Unique: len(counts),
		Mode:   mode,
		Top:    head(top, topN),
	}, nil
}

// DaySummary day_of_week 的描述统计
type DaySummary struct {
	Count         int        `json:"count"`
	Distinct      int        `json:"distinct"`
	Dominant      string     `json:"dominant"`
	DominantCount int        `json:"dominant_count"`
	SharePercent  float64    `json:"share_percent"`
	Top           []KeyCount `json:"top"`
}

// DescribeDay 星期的分布与占比最高的一天
func DescribeDay(trips []processor.CleanedTrip) (DaySummary, error) {
	counts := make(map[string]int)
	n := 0
	for _, t := range trips {
		if t.DayOfWeek == "" {
			continue
		}
		counts[t.DayOfWeek]++
		n++
	}
	if n == 0 {
		return DaySummary{}, ErrNoData
	}

	top := make([]KeyCount, 0, len(counts))
	for d, c := range counts {
		top = append(top, KeyCount{Key: d, Count: c})
	}
	sortByCount(top)

	return DaySummary{
		Count:         n,
		Distinct:      len(counts),
		Dominant:      top[0].Key,
		DominantCount: top[0].Count,
		SharePercent:  percent(top[0].Count, n),
		Top:           head(top, topN),
	}, nil
}

// Bin 直方图的一个区间 [Lower, Upper)，最后一个区间包含上界
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// DurationHistogram 原始时长在 [0, maxShow] 内的分布，等宽 bins 个区间
func DurationHistogram(durations []float64, maxShow float64, bins int) ([]Bin, error) {
	if bins <= 0 || maxShow <= 0 {
		return nil, ErrNoData
	}
	x := make([]float64, 0, len(durations))
	for _, d := range durations {
		if !math.IsNaN(d) && d >= 0 && d <= maxShow {
			x = append(x, d)
		}
	}
	if len(x) == 0 {
		return nil, ErrNoData
	}
	sort.Float64s(x)

	dividers := floats.Span(make([]float64, bins+1), 0, maxShow)
	edges := append([]float64(nil), dividers...)
	// stat.Histogram 的区间右开，把上界稍微外推使 maxShow 落在最后一个区间
	dividers[bins] = math.Nextafter(maxShow, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lower: edges[i], Upper: edges[i+1], Count: int(counts[i])}
	}
	return out, nil
}

// median 已排序切片的中位数，偶数个时取中间两数的平均值
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sortByCount 次数降序，相同次数按键的自然顺序
func sortByCount(kc []KeyCount) {
	sort.Slice(kc, func(i, j int) bool {
		if kc[i].Count != kc[j].Count {
			return kc[i].Count > kc[j].Count
		}
		return keyLess(kc[i].Key, kc[j].Key)
	})
}

func head(kc []KeyCount, n int) []KeyCount {
	if len(kc) > n {
		return kc[:n]
	}
	return kc
}
