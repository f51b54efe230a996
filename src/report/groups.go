package report

import (
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/utils"
)

// 时段划分 [0,6) [6,10) [10,14) [14,18) [18,22) [22,24)
var (
	hourBounds   = []int{0, 6, 10, 14, 18, 22, 24}
	HourBuckets  = []string{"Night", "Morning", "Midday", "Afternoon", "Evening", "Late-night"}
	bucketRanges = []string{"00-05", "06-09", "10-13", "14-17", "18-21", "22-23"}
)

// HourBucket 小时所属时段，超出 [0,24) 时返回 false
func HourBucket(hour int) (string, bool) {
	for i := 0; i < len(HourBuckets); i++ {
		if hour >= hourBounds[i] && hour < hourBounds[i+1] {
			return HourBuckets[i], true
		}
	}
	return "", false
}

// BucketRange 时段对应的小时范围，如 Morning -> "06-09"
func BucketRange(bucket string) string {
	if i := indexOf(HourBuckets, bucket); i >= 0 {
		return bucketRanges[i]
	}
	return ""
}

// KeyCount 单键计数
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PairCount 双键计数
type PairCount struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// GroupCounts 按 (colA, colB) 计数，任一键缺失的行跳过；任一列不存在时返回空
// 键的顺序：星期按周一开始，时段按时间，整数按数值，其余按字典序
func GroupCounts(df dataframe.DataFrame, colA, colB string) []PairCount {
	if !utils.HasColumns(df, colA, colB) {
		return []PairCount{}
	}
	a, b := df.Col(colA), df.Col(colB)

	counts := make(map[[2]string]int)
	for r := 0; r < df.Nrow(); r++ {
		ea, eb := a.Elem(r), b.Elem(r)
		if ea.IsNA() || eb.IsNA() {
			continue
		}
		counts[[2]string{ea.String(), eb.String()}]++
	}
	return sortPairs(counts)
}

// CountByHour 每个出发小时的行程数
func CountByHour(trips []processor.CleanedTrip) []KeyCount {
	counts := make(map[string]int)
	for _, t := range trips {
		counts[strconv.Itoa(t.StartHour)]++
	}
	return sortKeys(counts)
}

// CountVehicleUser 车辆类型 × 用户类型
func CountVehicleUser(trips []processor.CleanedTrip) []PairCount {
	return countPairs(trips, func(t processor.CleanedTrip) (string, string) {
		return t.VehicleType, t.UserType
	})
}

// CountDayUser 星期 × 用户类型
func CountDayUser(trips []processor.CleanedTrip) []PairCount {
	return countPairs(trips, func(t processor.CleanedTrip) (string, string) {
		return t.DayOfWeek, t.UserType
	})
}

// CountHourUser 出发小时 × 用户类型
func CountHourUser(trips []processor.CleanedTrip) []PairCount {
	return countPairs(trips, func(t processor.CleanedTrip) (string, string) {
		return strconv.Itoa(t.StartHour), t.UserType
	})
}

// DayBucketCounts 星期 × 时段的完整网格(7×6，没有行程的格子为 0)
func DayBucketCounts(trips []processor.CleanedTrip) []PairCount {
	counts := make(map[[2]string]int)
	for _, t := range trips {
		bucket, ok := HourBucket(t.StartHour)
		if !ok || t.DayOfWeek == "" {
			continue
		}
		counts[[2]string{t.DayOfWeek, bucket}]++
	}

	out := make([]PairCount, 0, len(processor.WeekdayOrder)*len(HourBuckets))
	for _, day := range processor.WeekdayOrder {
		for _, bucket := range HourBuckets {
			out = append(out, PairCount{A: day, B: bucket, Count: counts[[2]string{day, bucket}]})
		}
	}
	return out
}

func countPairs(trips []processor.CleanedTrip, key func(processor.CleanedTrip) (string, string)) []PairCount {
	counts := make(map[[2]string]int)
	for _, t := range trips {
		a, b := key(t)
		if a == "" || b == "" {
			continue
		}
		counts[[2]string{a, b}]++
	}
	return sortPairs(counts)
}

func sortPairs(counts map[[2]string]int) []PairCount {
	out := make([]PairCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, PairCount{A: k[0], B: k[1], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return keyLess(out[i].A, out[j].A)
		}
		return keyLess(out[i].B, out[j].B)
	})
	return out
}

func sortKeys(counts map[string]int) []KeyCount {
	out := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeyCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	return out
}

func keyLess(a, b string) bool {
	if ia, ib := processor.WeekdayIndex(a), processor.WeekdayIndex(b); ia >= 0 && ib >= 0 {
		return ia < ib
	}
	if ia, ib := indexOf(HourBuckets, a), indexOf(HourBuckets, b); ia >= 0 && ib >= 0 {
		return ia < ib
	}
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
