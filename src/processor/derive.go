package processor

import "time"

// 派生变量列名
const (
	ColDuration  = "trip_duration_min"
	ColDayOfWeek = "day_of_week"
	ColStartHour = "start_hour"
)

// WeekdayOrder 展示用的星期顺序(周一开始)
var WeekdayOrder = []string{
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
	time.Sunday.String(),
}

// Derived 由起止时间计算出的派生变量，对应 Has* 为 false 时表示缺失
type Derived struct {
	DurationMin float64
	HasDuration bool
	DayOfWeek   string
	StartHour   int
	HasStart    bool
}

// Derive 计算时长(分钟)、星期、出发小时
func Derive(start, end Timestamp) Derived {
	var d Derived
	if start.Valid && end.Valid {
		d.DurationMin = DurationMinutes(start, end)
		d.HasDuration = true
	}
	if start.Valid {
		d.DayOfWeek = start.Time.Weekday().String()
		d.StartHour = start.Time.Hour()
		d.HasStart = true
	}
	return d
}

// DurationMinutes end - start，单位分钟
func DurationMinutes(start, end Timestamp) float64 {
	return end.Time.Sub(start.Time).Minutes()
}

// WeekdayIndex 周一为 0，未知名称返回 -1
func WeekdayIndex(day string) int {
	for i, d := range WeekdayOrder {
		if d == day {
			return i
		}
	}
	return -1
}
