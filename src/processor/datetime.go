package processor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/series"
)

// Layout 规范化之后的时间格式，小数秒为 0 时省略
const Layout = "2006-01-02 15:04:05.999999999"

// Timestamp 规范化后的时间点，Valid 为 false 表示缺失
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// 尝试的时间格式，按顺序匹配
var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
	"2006/01/02",
}

// Excel 序列日期(如 45292.4166)
var excelSerial = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// 9999-12-31 对应的序列号
const maxExcelSerial = 2958466

// NormalizeValue 把单个值转换为 Timestamp，无法解析时返回缺失而不是报错
// 不做时区转换：带偏移量的值保留其墙上时间
func NormalizeValue(v interface{}) Timestamp {
	switch val := v.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return val
	case time.Time:
		if val.IsZero() {
			return Timestamp{}
		}
		return Timestamp{Time: naive(val), Valid: true}
	case *time.Time:
		if val == nil {
			return Timestamp{}
		}
		return NormalizeValue(*val)
	case series.Element:
		if val.IsNA() {
			return Timestamp{}
		}
		return parseTime(val.String())
	case string:
		return parseTime(val)
	default:
		return Timestamp{}
	}
}

// NormalizeSeries 逐行规范化一列，长度和顺序与输入一致
func NormalizeSeries(s series.Series) []Timestamp {
	out := make([]Timestamp, s.Len())
	for i := 0; i < s.Len(); i++ {
		out[i] = NormalizeValue(s.Elem(i))
	}
	return out
}

// String 缺失时返回 "NaN"，便于写回 gota 的 series
func (t Timestamp) String() string {
	if !t.Valid {
		return "NaN"
	}
	return t.Time.Format(Layout)
}

func parseTime(raw string) Timestamp {
	str := strings.TrimSpace(raw)
	if str == "" || str == "NaN" || str == "NaT" {
		return Timestamp{}
	}

	for _, format := range timeFormats {
		if t, err := time.Parse(format, str); err == nil {
			return Timestamp{Time: naive(t), Valid: true}
		}
	}

	if excelSerial.MatchString(str) {
		if t, ok := excelToTime(str); ok {
			return Timestamp{Time: t, Valid: true}
		}
	}
	return Timestamp{}
}

// excelToTime Excel 序列日期转 time.Time
func excelToTime(str string) (time.Time, bool) {
	excelDays, err := strconv.ParseFloat(str, 64)
	if err != nil || excelDays < 1 || excelDays >= maxExcelSerial {
		return time.Time{}, false
	}

	// 以 1899-12-30 为基准(兼容 Excel 1900 闰年问题)
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	// 精确到秒，避免浮点误差带来的 59.999 秒
	secs := int64(fraction*86400 + 0.5)
	return base.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second), true
}

// naive 去掉时区，保留墙上时间
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
