package processor

import (
	"encoding/json"
	"time"
)

// CleanedTrip 通过全部清洗规则的行程，派生变量为显式字段
type CleanedTrip struct {
	Row         int               // 原始表中的行号(从 0 开始)
	Fields      map[string]string // 原始字段，缺失值不出现在 map 中
	StartedAt   time.Time
	EndedAt     time.Time
	UserType    string
	VehicleType string

	TripDurationMin float64
	DayOfWeek       string
	StartHour       int
}

// Field 按列名取原始字段
func (t CleanedTrip) Field(name string) (string, bool) {
	v, ok := t.Fields[name]
	return v, ok
}

func (t CleanedTrip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Row             int               `json:"row"`
		Fields          map[string]string `json:"fields"`
		StartedAt       string            `json:"started_at"`
		EndedAt         string            `json:"ended_at"`
		UserType        string            `json:"user_type,omitempty"`
		VehicleType     string            `json:"vehicle_type,omitempty"`
		TripDurationMin float64           `json:"trip_duration_min"`
		DayOfWeek       string            `json:"day_of_week"`
		StartHour       int               `json:"start_hour"`
	}{
		Row:             t.Row,
		Fields:          t.Fields,
		StartedAt:       t.StartedAt.Format(Layout),
		EndedAt:         t.EndedAt.Format(Layout),
		UserType:        t.UserType,
		VehicleType:     t.VehicleType,
		TripDurationMin: t.TripDurationMin,
		DayOfWeek:       t.DayOfWeek,
		StartHour:       t.StartHour,
	})
}
