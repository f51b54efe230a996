package processor

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
)

var tripHeader = []string{
	"ride_id", "rideable_type", "started_at", "ended_at",
	"start_station_name", "end_station_name", "end_lat", "end_lng", "member_casual",
}

func loadTable(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := file.LoadRecords(records)
	require.NoError(t, df.Err)
	return df
}

func tripRow(id int, start time.Time, minutes float64) []string {
	end := start.Add(time.Duration(minutes * float64(time.Minute)))
	return []string{
		fmt.Sprintf("r%04d", id), "classic_bike",
		start.Format(Layout), end.Format(Layout),
		"Clark St", "State St", "41.88", "-87.63", "member",
	}
}

// mixedDefects 1000 行：10 行结束早于开始，5 行缺少 end_lat，20 行超过 24 小时
func mixedDefects(t *testing.T) dataframe.DataFrame {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	records := [][]string{tripHeader}
	for i := 0; i < 1000; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		var row []string
		switch {
		case i < 10:
			row = tripRow(i, start, -5)
		case i < 15:
			row = tripRow(i, start, 12)
			row[6] = ""
		case i < 35:
			row = tripRow(i, start, 1500)
		default:
			row = tripRow(i, start, 10)
		}
		records = append(records, row)
	}
	return loadTable(t, records)
}

func TestCleanMixedDefects(t *testing.T) {
	res, err := NewCleaner(DefaultOptions(), nil).Run(mixedDefects(t))
	require.NoError(t, err)

	assert.Equal(t, CleaningLog{
		RawN:         1000,
		CleanN:       965,
		DroppedTotal: 35,
		DroppedGeo:   5,
		IncohTime:    10,
		DurLE0:       0,
		DurLTMin:     0,
		DurGTMax:     20,
		DroppedDur:   20,
		StartCol:     "started_at",
		EndCol:       "ended_at",
	}, res.Log)
	assert.Equal(t, 965, res.Clean.Nrow())
	assert.Len(t, res.Trips, 965)
}

func TestDeriveSingleTrip(t *testing.T) {
	df := loadTable(t, [][]string{
		{"started_at", "ended_at"},
		{"2024-01-01 10:00:00", "2024-01-01 10:05:00"},
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)
	require.Len(t, res.Trips, 1)

	trip := res.Trips[0]
	assert.Equal(t, 5.0, trip.TripDurationMin)
	assert.Equal(t, "Monday", trip.DayOfWeek)
	assert.Equal(t, 10, trip.StartHour)

	assert.Equal(t, 5.0, res.Clean.Col(ColDuration).Elem(0).Float())
	assert.Equal(t, "Monday", res.Clean.Col(ColDayOfWeek).Elem(0).String())
	hour, err := res.Clean.Col(ColStartHour).Elem(0).Int()
	require.NoError(t, err)
	assert.Equal(t, 10, hour)
}

func TestOutlierAccounting(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	missingEnd := tripRow(3, start, 10)
	missingEnd[3] = ""
	unparseable := tripRow(4, start, 10)
	unparseable[2] = "yesterday"

	df := loadTable(t, [][]string{
		tripHeader,
		tripRow(0, start, 0),    // 时长为 0
		tripRow(1, start, 0.5),  // (0, 1)
		tripRow(2, start, 1440), // 上界包含在内
		missingEnd,
		unparseable,
		tripRow(5, start, 1),
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)

	log := res.Log
	assert.Equal(t, 1, log.DurLE0)
	assert.Equal(t, 1, log.DurLTMin)
	assert.Equal(t, 0, log.DurGTMax)
	assert.Equal(t, 0, log.IncohTime)
	// 0 分钟、0.5 分钟以及两个缺失时长的行
	assert.Equal(t, 4, log.DroppedDur)
	assert.Equal(t, 2, log.CleanN)
	assert.Equal(t, log.DroppedGeo+log.IncohTime+log.DroppedDur, log.DroppedTotal)
}

func TestCleanDurationsWithinBounds(t *testing.T) {
	opts := DefaultOptions()
	opts.MinDurationMin = 5
	opts.MaxDurationMin = 60

	start := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	records := [][]string{tripHeader}
	for i, m := range []float64{1, 4.99, 5, 30, 60, 60.01, 600} {
		records = append(records, tripRow(i, start, m))
	}

	res, err := NewCleaner(opts, nil).Run(loadTable(t, records))
	require.NoError(t, err)

	require.Len(t, res.Trips, 3)
	for _, trip := range res.Trips {
		assert.GreaterOrEqual(t, trip.TripDurationMin, opts.MinDurationMin)
		assert.LessOrEqual(t, trip.TripDurationMin, opts.MaxDurationMin)
	}
	assert.Equal(t, 2, res.Log.DurLTMin)
	assert.Equal(t, 2, res.Log.DurGTMax)
}

func TestCleanKeepsSubSecondTimestamps(t *testing.T) {
	df := loadTable(t, [][]string{
		{"started_at", "ended_at"},
		{"2024-01-01 10:00:00.900", "2024-01-01 10:05:00.100"},
		{"2024-01-01 11:00:00", "2024-01-01 11:10:00"},
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)
	require.Equal(t, 2, res.Clean.Nrow())

	assert.Equal(t, "2024-01-01 10:00:00.9", res.Clean.Col("started_at").Elem(0).String())
	assert.Equal(t, "2024-01-01 10:05:00.1", res.Clean.Col("ended_at").Elem(0).String())
	assert.Equal(t, "2024-01-01 11:00:00", res.Clean.Col("started_at").Elem(1).String())

	// 清洗后表中的起止时间与时长一致
	for i := 0; i < res.Clean.Nrow(); i++ {
		start := NormalizeValue(res.Clean.Col("started_at").Elem(i))
		end := NormalizeValue(res.Clean.Col("ended_at").Elem(i))
		require.True(t, start.Valid && end.Valid)
		assert.InDelta(t, DurationMinutes(start, end), res.Clean.Col(ColDuration).Elem(i).Float(), 1e-9)
	}
	assert.InDelta(t, 299.2/60, res.Trips[0].TripDurationMin, 1e-9)
}

func TestCleanHeaderOnly(t *testing.T) {
	res, err := NewCleaner(DefaultOptions(), nil).Run(loadTable(t, [][]string{tripHeader}))
	require.NoError(t, err)

	assert.Equal(t, CleaningLog{StartCol: "started_at", EndCol: "ended_at"}, res.Log)
	assert.Empty(t, res.Trips)
	assert.Equal(t, 0, res.Clean.Nrow())
	assert.Contains(t, res.Clean.Names(), ColDuration)
}

func TestLogArithmetic(t *testing.T) {
	res, err := NewCleaner(DefaultOptions(), nil).Run(mixedDefects(t))
	require.NoError(t, err)

	l := res.Log
	assert.Equal(t, l.RawN-l.CleanN, l.DroppedTotal)
	assert.Equal(t, l.DroppedGeo+l.IncohTime+l.DroppedDur, l.DroppedTotal)
}

func TestDegradedMode(t *testing.T) {
	df := loadTable(t, [][]string{
		{"ride_id", "departure", "arrival", "end_lat", "end_lng"},
		{"a", "2024-01-01 10:00:00", "2024-01-01 10:05:00", "41.8", "-87.6"},
		{"b", "2024-01-01 11:00:00", "2024-01-01 11:05:00", "41.8", "-87.6"},
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)

	assert.True(t, res.Log.Degraded())
	assert.Equal(t, 2, res.Log.RawN)
	assert.Equal(t, 0, res.Log.CleanN)
	assert.Equal(t, 2, res.Log.DroppedDur)
	assert.Empty(t, res.Trips)

	out, err := json.Marshal(res.Log)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"start_col":null`)
	assert.Contains(t, string(out), `"end_col":null`)
}

func TestIdempotence(t *testing.T) {
	raw := mixedDefects(t)
	cleaner := NewCleaner(DefaultOptions(), nil)

	first, err := cleaner.Run(raw)
	require.NoError(t, err)
	second, err := cleaner.Run(raw)
	require.NoError(t, err)

	a, err := json.Marshal(first.Log)
	require.NoError(t, err)
	b, err := json.Marshal(second.Log)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Clean.Records(), second.Clean.Records())

	// 输入表不被修改
	assert.Equal(t, 1000, raw.Nrow())
	assert.Equal(t, len(tripHeader), raw.Ncol())
}

func TestStationImputation(t *testing.T) {
	start := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	row := tripRow(0, start, 15)
	row[4] = ""
	row[5] = "NA"

	res, err := NewCleaner(DefaultOptions(), nil).Run(loadTable(t, [][]string{tripHeader, row}))
	require.NoError(t, err)
	require.Len(t, res.Trips, 1)

	assert.Equal(t, MissingLabel, res.Clean.Col("start_station_name").Elem(0).String())
	assert.Equal(t, MissingLabel, res.Clean.Col("end_station_name").Elem(0).String())
	v, _ := res.Trips[0].Field("end_station_name")
	assert.Equal(t, MissingLabel, v)
}

func TestGeoRuleNeedsBothColumns(t *testing.T) {
	df := loadTable(t, [][]string{
		{"started_at", "ended_at", "end_lat"},
		{"2024-01-01 10:00:00", "2024-01-01 10:05:00", ""},
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Log.DroppedGeo)
	assert.Equal(t, 1, res.Log.CleanN)
}

func TestCleanTableShape(t *testing.T) {
	df := loadTable(t, [][]string{
		{"Started_At", "Ended_At", "member_casual", "rideable_type"},
		{"2024-01-01T10:00:00Z", "1/1/2024 10:20:00", "casual", "electric_bike"},
	})

	res, err := NewCleaner(DefaultOptions(), nil).Run(df)
	require.NoError(t, err)

	assert.Equal(t, []string{"Started_At", "Ended_At", "member_casual", "rideable_type",
		ColDuration, ColDayOfWeek, ColStartHour}, res.Clean.Names())
	// 时间列改写为统一格式
	assert.Equal(t, "2024-01-01 10:00:00", res.Clean.Col("Started_At").Elem(0).String())
	assert.Equal(t, "2024-01-01 10:20:00", res.Clean.Col("Ended_At").Elem(0).String())

	trip := res.Trips[0]
	assert.Equal(t, "casual", trip.UserType)
	assert.Equal(t, "electric_bike", trip.VehicleType)
	assert.Equal(t, 20.0, trip.TripDurationMin)
	assert.Equal(t, "Started_At", res.Log.StartCol)
}

func TestRunRejectsBrokenTable(t *testing.T) {
	broken := dataframe.DataFrame{Err: fmt.Errorf("boom")}
	_, err := NewCleaner(DefaultOptions(), nil).Run(broken)
	assert.Error(t, err)
}

func TestRawDurations(t *testing.T) {
	df := loadTable(t, [][]string{
		{"start_time", "end_time"},
		{"2024-01-01 10:00:00", "2024-01-01 09:00:00"},
		{"2024-01-01 10:00:00", ""},
		{"2024-01-01 10:00:00", "2024-01-01 12:00:00"},
	})

	assert.Equal(t, []float64{-60, 120}, RawDurations(df, DefaultAliases()))
	assert.Nil(t, RawDurations(loadTable(t, [][]string{{"x"}, {"1"}}), DefaultAliases()))
}

func TestCleaningLogJSON(t *testing.T) {
	l := CleaningLog{RawN: 3, CleanN: 2, DroppedTotal: 1, DroppedDur: 1, StartCol: "started_at", EndCol: "ended_at"}
	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"raw_n": 3, "clean_n": 2, "dropped_total": 1, "dropped_geo": 0, "incoh_time": 0,
		"dur_le_0": 0, "dur_lt_1": 0, "dur_gt_24h": 0, "dropped_dur": 1,
		"start_col": "started_at", "end_col": "ended_at"
	}`, string(out))
	assert.Equal(t, 1, l.Counters()["dropped_dur"])
}
