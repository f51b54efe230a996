package report

import (
	"errors"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/datasource/file"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

func loadTable(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := file.LoadRecords(records)
	require.NoError(t, df.Err)
	return df
}

func trip(day string, hour int, minutes float64, user, vehicle string) processor.CleanedTrip {
	return processor.CleanedTrip{
		Fields:          map[string]string{},
		UserType:        user,
		VehicleType:     vehicle,
		TripDurationMin: minutes,
		DayOfWeek:       day,
		StartHour:       hour,
	}
}

func TestMissingReportPercent(t *testing.T) {
	records := [][]string{{"ride_id", "end_station_name", "end_lat"}}
	for i := 0; i < 200; i++ {
		station := "Clark St"
		if i < 30 {
			station = ""
		}
		lat := "41.9"
		if i < 2 {
			lat = ""
		}
		records = append(records, []string{"r", station, lat})
	}

	rep := MissingReport(loadTable(t, records))
	require.Len(t, rep, 3)
	assert.Equal(t, MissingColumn{Column: "end_station_name", Missing: 30, Percent: 15.00}, rep[0])
	assert.Equal(t, MissingColumn{Column: "end_lat", Missing: 2, Percent: 1.00}, rep[1])
	assert.Equal(t, "ride_id", rep[2].Column)
	assert.Zero(t, rep[2].Percent)
}

func TestMissingReportRounding(t *testing.T) {
	rep := MissingReport(loadTable(t, [][]string{{"a", "b"}, {"", "x"}, {"1", "x"}, {"2", "x"}}))
	assert.Equal(t, 33.33, rep[0].Percent)
	// 相同百分比保持列顺序
	rep = MissingReport(loadTable(t, [][]string{{"b", "a"}, {"x", "y"}}))
	assert.Equal(t, "b", rep[0].Column)
	assert.Equal(t, "a", rep[1].Column)
}

func TestDuplicateReport(t *testing.T) {
	df := loadTable(t, [][]string{
		{"a", "b"},
		{"1", "x"},
		{"1", "x"},
		{"1", ""},
		{"1", ""},
		{"2", "x"},
		{"1", "x"},
		{"1", "y"},
		{"", "x"},
	})

	rep := DuplicateReport(df)
	assert.Equal(t, 8, rep.Rows)
	assert.Equal(t, 3, rep.Duplicates)
	assert.Equal(t, 37.5, rep.Percent)

	empty := DuplicateReport(loadTable(t, [][]string{{"a"}}))
	assert.Zero(t, empty.Duplicates)
	assert.Zero(t, empty.Percent)
}

func TestHourBucket(t *testing.T) {
	cases := map[int]string{
		0: "Night", 5: "Night", 6: "Morning", 9: "Morning", 10: "Midday", 13: "Midday",
		14: "Afternoon", 17: "Afternoon", 18: "Evening", 21: "Evening", 22: "Late-night", 23: "Late-night",
	}
	for hour, want := range cases {
		got, ok := HourBucket(hour)
		assert.True(t, ok)
		assert.Equal(t, want, got, "hour %d", hour)
	}
	_, ok := HourBucket(24)
	assert.False(t, ok)
	_, ok = HourBucket(-1)
	assert.False(t, ok)
	assert.Equal(t, "06-09", BucketRange("Morning"))
}

func TestGroupCounts(t *testing.T) {
	df := loadTable(t, [][]string{
		{"rideable_type", "member_casual", "start_hour"},
		{"electric_bike", "member", "9"},
		{"classic_bike", "casual", "10"},
		{"classic_bike", "member", "2"},
		{"classic_bike", "member", "10"},
		{"", "member", "10"},
		{"classic_bike", "NA", "10"},
	})

	got := GroupCounts(df, "rideable_type", "member_casual")
	assert.Equal(t, []PairCount{
		{A: "classic_bike", B: "casual", Count: 1},
		{A: "classic_bike", B: "member", Count: 2},
		{A: "electric_bike", B: "member", Count: 1},
	}, got)

	// 整数键按数值排序
	got = GroupCounts(df, "start_hour", "member_casual")
	require.NotEmpty(t, got)
	assert.Equal(t, "2", got[0].A)

	assert.Empty(t, GroupCounts(df, "rideable_type", "nope"))
}

func TestTripCharts(t *testing.T) {
	trips := []processor.CleanedTrip{
		trip("Tuesday", 8, 10, "member", "classic_bike"),
		trip("Monday", 8, 12, "casual", "electric_bike"),
		trip("Monday", 23, 30, "member", "classic_bike"),
		trip("Sunday", 14, 5, "", "classic_bike"),
	}

	assert.Equal(t, []KeyCount{{"8", 2}, {"14", 1}, {"23", 1}}, CountByHour(trips))
	assert.Equal(t, []PairCount{
		{A: "Monday", B: "casual", Count: 1},
		{A: "Monday", B: "member", Count: 1},
		{A: "Tuesday", B: "member", Count: 1},
	}, CountDayUser(trips))
	assert.Equal(t, []PairCount{
		{A: "classic_bike", B: "member", Count: 2},
		{A: "electric_bike", B: "casual", Count: 1},
	}, CountVehicleUser(trips))
	assert.Equal(t, PairCount{A: "8", B: "casual", Count: 1}, CountHourUser(trips)[0])

	grid := DayBucketCounts(trips)
	require.Len(t, grid, 42)
	assert.Equal(t, PairCount{A: "Monday", B: "Night", Count: 0}, grid[0])
	assert.Equal(t, PairCount{A: "Monday", B: "Morning", Count: 1}, grid[1])
	assert.Equal(t, PairCount{A: "Monday", B: "Late-night", Count: 1}, grid[5])
	assert.Equal(t, PairCount{A: "Sunday", B: "Afternoon", Count: 1}, grid[39])
}

func TestDescribeDuration(t *testing.T) {
	var trips []processor.CleanedTrip
	for _, m := range []float64{3, 1, 4, 1.5, 9, 2, 6, 5, 30, 12, 8, 7} {
		trips = append(trips, trip("Monday", 8, m, "member", "classic_bike"))
	}

	sum, err := DescribeDuration(trips)
	require.NoError(t, err)
	assert.Equal(t, 12, sum.Count)
	assert.Equal(t, 1.0, sum.Min)
	assert.Equal(t, 30.0, sum.Max)
	assert.Equal(t, 5.5, sum.Median)
	assert.InDelta(t, 88.5/12, sum.Mean, 1e-9)
	assert.Equal(t, []float64{30, 12, 9, 8, 7, 6, 5, 4, 3, 2}, sum.Longest)

	_, err = DescribeDuration(nil)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDescribeHour(t *testing.T) {
	trips := []processor.CleanedTrip{
		trip("Monday", 17, 5, "", ""),
		trip("Monday", 8, 5, "", ""),
		trip("Monday", 17, 5, "", ""),
		trip("Monday", 8, 5, "", ""),
		trip("Monday", 3, 5, "", ""),
	}

	sum, err := DescribeHour(trips)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Min)
	assert.Equal(t, 17, sum.Max)
	assert.Equal(t, 3, sum.Unique)
	// 8 点和 17 点次数相同，取较小的
	assert.Equal(t, 8, sum.Mode)
	assert.Equal(t, []KeyCount{{"8", 2}, {"17", 2}, {"3", 1}}, sum.Top)

	_, err = DescribeHour(nil)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDescribeDay(t *testing.T) {
	trips := []processor.CleanedTrip{
		trip("Friday", 8, 5, "", ""),
		trip("Friday", 8, 5, "", ""),
		trip("Monday", 8, 5, "", ""),
		trip("Sunday", 8, 5, "", ""),
	}

	sum, err := DescribeDay(trips)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Count)
	assert.Equal(t, 3, sum.Distinct)
	assert.Equal(t, "Friday", sum.Dominant)
	assert.Equal(t, 2, sum.DominantCount)
	assert.Equal(t, 50.0, sum.SharePercent)
	assert.Equal(t, []KeyCount{{"Friday", 2}, {"Monday", 1}, {"Sunday", 1}}, sum.Top)

	_, err = DescribeDay([]processor.CleanedTrip{trip("", 1, 1, "", "")})
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDurationHistogram(t *testing.T) {
	bins, err := DurationHistogram([]float64{-3, 0, 5, 9.99, 10, 55, 60, 61, 300}, 60, 6)
	require.NoError(t, err)
	require.Len(t, bins, 6)

	assert.Equal(t, Bin{Lower: 0, Upper: 10, Count: 3}, bins[0])
	assert.Equal(t, 1, bins[1].Count)
	// 上界 60 落在最后一个区间
	assert.Equal(t, Bin{Lower: 50, Upper: 60, Count: 2}, bins[5])

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)

	_, err = DurationHistogram([]float64{500}, 60, 6)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestOverview(t *testing.T) {
	raw := loadTable(t, [][]string{
		{"ride_id", "started_at", "ended_at", "end_lat", "note"},
		{"a", "2024-01-03 10:00:00", "2024-01-03 10:30:00", "41.9", ""},
		{"b", "2024-01-01 08:00:00", "2024-01-01 08:10:00", "41.8", ""},
		{"c", "2024-01-05 12:00:00", "2024-01-05 11:00:00", "", ""},
	})
	res, err := processor.NewCleaner(processor.DefaultOptions(), nil).Run(raw)
	require.NoError(t, err)

	ov := Overview(raw, res)
	assert.Equal(t, 3, ov.Rows)
	assert.Equal(t, 5, ov.Columns)
	// end_lat 与全缺失的 note 视为数值列
	assert.Equal(t, 2, ov.NumericColumns)
	assert.Equal(t, 3, ov.CategoricalColumns)
	assert.Equal(t, 2, ov.CleanRows)
	assert.Equal(t, 8, ov.CleanColumns)
	require.NotNil(t, ov.PeriodStart)
	assert.Equal(t, "2024-01-01 08:00:00", *ov.PeriodStart)
	assert.Equal(t, "2024-01-03 10:00:00", *ov.PeriodEnd)

	degraded := Overview(raw, &processor.Result{Clean: raw})
	assert.Nil(t, degraded.PeriodStart)
}

func TestDistanceSummary(t *testing.T) {
	cols := CoordinateColumns{StartLat: "start_lat", StartLng: "start_lng", EndLat: "end_lat", EndLng: "end_lng"}
	a := trip("Monday", 8, 10, "", "")
	a.Fields = map[string]string{"start_lat": "0", "start_lng": "0", "end_lat": "0", "end_lng": "1"}
	b := trip("Monday", 8, 10, "", "")
	b.Fields = map[string]string{"start_lat": "41.88", "start_lng": "-87.63"}

	stats := DistanceSummary([]processor.CleanedTrip{a, b}, cols)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.Skipped)
	// 赤道上 1 度约 111.2 公里
	assert.InDelta(t, 111.2, stats.MaxKm, 0.1)
	assert.Equal(t, stats.MaxKm, stats.MeanKm)

	none := DistanceSummary([]processor.CleanedTrip{a}, CoordinateColumns{})
	assert.Zero(t, none.Count)
}

func TestGreatCircleKm(t *testing.T) {
	assert.Zero(t, GreatCircleKm(41.88, -87.63, 41.88, -87.63))
	assert.InDelta(t, GreatCircleKm(0, 0, 10, 10), GreatCircleKm(10, 10, 0, 0), 1e-9)
}
