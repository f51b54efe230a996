package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleFrame(t *testing.T) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords([][]string{
		{"ride_id", "start_station_name", "trip_duration_min"},
		{"r1", "Clark St", "5"},
		{"r2", "", "12.5"},
	},
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{""}),
	)
	require.NoError(t, df.Err)
	return df
}

func TestHasColumns(t *testing.T) {
	df := sampleFrame(t)

	assert.True(t, HasColumn(df, "ride_id"))
	assert.False(t, HasColumn(df, "end_lat"))
	assert.True(t, HasColumns(df, "ride_id", "trip_duration_min"))
	assert.False(t, HasColumns(df, "ride_id", "end_lat"))
	assert.True(t, HasColumns(df))
	assert.True(t, Contains([]int{1, 2, 3}, 2))
}

func TestSaveToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clean.csv")
	require.NoError(t, SaveToCSV(sampleFrame(t), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ride_id,start_station_name,trip_duration_min", lines[0])
	assert.Equal(t, "r1,Clark St,5", lines[1])
}

func TestSaveToExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean.xlsx")
	require.NoError(t, SaveToExcel(sampleFrame(t), path, "clean"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"clean"}, f.GetSheetList())
	rows, err := f.GetRows("clean")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ride_id", "start_station_name", "trip_duration_min"}, rows[0])
	assert.Equal(t, "Clark St", rows[1][1])

	// 缺失值写成空单元格
	v, err := f.GetCellValue("clean", "B3")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSaveRejectsBrokenFrame(t *testing.T) {
	broken := dataframe.DataFrame{Err: assert.AnError}
	dir := t.TempDir()

	assert.Error(t, SaveToCSV(broken, filepath.Join(dir, "x.csv")))
	assert.Error(t, SaveToExcel(broken, filepath.Join(dir, "x.xlsx"), ""))
}

type failingCloser struct {
	bytes.Buffer
	err error
}

func (c *failingCloser) Close() error { return c.err }

func TestWriteCSVReportsCloseError(t *testing.T) {
	w := &failingCloser{err: errors.New("disk full")}
	err := writeCSV(sampleFrame(t), w)
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, w.String(), "ride_id")

	ok := &failingCloser{}
	require.NoError(t, writeCSV(sampleFrame(t), ok))
}
