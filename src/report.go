package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/api"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/report"
)

type reportOptions struct {
	TopMissing int
	HistMax    float64
	HistBins   int
}

// qualityReport report 命令的输出
type qualityReport struct {
	Overview   report.DatasetOverview  `json:"overview"`
	Missing    []report.MissingColumn  `json:"missing"`
	Duplicates report.DuplicateSummary `json:"duplicates"`
	Log        processor.CleaningLog   `json:"cleaning_log"`
	Histogram  []report.Bin            `json:"duration_histogram"`

	Duration *report.DurationSummary `json:"trip_duration_min"` // 无数据时为 null
	Hour     *report.HourSummary     `json:"start_hour"`
	Day      *report.DaySummary      `json:"day_of_week"`
	Distance report.DistanceStats    `json:"distance"`

	Charts map[string]interface{} `json:"charts"`
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the data quality report and summary tables as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			raw, res, err := a.load()
			if err != nil {
				return err
			}
			rep, err := buildReport(raw, res, a.cfg.Options(a.dcfg).Aliases, a.coordinates(), opts)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.TopMissing, "top-missing", 0, "only list the N columns with the most missing values (0 = all)")
	cmd.Flags().Float64Var(&opts.HistMax, "hist-max", 120, "upper bound in minutes of the raw duration histogram")
	cmd.Flags().IntVar(&opts.HistBins, "hist-bins", 40, "number of histogram bins")

	return cmd
}

// buildReport 汇总质量报告，没有可用行程时对应部分为空
func buildReport(raw dataframe.DataFrame, res *processor.Result, aliases processor.AliasTable, coords report.CoordinateColumns, opts *reportOptions) (*qualityReport, error) {
	rep := &qualityReport{
		Overview:   report.Overview(raw, res),
		Missing:    report.MissingReport(raw),
		Duplicates: report.DuplicateReport(raw),
		Log:        res.Log,
		Distance:   report.DistanceSummary(res.Trips, coords),
		Charts:     map[string]interface{}{},
	}
	if opts.TopMissing > 0 && opts.TopMissing < len(rep.Missing) {
		rep.Missing = rep.Missing[:opts.TopMissing]
	}

	durations := processor.RawDurations(raw, aliases)
	hist, err := report.DurationHistogram(durations, opts.HistMax, opts.HistBins)
	if err != nil && !errors.Is(err, report.ErrNoData) {
		return nil, err
	}
	rep.Histogram = hist

	if len(res.Trips) == 0 {
		return rep, nil
	}
	if d, err := report.DescribeDuration(res.Trips); err == nil {
		rep.Duration = &d
	}
	if h, err := report.DescribeHour(res.Trips); err == nil {
		rep.Hour = &h
	}
	if d, err := report.DescribeDay(res.Trips); err == nil {
		rep.Day = &d
	}

	for _, name := range api.ChartNames {
		data, err := api.ChartData(name, res.Trips)
		if err != nil {
			return nil, err
		}
		rep.Charts[name] = data
	}
	return rep, nil
}
