package report

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

// MissingColumn 单列缺失统计
type MissingColumn struct {
	Column  string  `json:"column"`
	Missing int     `json:"missing"`
	Percent float64 `json:"percent"` // 保留两位小数
}

// MissingReport 每列的缺失数量与百分比，按百分比降序，相同时保持列顺序
func MissingReport(df dataframe.DataFrame) []MissingColumn {
	n := df.Nrow()
	names := df.Names()
	out := make([]MissingColumn, len(names))
	for i, name := range names {
		col := df.Col(name)
		missing := 0
		for r := 0; r < col.Len(); r++ {
			if col.Elem(r).IsNA() {
				missing++
			}
		}
		out[i] = MissingColumn{Column: name, Missing: missing, Percent: percent(missing, n)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percent > out[j].Percent
	})
	return out
}

// DuplicateSummary 完全重复行统计
type DuplicateSummary struct {
	Rows       int     `json:"rows"`
	Duplicates int     `json:"duplicates"` // 与之前某一行所有字段都相同的行数
	Percent    float64 `json:"percent"`
}

// DuplicateReport 统计完全重复的行，两个缺失值视为相等
func DuplicateReport(df dataframe.DataFrame) DuplicateSummary {
	n := df.Nrow()
	cols := columns(df)

	seen := make(map[string]struct{}, n)
	dup := 0
	var b strings.Builder
	for r := 0; r < n; r++ {
		b.Reset()
		for _, col := range cols {
			el := col.Elem(r)
			if el.IsNA() {
				b.WriteString("\x00")
			} else {
				b.WriteString(strconv.Quote(el.String()))
			}
			b.WriteByte(',')
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dup++
			continue
		}
		seen[key] = struct{}{}
	}
	return DuplicateSummary{Rows: n, Duplicates: dup, Percent: percent(dup, n)}
}

// ColumnKind 列的粗略类型
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
)

// ColumnInfo 列结构
type ColumnInfo struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// DatasetOverview 数据集概况
type DatasetOverview struct {
	Rows               int          `json:"rows"`
	Columns            int          `json:"columns"`
	NumericColumns     int          `json:"numeric_columns"`
	CategoricalColumns int          `json:"categorical_columns"`
	CleanRows          int          `json:"clean_rows"`
	CleanColumns       int          `json:"clean_columns"`
	PeriodStart        *string      `json:"period_start"` // 起始列未识别或无数据时为 null
	PeriodEnd          *string      `json:"period_end"`
	Structure          []ColumnInfo `json:"structure"`
}

// Overview 原始表与清洗结果的概况，列数按实际表计算
func Overview(raw dataframe.DataFrame, res *processor.Result) DatasetOverview {
	ov := DatasetOverview{
		Rows:    raw.Nrow(),
		Columns: raw.Ncol(),
	}
	for _, name := range raw.Names() {
		kind := ColumnKindOf(raw.Col(name))
		if kind == KindNumeric {
			ov.NumericColumns++
		} else {
			ov.CategoricalColumns++
		}
		ov.Structure = append(ov.Structure, ColumnInfo{Name: name, Kind: kind})
	}

	if res == nil {
		return ov
	}
	ov.CleanRows = res.Clean.Nrow()
	ov.CleanColumns = res.Clean.Ncol()
	if len(res.Trips) > 0 {
		first, last := res.Trips[0].StartedAt, res.Trips[0].StartedAt
		for _, t := range res.Trips[1:] {
			if t.StartedAt.Before(first) {
				first = t.StartedAt
			}
			if t.StartedAt.After(last) {
				last = t.StartedAt
			}
		}
		s, e := first.Format(processor.Layout), last.Format(processor.Layout)
		ov.PeriodStart, ov.PeriodEnd = &s, &e
	}
	return ov
}

// ColumnKindOf 所有非缺失值都能解析为数字时视为数值列(全缺失也算数值列)
func ColumnKindOf(s series.Series) ColumnKind {
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(el.String()), 64); err != nil {
			return KindCategorical
		}
	}
	return KindNumeric
}

func columns(df dataframe.DataFrame) []series.Series {
	names := df.Names()
	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = df.Col(name)
	}
	return cols
}

// percent part/total*100，保留两位小数；total 为 0 时返回 0
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
