// reader.go
package file

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInputFile 输入文件缺失或不可读，区别于数据质量问题
var ErrInputFile = errors.New("input file unavailable")

// InputError 输入文件错误
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("读取输入文件 %s 失败: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInputFile }

// NAValues 视为缺失的取值(与 pandas read_csv 的默认集合一致的常用部分)
var NAValues = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "NULL", "null", "None", "<NA>", "<nil>", "#N/A"}

// Options 读取参数
type Options struct {
	Charset   string // utf-8(默认) / latin1 / windows-1252 / gbk
	SheetName string // xlsx 工作表，为空时取第一个
	HeaderRow int    // xlsx 标题行(从 0 开始)
}

// ReadTrips 读取行程文件(csv 或 xlsx)，所有列按字符串加载
func ReadTrips(filePath string, opts Options) (dataframe.DataFrame, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		return ReadXLSX(filePath, opts.SheetName, opts.HeaderRow)
	}
	return ReadCSV(filePath, opts.Charset)
}

// ReadCSV 读取带标题行的 csv
func ReadCSV(filePath, charset string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: err}
	}
	defer f.Close()

	r, err := decodeReader(f, charset)
	if err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: err}
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // 短行在 LoadRecords 中补齐
	records, err := cr.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: err}
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: errors.New("文件为空，没有标题行")}
	}
	for i, record := range records[1:] {
		if len(record) > len(records[0]) {
			return dataframe.DataFrame{}, &InputError{
				Path: filePath,
				Err:  fmt.Errorf("第 %d 行有 %d 个字段，多于标题的 %d 个", i+2, len(record), len(records[0])),
			}
		}
	}

	df := LoadRecords(records)
	if df.Err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: df.Err}
	}
	return df, nil
}

// ReadXLSX 读取 xlsx 的某个工作表
func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: err}
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: errors.New("excel文件中没有工作表")}
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, &InputError{Path: filePath, Err: fmt.Errorf("工作表 %q 不存在", sheetName)}
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	records, err := sheetRecords(sheet, headerRow)
	if err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: err}
	}
	df := dataframe.LoadRecords(records, loadOptions()...)
	if df.Err != nil {
		return dataframe.DataFrame{}, &InputError{Path: filePath, Err: df.Err}
	}
	return df, nil
}

// LoadRecords 从内存记录构建原始数据表(第一行为标题)
// 短行补缺失值，长行截断；只有标题时返回 0 行的表
func LoadRecords(records [][]string) dataframe.DataFrame {
	if len(records) == 0 {
		return dataframe.DataFrame{Err: errors.New("没有标题行")}
	}
	headers := records[0]
	if len(records) == 1 {
		columns := make([]series.Series, len(headers))
		for i, name := range headers {
			columns[i] = series.New([]string{}, series.String, name)
		}
		return dataframe.New(columns...)
	}

	rows := make([][]string, len(records))
	rows[0] = headers
	for i, record := range records[1:] {
		row := make([]string, len(headers))
		copy(row, record)
		rows[i+1] = row
	}
	return dataframe.LoadRecords(rows, loadOptions()...)
}

func loadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(NAValues),
	}
}

// sheetRecords 将xlsx.Sheet转换为记录，短行补空
func sheetRecords(sheet *xlsx.Sheet, headerRow int) ([][]string, error) {
	if len(sheet.Rows) <= headerRow {
		return nil, fmt.Errorf("工作表 %s 没有标题行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	records := make([][]string, 0, len(sheet.Rows)-headerRow)
	records = append(records, headers)
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// decodeReader 按字符集转码为 UTF-8，同时去掉 BOM
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "gbk":
		enc = simplifiedchinese.GBK
	default:
		return nil, fmt.Errorf("不支持的字符集: %s", charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
