package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// HasColumns 所有列都存在时返回 true
func HasColumns(df dataframe.DataFrame, names ...string) bool {
	cols := df.Names()
	for _, name := range names {
		if !Contains(cols, name) {
			return false
		}
	}
	return true
}

// SaveToExcel 将DataFrame写入xlsx，缺失值留空
func SaveToExcel(df dataframe.DataFrame, filePath, sheetName string) error {
	if df.Err != nil {
		return fmt.Errorf("数据表无效: %w", df.Err)
	}
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("设置工作表名称失败: %w", err)
		}
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("写入列名失败: %w", err)
		}
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < col.Len(); rowIdx++ {
			el := col.Elem(rowIdx)
			if el.IsNA() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, el.Val()); err != nil {
				return fmt.Errorf("写入单元格 %s 失败: %w", cell, err)
			}
		}
	}

	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// SaveToCSV 将DataFrame写入csv
func SaveToCSV(df dataframe.DataFrame, filePath string) error {
	if df.Err != nil {
		return fmt.Errorf("数据表无效: %w", df.Err)
	}
	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败: %w", err)
	}
	return writeCSV(df, f)
}

// writeCSV 写入后关闭 w，写入成功时返回关闭的错误
func writeCSV(df dataframe.DataFrame, w io.WriteCloser) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("关闭CSV文件失败: %w", cerr)
		}
	}()

	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("写入CSV文件失败: %w", err)
	}
	return nil
}

// ensureDir 确保目录存在
func ensureDir(dirPath string) error {
	if dirPath == "" || dirPath == "." {
		return nil
	}
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
