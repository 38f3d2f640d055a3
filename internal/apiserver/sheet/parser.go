// Package sheet 表格文件摄取管道
//
// 上传 → 按格式解析为统一的行结构 → 可选持久化到用户文件集合 →
// 尽力生成 AI 摘要。解析失败会中止请求，摘要失败永远不会。
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"sheet-insights/internal/shared/model"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat 不在支持列表中的文件格式
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMalformedInput 声称的格式无法解析
	ErrMalformedInput = errors.New("malformed file content")
)

// NormalizeFormat 规范化格式标识："\.CSV" / "csv" / "Csv" → "csv"
func NormalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// SupportedFormat 判断格式是否受支持
func SupportedFormat(format string) bool {
	switch NormalizeFormat(format) {
	case "csv", "xlsx", "xls":
		return true
	}
	return false
}

// ParseSheet 将原始字节按声称的格式解析为行列表
//
// 第一行是表头，后续每行映射为 {列名: 单元格值}；单元格统一为字符串。
// 短行用空串补齐缺失列，超出表头的单元格被丢弃。
// 空文件（无表头）返回 ErrMalformedInput。
func ParseSheet(data []byte, format string) ([]model.Row, error) {
	switch NormalizeFormat(format) {
	case "csv":
		return parseCSV(data)
	case "xlsx", "xls":
		// 旧版二进制 .xls 无法解析，会在 OpenReader 处报 ErrMalformedInput
		return parseExcel(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func parseCSV(data []byte) ([]model.Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // 行宽不齐由下面的补齐逻辑处理
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	rows := []model.Row{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, buildRow(header, record))
	}
	return rows, nil
}

func parseExcel(data []byte) ([]model.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedInput)
	}

	// 只取第一个工作表
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: sheet has no header row", ErrMalformedInput)
	}

	header := records[0]
	rows := []model.Row{}
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, buildRow(header, record))
	}
	return rows, nil
}

// buildRow 按表头组装一行，短行补空串，超长截断
func buildRow(header, record []string) model.Row {
	row := make(model.Row, len(header))
	for i, col := range header {
		if i < len(record) {
			row[col] = record[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
