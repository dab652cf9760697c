// Package qaimport parses bulk QA upload files. Two formats are accepted,
// CSV and XLSX, both with a header row naming the columns 问题 (question),
// 答案 (answer) and optionally 关键词 (alias). Column order is free.
package qaimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	ColumnQuestion = "问题"
	ColumnAnswer   = "答案"
	ColumnAlias    = "关键词"
)

var ErrInvalidFormat = errors.New("unsupported import format")

// MissingColumnError reports a required header column absent from the file.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("import file is missing required column %q", e.Column)
}

type Row struct {
	Question string
	Answer   string
	Alias    string
}

// Parse dispatches on the file extension of name.
func Parse(name string, r io.Reader) ([]Row, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return ParseCSV(r)
	case strings.HasSuffix(strings.ToLower(name), ".xlsx"):
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, name)
	}
}

func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return fromRecords(records)
}

// ParseXLSX reads the first sheet of an xlsx workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer book.Close()
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidFormat)
	}
	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidFormat)
	}
	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(name)] = i
	}
	questionCol, ok := cols[ColumnQuestion]
	if !ok {
		return nil, &MissingColumnError{Column: ColumnQuestion}
	}
	answerCol, ok := cols[ColumnAnswer]
	if !ok {
		return nil, &MissingColumnError{Column: ColumnAnswer}
	}
	aliasCol, hasAlias := cols[ColumnAlias]

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := Row{
			Question: cell(record, questionCol),
			Answer:   cell(record, answerCol),
		}
		if hasAlias {
			row.Alias = cell(record, aliasCol)
		}
		// Fully blank lines are common trailing noise in exported sheets.
		if row.Question == "" && row.Answer == "" && row.Alias == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
