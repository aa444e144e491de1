package services

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportSheetName is the single sheet the tabular export is written to.
const ExportSheetName = "Submissions"

// DecodeTable reads the export sheet of an xlsx workbook, falling back to the
// first sheet. Row one is the header; blank rows are skipped. Cells right of
// the last header cell get a generated column name, as do blank and repeated
// headers, so no cell is lost when the table is rewritten.
func DecodeTable(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := ExportSheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return &Table{}, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	body := make([][]string, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		if !isBlankRow(raw) {
			body = append(body, raw)
		}
	}
	return normalizeTable(rows[0], body), nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// EncodeTable writes t to a new single-sheet xlsx workbook.
func EncodeTable(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheetName); err != nil {
		return nil, err
	}

	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(ExportSheetName, cell, &row)
	}

	if err := writeRow(1, t.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, values := range t.Rows {
		if err := writeRow(i+2, values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadTableFile loads a local export. A missing file is an empty table.
func ReadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeTable(data)
}

// WriteTableFile replaces the export at path through a temp file and rename,
// so readers never see a half-written workbook.
func WriteTableFile(path string, t *Table) error {
	data, err := EncodeTable(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
