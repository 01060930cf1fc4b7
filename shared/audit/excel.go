package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const columnWidth = 18

// ExcelizeWriter streams sheets with excelize. Each sheet is flushed before
// the next one starts.
type ExcelizeWriter struct {
	file        *excelize.File
	stream      *excelize.StreamWriter
	sheet       string
	row         int
	headerStyle int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}
	if err := w.flush(); err != nil {
		return err
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	stream, err := w.file.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("stream sheet %s: %w", name, err)
	}
	w.stream = stream
	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes bold column headers and sets the column widths.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.stream == nil {
		return fmt.Errorf("no active sheet")
	}
	if w.headerStyle == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		w.headerStyle = style
	}
	if err := w.stream.SetColWidth(1, len(columns), columnWidth); err != nil {
		return err
	}

	values := make([]interface{}, len(columns))
	for i, col := range columns {
		values[i] = col
	}
	return w.setRow(values, excelize.RowOpts{StyleID: w.headerStyle})
}

func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.stream == nil {
		return fmt.Errorf("no active sheet")
	}
	return w.setRow(row)
}

func (w *ExcelizeWriter) setRow(values []interface{}, opts ...excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, values, opts...); err != nil {
		return fmt.Errorf("write %s!%s: %w", w.sheet, cell, err)
	}
	w.row++
	return nil
}

func (w *ExcelizeWriter) flush() error {
	if w.stream == nil {
		return nil
	}
	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet %s: %w", w.sheet, err)
	}
	w.stream = nil
	return nil
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) SaveToFile(path string) error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
