package core

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet every export page writes to.
const SheetName = "Export"

// xlsxPage writes one workbook through excelize's stream writer, which keeps
// row data in a temp file instead of the in-memory cell model.
type xlsxPage struct {
	path   string
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

// NewXLSXPage creates a workbook with a single "Export" sheet.
func NewXLSXPage(path string) (PageWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	return &xlsxPage{path: path, file: f, stream: sw}, nil
}

func (p *xlsxPage) WriteRow(values []string) error {
	p.row++
	cell, err := excelize.CoordinatesToCellName(1, p.row)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return p.stream.SetRow(cell, row)
}

func (p *xlsxPage) Close() error {
	if err := p.stream.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := p.file.SaveAs(p.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return p.file.Close()
}

func (p *xlsxPage) Abort() {
	_ = p.file.Close()
	_ = os.Remove(p.path)
}
