package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/recordly/exportd/internal/domain"
)

const excelSheet = "Export"

// ExcelSerializer renders records as a single-sheet workbook with a bold
// header row of display labels.
type ExcelSerializer struct{}

func (s *ExcelSerializer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (s *ExcelSerializer) FileExtension() string { return "xlsx" }

func (s *ExcelSerializer) Write(w io.Writer, records []domain.Record, fields []domain.FieldSpec) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(excelSheet)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	header := make([]any, len(fields))
	for i, fs := range fields {
		header[i] = fs.Label
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(fields), 1)
		_ = f.SetCellStyle(excelSheet, "A1", end, style)
	}

	for r, rec := range records {
		row := make([]any, len(fields))
		for i, fs := range fields {
			row[i] = rec[fs.Name]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(excelSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	return f.Write(w)
}
