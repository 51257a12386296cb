package exporter

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/report"
	"github.com/jllhz8912/sena/internal/types"
)

// Workbook sheet names.
const (
	SheetMaterials      = "Materiales"
	SheetRequests       = "Solicitudes"
	SheetProgramMatrix  = "Matriz Programa"
	SheetTrainingMatrix = "Matriz Formación"
	SheetTemplate       = "Plantilla"
)

// totalLabel heads the totals row and column of the matrix sheets.
const totalLabel = "Total"

// embeddedImageLabel replaces images too long for a worksheet cell.
const embeddedImageLabel = "(imagen embebida)"

// Workbook renders the records as an XLSX workbook: the per-material rows,
// the per-record rows and both pivot matrices.
func Workbook(records []types.Request) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet is renamed rather than deleted so the workbook is
	// never left without one.
	if err := f.SetSheetName(f.GetSheetName(0), SheetMaterials); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", SheetMaterials, err)
	}

	if err := writeRows(f, SheetMaterials, FlatHeader, materialRows(records)); err != nil {
		return nil, err
	}
	if err := addSheet(f, SheetRequests); err != nil {
		return nil, err
	}
	if err := writeRows(f, SheetRequests, PivotHeader, requestRows(records)); err != nil {
		return nil, err
	}

	matrices := []struct {
		sheet string
		label string
		dim   report.RowDimension
	}{
		{SheetProgramMatrix, "Programa", report.RowsByProgram},
		{SheetTrainingMatrix, "Formación", report.RowsByTraining},
	}
	for _, mx := range matrices {
		if err := addSheet(f, mx.sheet); err != nil {
			return nil, err
		}
		header, rows := matrixRows(report.BuildMatrix(records, mx.dim), mx.label)
		if err := writeRows(f, mx.sheet, header, rows); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return toBytes(f)
}

// TemplateXLSX renders the import template as a one-sheet workbook.
func TemplateXLSX(catalog *config.Catalog) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetTemplate); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", SheetTemplate, err)
	}

	example := make([]interface{}, len(TemplateExample))
	for i, v := range TemplateExample {
		example[i] = v
	}
	if err := writeRows(f, SheetTemplate, TemplateHeader(catalog), [][]interface{}{example}); err != nil {
		return nil, err
	}
	return toBytes(f)
}

// =============================================================================
// ROW BUILDERS
// =============================================================================

func materialRows(records []types.Request) [][]interface{} {
	var rows [][]interface{}
	for _, r := range records {
		date := r.Created().Format(dateLayout)
		for _, m := range r.Materials {
			rows = append(rows, []interface{}{
				date, r.InstructorName, r.ProgramType, r.LotType, r.TrainingName,
				m.UNSPSCCode, m.CodeName, m.TechnicalDescription, m.UnitOfMeasure,
				m.ID, cellImage(m.ImageURL),
			})
		}
	}
	return rows
}

// cellImage keeps image URLs that fit in a cell. Embedded images usually do
// not, and a truncated data URL is useless.
func cellImage(url string) string {
	if len(url) > excelize.TotalCellChars {
		return embeddedImageLabel
	}
	return url
}

func requestRows(records []types.Request) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{
			r.ID, r.InstructorName, r.ProgramType, r.LotType, r.TrainingName,
			len(r.Materials), r.Created().Format(dateLayout),
		})
	}
	return rows
}

// matrixRows lays out a matrix with a totals column and a totals row.
func matrixRows(m report.Matrix, rowLabel string) ([]string, [][]interface{}) {
	header := append([]string{rowLabel}, m.Columns...)
	header = append(header, totalLabel)

	rows := make([][]interface{}, 0, len(m.Rows)+1)
	for i, name := range m.Rows {
		row := []interface{}{name}
		for _, n := range m.Cells[i] {
			row = append(row, n)
		}
		rows = append(rows, append(row, m.RowTotals[i]))
	}

	totals := []interface{}{totalLabel}
	for _, n := range m.ColumnTotals {
		totals = append(totals, n)
	}
	rows = append(rows, append(totals, m.GrandTotal))
	return header, rows
}

// =============================================================================
// EXCELIZE HELPERS
// =============================================================================

func addSheet(f *excelize.File, name string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return nil
}

// writeRows writes the header on row 1 and rows from row 2.
func writeRows(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d of %s: %w", i+2, sheet, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}

func toBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
