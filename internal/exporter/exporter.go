// =============================================================================
// SENA Material Requisitions - Export Module
// =============================================================================
//
// This module renders the record list into the files exchanged between
// instructors, coordinators and spreadsheet users.
//
// OUTPUT FILES:
//   - SENA_Envio_Materiales_<date>.json        Submission file (consolidation input)
//   - Consolidado_Materiales_SENA_<date>.csv   One row per material
//   - Datos_Tablas_Dinamicas_SENA_<date>.csv   One row per record (pivot dataset)
//   - Consolidado_Materiales_SENA_<date>.xlsx  Workbook with both datasets and matrices
//   - plantilla_carga_masiva_sena.csv / .xlsx  Bulk import template
//
// CSV FORMAT:
//   Text fields are always double-quoted with embedded quotes doubled. Ids,
//   counts and dates are written bare. Lines end with "\n" and the last line
//   has no terminator, so the files open identically in every spreadsheet.
//
// =============================================================================

package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/types"
	"github.com/jllhz8912/sena/pkg/utils"
)

// ErrNothingToExport is returned when there are no records to export.
var ErrNothingToExport = errors.New("no data to export")

// File name prefixes.
const (
	SubmissionPrefix = "SENA_Envio_Materiales"
	FlatPrefix       = "Consolidado_Materiales_SENA"
	PivotPrefix      = "Datos_Tablas_Dinamicas_SENA"
	TemplateBaseName = "plantilla_carga_masiva_sena"
)

// dateLayout is the date written in CSV rows.
const dateLayout = "2006-01-02"

// FlatHeader is the header of the per-material CSV.
var FlatHeader = []string{
	"Fecha",
	"Instructor",
	"Programa",
	"Lote",
	"Formación",
	"Código UNSPSC",
	"Nombre Material",
	"Descripción Técnica",
	"Unidad Medida",
	"ID Material",
	"Imagen (Data/URL)",
}

// PivotHeader is the header of the per-record CSV.
var PivotHeader = []string{
	"ID_Solicitud",
	"Instructor",
	"Programa_Formacion",
	"Lote_Categoria",
	"Nombre_Curso_Ficha",
	"Cantidad_Materiales",
	"Fecha_Registro",
}

// TemplateExample is the sample row of the import template, in catalog
// column order.
var TemplateExample = []string{
	"Juan Pérez",
	"Regular",
	"Mecánica",
	"Técnico en Mantenimiento de Motores",
	"Martillo de Bola 2lb",
	"Unidad (Und)",
	"Martillo con cabeza de acero y mango de madera...",
	"27111600",
}

// =============================================================================
// RENDERERS
// =============================================================================

// SubmissionJSON renders records as an indented JSON array.
func SubmissionJSON(records []types.Request) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return data, nil
}

// FlatCSV renders one row per material.
func FlatCSV(records []types.Request) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	lines := []string{strings.Join(FlatHeader, ",")}
	for _, r := range records {
		date := r.Created().Format(dateLayout)
		for _, m := range r.Materials {
			lines = append(lines, strings.Join([]string{
				date,
				quote(r.InstructorName),
				quote(r.ProgramType),
				quote(r.LotType),
				quote(r.TrainingName),
				quote(m.UNSPSCCode),
				quote(m.CodeName),
				quote(m.TechnicalDescription),
				quote(m.UnitOfMeasure),
				m.ID,
				quote(m.ImageURL),
			}, ","))
		}
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// PivotCSV renders one row per record.
func PivotCSV(records []types.Request) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	lines := []string{strings.Join(PivotHeader, ",")}
	for _, r := range records {
		lines = append(lines, strings.Join([]string{
			r.ID,
			quote(r.InstructorName),
			quote(r.ProgramType),
			quote(r.LotType),
			quote(r.TrainingName),
			strconv.Itoa(len(r.Materials)),
			r.Created().Format(dateLayout),
		}, ","))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// TemplateCSV renders the import template: the catalog column labels and one
// example row.
func TemplateCSV(catalog *config.Catalog) []byte {
	header := TemplateHeader(catalog)
	example := make([]string, len(header))
	for i := range header {
		if i < len(TemplateExample) {
			example[i] = field(TemplateExample[i])
		}
	}
	for i, h := range header {
		header[i] = field(h)
	}
	return []byte(strings.Join(header, ",") + "\n" + strings.Join(example, ","))
}

// TemplateHeader returns the import column labels in catalog order.
func TemplateHeader(catalog *config.Catalog) []string {
	header := make([]string, 0, len(catalog.Columns))
	for _, c := range catalog.Columns {
		header = append(header, c.Label)
	}
	return header
}

// quote always quotes s, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// field quotes s only when it contains a delimiter, quote or line break.
func field(s string) string {
	if strings.ContainsAny(s, ",;\"\r\n") {
		return quote(s)
	}
	return s
}

// =============================================================================
// WRITING FILES
// =============================================================================

// Format names an export kind.
type Format string

const (
	FormatJSON         Format = "json"
	FormatCSV          Format = "csv"
	FormatPivot        Format = "pivot"
	FormatXLSX         Format = "xlsx"
	FormatTemplate     Format = "template"
	FormatTemplateXLSX Format = "template-xlsx"
)

// Formats lists the formats accepted by Exporter.Write.
var Formats = []Format{FormatJSON, FormatCSV, FormatPivot, FormatXLSX, FormatTemplate, FormatTemplateXLSX}

// Exporter writes export files into a directory.
type Exporter struct {
	dir     string
	catalog *config.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an Exporter writing into dir.
func New(dir string, catalog *config.Catalog, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, catalog: catalog, logger: logger, now: time.Now}
}

// Write renders records in the given format and writes the file.
//
// PARAMETERS:
//   - format:  The export kind.
//   - records: The records to export (ignored for templates).
//
// RETURNS:
//   - The path of the written file.
//   - ErrNothingToExport when records is empty for a data export.
func (e *Exporter) Write(format Format, records []types.Request) (string, error) {
	now := e.now()

	var (
		data []byte
		name string
		err  error
	)
	switch format {
	case FormatJSON:
		name = utils.ExportFileName(SubmissionPrefix, ".json", now)
		data, err = SubmissionJSON(records)
	case FormatCSV:
		name = utils.ExportFileName(FlatPrefix, ".csv", now)
		data, err = FlatCSV(records)
	case FormatPivot:
		name = utils.ExportFileName(PivotPrefix, ".csv", now)
		data, err = PivotCSV(records)
	case FormatXLSX:
		name = utils.ExportFileName(FlatPrefix, ".xlsx", now)
		data, err = Workbook(records)
	case FormatTemplate:
		name = TemplateBaseName + ".csv"
		data = TemplateCSV(e.catalog)
	case FormatTemplateXLSX:
		name = TemplateBaseName + ".xlsx"
		data, err = TemplateXLSX(e.catalog)
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, name)
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	e.logger.Info("export written",
		zap.String("format", string(format)),
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}
