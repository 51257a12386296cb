// =============================================================================
// SENA Material Requisitions - XLSX Upload Parser
// =============================================================================
//
// This module reads bulk-upload workbooks (.xlsx) so instructors can fill the
// template in Excel and upload it without exporting to CSV first. The rows
// it returns feed the same header resolution and grouping as a CSV upload.
//
// SHEET SELECTION:
//   The first sheet whose name does not start with "_" is read. Helper
//   sheets (lists for data validation, notes) can be hidden from the parser
//   by prefixing their names with "_".
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jllhz8912/sena/internal/csvparser"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads the upload sheet of the workbook at path.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//
// RETURNS:
//   - The sheet as a csvparser.Table (header row plus data rows).
//   - csvparser.ErrEmptyFile / csvparser.ErrMissingDataRows for sheets
//     without content.
//   - An error if the file cannot be opened.
func ParseFile(path string) (*csvparser.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads the upload sheet of a workbook from r.
func Parse(r io.Reader) (*csvparser.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := uploadSheet(f)
	if sheet == "" {
		return nil, csvparser.ErrEmptyFile
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet '%s': %w", sheet, err)
	}

	return csvparser.FromRows(rows)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// uploadSheet returns the first sheet not prefixed with "_".
func uploadSheet(f *excelize.File) string {
	for _, name := range f.GetSheetList() {
		if !strings.HasPrefix(name, "_") {
			return name
		}
	}
	return ""
}

// IsWorkbook reports whether path names an .xlsx file.
func IsWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
