// =============================================================================
// SENA Material Requisitions - Delimited Text Parser
// =============================================================================
//
// This module turns the raw text of a bulk-upload file into a header row and
// a list of data rows, and resolves the header cells to logical columns.
// It handles the formats spreadsheet users actually produce:
//   - Comma or semicolon delimiters (Excel in Spanish locales uses ";")
//   - A leading byte-order mark from "CSV UTF-8" exports
//   - CRLF or LF line endings, blank lines anywhere
//   - Quoted fields with doubled quotes and embedded delimiters
//   - Header text in any case, with or without accents
//
// FEATURES:
//   - Delimiter detection from the header line
//   - Header synonyms are data-driven (see config.Catalog.Columns)
//   - Each header cell is claimed by at most one logical column
//
// NOTE:
//   Lines are split before fields are parsed, so a quoted field cannot span
//   physical lines.
//
// =============================================================================

package csvparser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jllhz8912/sena/internal/config"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyFile is returned when the file has no non-blank lines.
	ErrEmptyFile = errors.New("file is empty")

	// ErrMissingDataRows is returned when the file has a header but no data.
	ErrMissingDataRows = errors.New("file has a header row but no data rows")

	// ErrMissingRequiredColumns is matched by *MissingColumnsError.
	ErrMissingRequiredColumns = errors.New("required columns are missing")
)

// MissingColumnsError names the mandatory columns the header lacks.
type MissingColumnsError struct {
	// Columns holds the template labels of the missing columns.
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredColumns, strings.Join(e.Columns, ", "))
}

// Is makes errors.Is(err, ErrMissingRequiredColumns) hold.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingRequiredColumns
}

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table represents a parsed upload: one header row plus data rows.
type Table struct {
	// Header contains the header cells as written in the file.
	Header []string

	// Rows contains the data rows, in file order, blank lines removed.
	Rows [][]string

	// Delimiter is the detected field separator.
	Delimiter rune
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the text content of an upload.
//
// PARAMETERS:
//   - content: The complete file content.
//
// RETURNS:
//   - The parsed table.
//   - ErrEmptyFile when there are no non-blank lines.
//   - ErrMissingDataRows when only the header line is present.
//
// PARSING PROCESS:
//  1. Strip a leading byte-order mark
//  2. Split on CRLF or LF and drop blank lines
//  3. Detect the delimiter from the first line
//  4. Parse every line into fields
func Parse(content string) (*Table, error) {
	lines := SplitLines(StripBOM(content))

	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}
	if len(lines) < 2 {
		return nil, ErrMissingDataRows
	}

	delim := DetectDelimiter(lines[0])

	table := &Table{
		Header:    ParseLine(lines[0], delim),
		Rows:      make([][]string, 0, len(lines)-1),
		Delimiter: delim,
	}
	for _, line := range lines[1:] {
		table.Rows = append(table.Rows, ParseLine(line, delim))
	}

	return table, nil
}

// FromRows builds a table from rows that were already split into cells,
// as read from a spreadsheet. Cells are trimmed and all-blank rows dropped,
// so the same errors apply as for Parse.
func FromRows(rows [][]string) (*Table, error) {
	var kept [][]string
	for _, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				blank = false
			}
		}
		if !blank {
			kept = append(kept, cells)
		}
	}

	if len(kept) == 0 {
		return nil, ErrEmptyFile
	}
	if len(kept) < 2 {
		return nil, ErrMissingDataRows
	}

	return &Table{Header: kept[0], Rows: kept[1:]}, nil
}

// StripBOM removes a leading U+FEFF.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

// SplitLines splits on CRLF or LF and drops lines that are blank after
// trimming whitespace.
func SplitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DetectDelimiter picks ';' only when the line has strictly more semicolons
// than commas.
func DetectDelimiter(line string) rune {
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// ParseLine splits one line into fields.
//
// A quote toggles quoted mode, a doubled quote inside quoted text is a
// literal quote, and the delimiter only separates fields outside quotes.
// Every field is trimmed of surrounding whitespace.
//
// EXAMPLE:
//
//	ParseLine(`Ana, "Teclado ""USB"", 104", Unidad`, ',')
//	-> ["Ana", `Teclado "USB", 104`, "Unidad"]
func ParseLine(line string, delim rune) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	chars := []rune(line)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(chars) && chars[i+1] == '"' {
				current.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}

// =============================================================================
// HEADER RESOLUTION
// =============================================================================

// Columns maps logical column names to header cell indexes.
type Columns map[string]int

// Cell returns the trimmed value of a logical column in row. The second
// result is false when the column is absent from the header or the row is
// too short.
func (c Columns) Cell(row []string, field string) (string, bool) {
	idx, ok := c[field]
	if !ok || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// Has reports whether the header resolved the logical column.
func (c Columns) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// ResolveHeader resolves the header cells against the catalog synonyms.
//
// PARAMETERS:
//   - header:  The header cells as written in the file.
//   - catalog: Supplies the columns (in resolution order) and their fragments.
//
// RETURNS:
//   - The resolved columns.
//   - A *MissingColumnsError when any required column is unresolved.
//
// RESOLUTION RULES:
//   - Header cells and fragments are compared after Fold.
//   - A column tries its fragments in order; for each fragment the first
//     unclaimed cell containing it wins.
//   - A claimed cell is not considered by later columns.
func ResolveHeader(header []string, catalog *config.Catalog) (Columns, error) {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = Fold(h)
	}

	claimed := make([]bool, len(header))
	cols := make(Columns)
	var missing []string

	for _, col := range catalog.Columns {
		if idx := claim(folded, claimed, col.Fragments); idx >= 0 {
			claimed[idx] = true
			cols[col.Field] = idx
			continue
		}
		if col.Required {
			label := col.Label
			if label == "" {
				label = col.Field
			}
			missing = append(missing, label)
		}
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return cols, nil
}

func claim(folded []string, claimed []bool, fragments []string) int {
	for _, frag := range fragments {
		frag = Fold(frag)
		if frag == "" {
			continue
		}
		for i, cell := range folded {
			if !claimed[i] && strings.Contains(cell, frag) {
				return i
			}
		}
	}
	return -1
}

// Fold lower-cases, trims and removes diacritics, so "Descripción Técnica"
// and "descripcion tecnica" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
