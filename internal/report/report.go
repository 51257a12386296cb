// Package report computes the read-only aggregates shown to coordinators:
// summary counts, material distributions by lot and program, pivot matrices
// and the filtered record list. Every function is pure over a snapshot.
package report

import (
	"sort"
	"strings"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/types"
)

// Labels used for records with a blank lot or program.
const (
	NoLotLabel     = "Sin Lote"
	NoProgramLabel = "Sin Programa"
)

// =============================================================================
// SUMMARY
// =============================================================================

// Summary holds the headline counts of a snapshot.
type Summary struct {
	Records     int `json:"records"`
	Materials   int `json:"materials"`
	Instructors int `json:"instructors"`
}

// Summarize counts records, materials and distinct instructors. Instructor
// names are compared trimmed and lower-cased.
func Summarize(records []types.Request) Summary {
	instructors := make(map[string]struct{})
	for _, r := range records {
		instructors[strings.ToLower(strings.TrimSpace(r.InstructorName))] = struct{}{}
	}
	return Summary{
		Records:     len(records),
		Materials:   types.CountMaterials(records),
		Instructors: len(instructors),
	}
}

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

// Slice is one entry of a distribution.
type Slice struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ByLot distributes the material count over lots.
func ByLot(records []types.Request) []Slice {
	return distribute(records, func(r types.Request) string {
		if r.LotType == "" {
			return NoLotLabel
		}
		return r.LotType
	})
}

// ByProgram distributes the material count over programs.
func ByProgram(records []types.Request) []Slice {
	return distribute(records, func(r types.Request) string {
		if r.ProgramType == "" {
			return NoProgramLabel
		}
		return r.ProgramType
	})
}

// distribute sums material counts by label and sorts by count descending,
// then label ascending. Percentages are of the grand total, 0 when the
// total is 0.
func distribute(records []types.Request, labelOf func(types.Request) string) []Slice {
	counts := make(map[string]int)
	var order []string
	total := 0

	for _, r := range records {
		label := labelOf(r)
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label] += len(r.Materials)
		total += len(r.Materials)
	}

	slices := make([]Slice, 0, len(order))
	for _, label := range order {
		s := Slice{Label: label, Count: counts[label]}
		if total > 0 {
			s.Percent = float64(s.Count) / float64(total) * 100
		}
		slices = append(slices, s)
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].Count != slices[j].Count {
			return slices[i].Count > slices[j].Count
		}
		return slices[i].Label < slices[j].Label
	})
	return slices
}

// =============================================================================
// PIVOT MATRIX
// =============================================================================

// RowDimension selects the row field of a pivot matrix.
type RowDimension string

const (
	RowsByProgram  RowDimension = "program"
	RowsByTraining RowDimension = "training"
)

// ParseRowDimension accepts "program" or "training" (case-insensitive).
func ParseRowDimension(s string) (RowDimension, bool) {
	switch RowDimension(strings.ToLower(strings.TrimSpace(s))) {
	case RowsByProgram:
		return RowsByProgram, true
	case RowsByTraining:
		return RowsByTraining, true
	}
	return "", false
}

func (d RowDimension) valueOf(r types.Request) string {
	if d == RowsByTraining {
		return r.TrainingName
	}
	return r.ProgramType
}

// Matrix is a rows x lots grid of material counts.
type Matrix struct {
	Dimension RowDimension `json:"dimension"`

	// Rows and Columns are the distinct row values and lots, sorted.
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`

	// Cells[i][j] is the material count for Rows[i] x Columns[j].
	Cells [][]int `json:"cells"`

	RowTotals    []int `json:"rowTotals"`
	ColumnTotals []int `json:"columnTotals"`
	GrandTotal   int   `json:"grandTotal"`
}

// BuildMatrix cross-tabulates material counts by the row dimension and lot.
// Every row/column pair is present, zero-filled when nothing matches.
func BuildMatrix(records []types.Request, dim RowDimension) Matrix {
	rows := distinct(records, dim.valueOf)
	cols := distinct(records, func(r types.Request) string { return r.LotType })

	rowIdx := indexOf(rows)
	colIdx := indexOf(cols)

	m := Matrix{
		Dimension:    dim,
		Rows:         rows,
		Columns:      cols,
		Cells:        make([][]int, len(rows)),
		RowTotals:    make([]int, len(rows)),
		ColumnTotals: make([]int, len(cols)),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(cols))
	}

	for _, r := range records {
		m.Cells[rowIdx[dim.valueOf(r)]][colIdx[r.LotType]] += len(r.Materials)
	}

	for i, row := range m.Cells {
		for j, n := range row {
			m.RowTotals[i] += n
			m.ColumnTotals[j] += n
			m.GrandTotal += n
		}
	}
	return m
}

// Cell returns the count at (row, lot), or 0 when either is absent.
func (m Matrix) Cell(row, lot string) int {
	i := sort.SearchStrings(m.Rows, row)
	j := sort.SearchStrings(m.Columns, lot)
	if i >= len(m.Rows) || m.Rows[i] != row || j >= len(m.Columns) || m.Columns[j] != lot {
		return 0
	}
	return m.Cells[i][j]
}

func distinct(records []types.Request, valueOf func(types.Request) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		v := valueOf(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

// =============================================================================
// LIST FILTERING
// =============================================================================

// Criteria narrows the record list. Empty fields match everything.
type Criteria struct {
	// Search is matched case-insensitively as a substring of the
	// instructor, training and lot.
	Search string

	// Lot and Program must match exactly.
	Lot     string
	Program string
}

// Filter returns the records matching c, in store order.
func Filter(records []types.Request, c Criteria) []types.Request {
	needle := strings.ToLower(c.Search)

	var out []types.Request
	for _, r := range records {
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.InstructorName), needle) &&
			!strings.Contains(strings.ToLower(r.TrainingName), needle) &&
			!strings.Contains(strings.ToLower(r.LotType), needle) {
			continue
		}
		if c.Lot != "" && r.LotType != c.Lot {
			continue
		}
		if c.Program != "" && r.ProgramType != c.Program {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LotOptions returns the catalog lots plus every lot in use, deduplicated
// and sorted.
func LotOptions(catalog *config.Catalog, records []types.Request) []string {
	all := make([]types.Request, 0, len(catalog.Lots)+len(records))
	for _, l := range catalog.Lots {
		all = append(all, types.Request{LotType: l})
	}
	all = append(all, records...)
	return distinct(all, func(r types.Request) string { return r.LotType })
}
