// =============================================================================
// SENA Material Requisitions - Bulk Import Grouping
// =============================================================================
//
// This module turns a parsed upload table into Import Groups: batches of
// materials that share the same instructor, program, lot and training.
//
// CARRY-FORWARD:
//   Spreadsheet users usually fill the context columns only on the first row
//   of a block (or merge those cells). A blank context cell therefore keeps
//   the value of the previous row. The working context starts from whatever
//   the user already typed in the active draft.
//
// GROUPING:
//   Rows are keyed by instructor + program + effective lot + training. The
//   groups are returned in the order their key was first seen, so a single
//   file can produce several independent records.
//
// =============================================================================

package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/csvparser"
	"github.com/jllhz8912/sena/internal/types"
)

// ErrNoValidRows is returned when no row produced a material.
var ErrNoValidRows = errors.New("no valid data rows found")

// keySep joins the grouping key parts. It is the ASCII unit separator, which
// does not occur in typed text.
const keySep = "\x1f"

// minRowFields is the shortest row considered data.
const minRowFields = 3

// =============================================================================
// CONTEXT AND GROUPS
// =============================================================================

// Context is the header shared by a block of rows: instructor, program,
// lot (catalog or custom) and training.
type Context struct {
	Instructor  string `json:"instructor"`
	Program     string `json:"program"`
	Lot         string `json:"lot"`
	IsCustomLot bool   `json:"isCustomLot"`
	CustomLot   string `json:"customLot"`
	Training    string `json:"training"`
}

// EffectiveLot returns the custom lot when one is set, else the catalog lot.
func (c Context) EffectiveLot() string {
	if c.IsCustomLot {
		return c.CustomLot
	}
	return c.Lot
}

// Key returns the grouping key of the context.
func (c Context) Key() string {
	return strings.Join([]string{c.Instructor, c.Program, c.EffectiveLot(), c.Training}, keySep)
}

// Group is one reconstructed block of materials.
type Group struct {
	Header    Context          `json:"header"`
	Materials []types.Material `json:"materials"`
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer groups upload rows using the catalog enumerations.
type Importer struct {
	catalog *config.Catalog
	logger  *zap.Logger
	newID   func() string
}

// New creates an Importer.
func New(catalog *config.Catalog, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		catalog: catalog,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ImportText parses delimited text and groups its rows.
//
// PARAMETERS:
//   - content: The raw file content.
//   - seed:    The context of the active draft (zero value if none).
//
// RETURNS:
//   - The groups in first-seen order.
//   - csvparser errors for unreadable content, a *csvparser.MissingColumnsError
//     when a mandatory column is absent, or ErrNoValidRows.
func (im *Importer) ImportText(content string, seed Context) ([]Group, error) {
	table, err := csvparser.Parse(content)
	if err != nil {
		return nil, err
	}
	return im.ImportTable(table, seed)
}

// ImportTable groups the rows of an already parsed table.
//
// PROCESS:
//  1. Resolve the header against the catalog synonyms
//  2. Walk the rows, updating the working context from non-blank cells
//  3. Append each named material to the group of the current context
func (im *Importer) ImportTable(table *csvparser.Table, seed Context) ([]Group, error) {
	cols, err := csvparser.ResolveHeader(table.Header, im.catalog)
	if err != nil {
		return nil, err
	}

	var (
		groups     = make(map[string]*Group)
		groupOrder []string
		current    = seed
		skipped    int
	)

	for i, row := range table.Rows {
		if len(row) < minRowFields || isBlank(row) {
			skipped++
			continue
		}

		current = im.carryForward(current, cols, row)

		name, _ := cols.Cell(row, "material")
		if name == "" {
			im.logger.Debug("row without material name skipped", zap.Int("row", i+2))
			skipped++
			continue
		}

		key := current.Key()
		group, exists := groups[key]
		if !exists {
			group = &Group{Header: current}
			groups[key] = group
			groupOrder = append(groupOrder, key)
		}

		unit, _ := cols.Cell(row, "unit")
		desc, _ := cols.Cell(row, "description")
		code, _ := cols.Cell(row, "code")

		group.Materials = append(group.Materials, types.Material{
			ID:                   im.newID(),
			CodeName:             name,
			UnitOfMeasure:        im.catalog.MatchUnit(unit),
			TechnicalDescription: desc,
			UNSPSCCode:           code,
		})
	}

	if len(groupOrder) == 0 {
		return nil, ErrNoValidRows
	}

	result := make([]Group, 0, len(groupOrder))
	for _, key := range groupOrder {
		result = append(result, *groups[key])
	}

	im.logger.Info("upload grouped",
		zap.Int("rows", len(table.Rows)),
		zap.Int("skipped", skipped),
		zap.Int("groups", len(result)),
	)

	return result, nil
}

// carryForward overwrites the context with the non-blank context cells of
// row. Unknown programs are ignored; unknown lots become custom lots.
func (im *Importer) carryForward(ctx Context, cols csvparser.Columns, row []string) Context {
	if v, _ := cols.Cell(row, "instructor"); v != "" {
		ctx.Instructor = v
	}
	if v, _ := cols.Cell(row, "training"); v != "" {
		ctx.Training = v
	}

	if v, _ := cols.Cell(row, "program"); v != "" {
		if p, ok := im.catalog.MatchProgram(v); ok {
			ctx.Program = p
		} else {
			im.logger.Debug("unknown program ignored", zap.String("program", v))
		}
	}

	if v, _ := cols.Cell(row, "lot"); v != "" {
		if l, ok := im.catalog.MatchLot(v); ok {
			ctx.Lot = l
			ctx.IsCustomLot = false
			ctx.CustomLot = ""
		} else {
			ctx.Lot = ""
			ctx.IsCustomLot = true
			ctx.CustomLot = v
		}
	}

	return ctx
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// CountMaterials returns the total number of materials across groups.
func CountMaterials(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Materials)
	}
	return n
}

// Describe renders a one-line summary of a group for previews.
func (g Group) Describe() string {
	lot := orDash(g.Header.EffectiveLot())
	if g.Header.IsCustomLot {
		lot += " (personalizado)"
	}
	return fmt.Sprintf("%s | %s | %s | %s: %d materiales",
		orDash(g.Header.Instructor), orDash(g.Header.Program), lot, orDash(g.Header.Training), len(g.Materials))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
