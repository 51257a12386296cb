// =============================================================================
// SENA Material Requisitions - Bulk Import Pipeline
// =============================================================================
//
// This module orchestrates a bulk upload from file to store, for a single
// file.
//
// IMPORT PIPELINE:
//  1. Read the upload (CSV or XLSX, chosen by extension)
//  2. Decode the text (UTF-8, or Windows-1252 as saved by Excel)
//  3. Resolve the header and group the rows, seeded from the active draft
//  4. Decide how to apply the groups:
//     - several groups and no record being edited: bulk-create one record
//       per group, screening every material for duplicates
//     - otherwise: merge the first group into the draft
//  5. Apply, only once the caller has confirmed the preview
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/csvparser"
	"github.com/jllhz8912/sena/internal/form"
	"github.com/jllhz8912/sena/internal/importer"
	"github.com/jllhz8912/sena/internal/metrics"
	"github.com/jllhz8912/sena/internal/types"
	"github.com/jllhz8912/sena/internal/validation"
	"github.com/jllhz8912/sena/internal/xlsxparser"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Mode is how an upload is applied.
type Mode string

const (
	// ModeMerge merges the first group into the draft.
	ModeMerge Mode = "merge"

	// ModeBulk creates one record per group.
	ModeBulk Mode = "bulk"
)

// Preview is a parsed upload awaiting confirmation.
type Preview struct {
	// FilePath is the upload that was read.
	FilePath string

	// Groups are the reconstructed groups in first-seen order.
	Groups []importer.Group

	// Mode is how Apply will use the groups.
	Mode Mode

	// Rows is the number of data rows in the file, including skipped ones.
	Rows int
}

// MaterialCount sums the materials of all groups.
func (p *Preview) MaterialCount() int {
	return importer.CountMaterials(p.Groups)
}

// Result is the outcome of applying a preview.
type Result struct {
	Mode Mode

	// Created are the records added in bulk mode.
	Created []types.Request

	// Rejected are the materials dropped as duplicates in bulk mode.
	Rejected []types.Material

	// Merged is the number of materials appended to the draft in merge mode.
	Merged int

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	GroupsFound      int
	MaterialsFound   int
	RecordsCreated   int
	MaterialsDropped int
	ProcessingTime   time.Duration
}

// Store is the part of the record store bulk creation writes to.
type Store interface {
	All() []types.Request
	AddMany(ctx context.Context, records []types.Request) error
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the bulk import pipeline.
type Converter struct {
	importer *importer.Importer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// New creates a Converter.
func New(catalog *config.Catalog, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		importer: importer.New(catalog, logger),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Preview reads and groups an upload without changing anything.
//
// PARAMETERS:
//   - path:  The .csv or .xlsx upload.
//   - draft: The active draft; its header seeds the carry-forward context
//     and its editing state decides the mode.
//
// RETURNS:
//   - The preview.
//   - The parser/importer errors (ErrEmptyFile, ErrMissingDataRows,
//     MissingColumnsError, ErrNoValidRows) or a read error.
func (c *Converter) Preview(path string, draft *form.Draft) (*Preview, error) {
	table, err := c.readTable(path)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	groups, err := c.importer.ImportTable(table, draft.Context())
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	metrics.ImportsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.ImportGroupsTotal.Add(float64(len(groups)))

	p := &Preview{
		FilePath: path,
		Groups:   groups,
		Mode:     ModeMerge,
		Rows:     len(table.Rows),
	}
	if len(groups) > 1 && !draft.IsEditing() {
		p.Mode = ModeBulk
	}

	c.logger.Info("upload parsed",
		zap.String("file", path),
		zap.String("mode", string(p.Mode)),
		zap.Int("groups", len(groups)),
		zap.Int("materials", p.MaterialCount()),
	)
	return p, nil
}

// Apply carries out a confirmed preview.
//
// In bulk mode the new records are prepended to the store. In merge mode the
// first group is merged into the draft and nothing is saved; the caller
// submits the draft.
func (c *Converter) Apply(ctx context.Context, p *Preview, draft *form.Draft, store Store) (Result, error) {
	startTime := time.Now()
	result := Result{Mode: p.Mode}
	result.Stats.GroupsFound = len(p.Groups)
	result.Stats.MaterialsFound = p.MaterialCount()

	switch p.Mode {
	case ModeBulk:
		created, rejected := c.bulkCreate(p.Groups, store.All())
		if err := store.AddMany(ctx, created); err != nil {
			return result, fmt.Errorf("failed to save imported records: %w", err)
		}
		result.Created = created
		result.Rejected = rejected

	default:
		draft.ApplyGroup(p.Groups[0])
		result.Merged = len(p.Groups[0].Materials)
	}

	result.Stats.RecordsCreated = len(result.Created)
	result.Stats.MaterialsDropped = len(result.Rejected)
	result.Stats.ProcessingTime = time.Since(startTime)

	c.logger.Info("upload applied",
		zap.String("mode", string(result.Mode)),
		zap.Int("created", result.Stats.RecordsCreated),
		zap.Int("merged", result.Merged),
		zap.Int("duplicates", result.Stats.MaterialsDropped),
		zap.Duration("elapsed", result.Stats.ProcessingTime),
	)
	return result, nil
}

// bulkCreate turns each group into a record. Materials repeating a persisted
// item of the lot, or an item already accepted from this upload, are
// rejected; groups left without materials create nothing.
func (c *Converter) bulkCreate(groups []importer.Group, existing []types.Request) ([]types.Request, []types.Material) {
	now := c.now().UnixMilli()
	pool := append([]types.Request(nil), existing...)

	var created []types.Request
	var rejected []types.Material
	for _, g := range groups {
		lot := g.Header.EffectiveLot()
		accepted, dropped := validation.NewDetector(pool, lot, "", nil).Screen(g.Materials)
		rejected = append(rejected, dropped...)

		if len(accepted) == 0 {
			c.logger.Warn("group skipped: every material is a duplicate", zap.String("group", g.Describe()))
			continue
		}

		r := types.Request{
			ID:             c.newID(),
			InstructorName: g.Header.Instructor,
			ProgramType:    g.Header.Program,
			LotType:        lot,
			TrainingName:   g.Header.Training,
			Materials:      accepted,
			CreatedAt:      now,
		}
		created = append(created, r)
		pool = append(pool, r)
	}
	return created, rejected
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readTable parses the upload at path according to its extension.
func (c *Converter) readTable(path string) (*csvparser.Table, error) {
	if xlsxparser.IsWorkbook(path) {
		return xlsxparser.ParseFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return csvparser.Parse(decodeText(data))
}

// decodeText returns data as a string, converting from Windows-1252 when it
// is not valid UTF-8.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(decoded)
}
