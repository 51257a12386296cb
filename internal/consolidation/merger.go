// =============================================================================
// SENA Material Requisitions - Consolidation Merger
// =============================================================================
//
// This module merges the submission files sent by instructors into the
// coordinator's store.
//
// PROCESS:
//  1. Read and decode every file concurrently
//  2. Keep the items that have an id and a materials list
//  3. Give every record and every material a fresh id
//  4. Report the counts, and append only after the caller confirms
//
// ERROR HANDLING:
//   A file that cannot be read or decoded contributes nothing; the other
//   files are still merged. Only "no valid record in any file" is an error.
//
// IDENTIFIERS:
//   Ids are regenerated unconditionally, so merging the same file twice
//   yields two independent copies instead of a collision.
//
// =============================================================================

package consolidation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jllhz8912/sena/internal/metrics"
	"github.com/jllhz8912/sena/internal/types"
)

// ErrNoValidRecords is returned when no file yielded a valid record.
var ErrNoValidRecords = errors.New("no valid records found in the selected files")

// =============================================================================
// SOURCES
// =============================================================================

// Source is one submission file.
type Source struct {
	// Name identifies the source in logs and fingerprints.
	Name string

	// Open returns the file content.
	Open func() (io.ReadCloser, error)
}

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource returns a Source over in-memory content.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// =============================================================================
// BATCH
// =============================================================================

// Fingerprint identifies the content of one source.
type Fingerprint struct {
	Name     string `json:"name"`
	Checksum uint64 `json:"checksum"`
	Records  int    `json:"records"`
	Failed   bool   `json:"failed"`
}

// Batch is the regenerated content of a consolidation, awaiting confirmation.
type Batch struct {
	Records []types.Request

	// FileCount is the number of sources supplied, readable or not.
	FileCount     int
	RecordCount   int
	MaterialCount int

	// Fingerprints has one entry per source, in the order supplied.
	Fingerprints []Fingerprint

	// Repeated lists sources whose content equals an earlier source.
	Repeated []string
}

// Appender receives confirmed records.
type Appender interface {
	AddMany(ctx context.Context, records []types.Request) error
}

// Commit prepends the batch records to the store.
func (b *Batch) Commit(ctx context.Context, store Appender) error {
	if err := store.AddMany(ctx, b.Records); err != nil {
		return fmt.Errorf("failed to commit consolidation: %w", err)
	}
	metrics.ConsolidatedRecordsTotal.Add(float64(len(b.Records)))
	return nil
}

// =============================================================================
// MERGER
// =============================================================================

// Merger prepares consolidation batches.
type Merger struct {
	logger *zap.Logger
	newID  func() string
}

// NewMerger creates a Merger.
func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger, newID: uuid.NewString}
}

type fileResult struct {
	records     []types.Request
	fingerprint Fingerprint
}

// Prepare reads every source concurrently and builds the batch.
//
// PARAMETERS:
//   - ctx:     Cancels reads that have not started yet.
//   - sources: The submission files.
//
// RETURNS:
//   - The batch, records in source order then file order.
//   - ErrNoValidRecords when no source yielded a record.
//   - ctx.Err() if the context was cancelled.
func (m *Merger) Prepare(ctx context.Context, sources []Source) (*Batch, error) {
	results := make([]fileResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.readSource(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{FileCount: len(sources)}
	seen := make(map[uint64]string)

	for _, res := range results {
		fp := res.fingerprint
		batch.Fingerprints = append(batch.Fingerprints, fp)

		if !fp.Failed {
			if first, ok := seen[fp.Checksum]; ok {
				m.logger.Warn("same content supplied twice; both copies are merged",
					zap.String("file", fp.Name),
					zap.String("first", first),
				)
				batch.Repeated = append(batch.Repeated, fp.Name)
			} else {
				seen[fp.Checksum] = fp.Name
			}
		}

		for _, r := range res.records {
			batch.Records = append(batch.Records, m.rekey(r))
		}
	}

	batch.RecordCount = len(batch.Records)
	batch.MaterialCount = types.CountMaterials(batch.Records)

	if batch.RecordCount == 0 {
		return nil, ErrNoValidRecords
	}

	m.logger.Info("consolidation prepared",
		zap.Int("files", batch.FileCount),
		zap.Int("records", batch.RecordCount),
		zap.Int("materials", batch.MaterialCount),
	)
	return batch, nil
}

// readSource reads and decodes one source. Failures are logged and yield
// no records.
func (m *Merger) readSource(src Source) fileResult {
	res := fileResult{fingerprint: Fingerprint{Name: src.Name}}

	data, err := readAll(src)
	if err != nil {
		m.logger.Warn("submission file skipped", zap.String("file", src.Name), zap.Error(err))
		res.fingerprint.Failed = true
		return res
	}
	res.fingerprint.Checksum = xxhash.Sum64(data)

	records, err := Decode(data)
	if err != nil {
		m.logger.Warn("submission file skipped", zap.String("file", src.Name), zap.Error(err))
		res.fingerprint.Failed = true
		return res
	}

	res.records = records
	res.fingerprint.Records = len(records)
	return res
}

// rekey returns r with a fresh record id and fresh material ids.
func (m *Merger) rekey(r types.Request) types.Request {
	out := r.Clone()
	out.ID = m.newID()
	for i := range out.Materials {
		out.Materials[i].ID = m.newID()
	}
	return out
}

func readAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	return data, nil
}

// =============================================================================
// DECODING
// =============================================================================

// Decode parses a submission file: a JSON array of record objects.
//
// Items without a non-empty string id or without a materials array are
// dropped, as are items whose fields have the wrong types and items with an
// empty materials array. Anything that is not a JSON array is an error.
func Decode(data []byte) ([]types.Request, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("not a list of records: %w", err)
	}

	var records []types.Request
	for _, raw := range items {
		var probe struct {
			ID        any             `json:"id"`
			Materials json.RawMessage `json:"materials"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if id, ok := probe.ID.(string); !ok || id == "" {
			continue
		}
		var materials []json.RawMessage
		if err := json.Unmarshal(probe.Materials, &materials); err != nil || materials == nil {
			continue
		}

		var r types.Request
		if err := json.Unmarshal(raw, &r); err != nil || r.IsVoid() {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
