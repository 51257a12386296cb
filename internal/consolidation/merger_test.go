package consolidation

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jllhz8912/sena/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const submissionA = `[
  {"id":"r1","instructorName":"Ana","programType":"Regular","lotType":"Sistemas","trainingName":"Redes",
   "materials":[{"id":"m1","codeName":"Cable","technicalDescription":"UTP cat 6","unitOfMeasure":"Rollo"},
                {"id":"m2","codeName":"Conector","technicalDescription":"RJ45","unitOfMeasure":"Caja"}],
   "createdAt":1700000000000},
  {"id":"r2","instructorName":"Ana","programType":"Regular","lotType":"Sistemas","trainingName":"Redes",
   "materials":[{"id":"m3","codeName":"Switch","technicalDescription":"24 puertos","unitOfMeasure":"Unidad (Und)"}],
   "createdAt":1700000000001}
]`

const submissionB = `[
  {"id":"r9","instructorName":"Luis","programType":"Campesena","lotType":"Granja","trainingName":"Aves",
   "materials":[{"id":"m9","codeName":"Comedero","technicalDescription":"Plástico","unitOfMeasure":"Unidad (Und)"}],
   "createdAt":1700000000002},
  {"instructorName":"sin id","materials":[{"id":"x"}]},
  {"id":"","materials":[{"id":"x"}]},
  {"id":"r10","instructorName":"sin materiales"},
  {"id":"r11","materials":"no es lista"},
  {"id":"r12","materials":[]},
  {"id":42,"materials":[{"id":"x"}]}
]`

type fakeStore struct {
	records []types.Request
	err     error
}

func (s *fakeStore) AddMany(_ context.Context, records []types.Request) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(append([]types.Request(nil), records...), s.records...)
	return nil
}

func collectIDs(records []types.Request) map[string]bool {
	out := make(map[string]bool)
	for _, r := range records {
		out[r.ID] = true
		for _, m := range r.Materials {
			out[m.ID] = true
		}
	}
	return out
}

func TestDecode_FiltersInvalidItems(t *testing.T) {
	records, err := Decode([]byte(submissionB))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r9", records[0].ID)
	assert.Equal(t, "Comedero", records[0].Materials[0].CodeName)
}

func TestDecode_NotAnArray(t *testing.T) {
	for _, in := range []string{`{"id":"r1"}`, `garbage`, ``, `"text"`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestPrepare_CountsAndRegeneratesIDs(t *testing.T) {
	m := NewMerger(zap.NewNop())
	batch, err := m.Prepare(context.Background(), []Source{
		BytesSource("a.json", []byte(submissionA)),
		BytesSource("b.json", []byte(submissionB)),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, batch.FileCount)
	assert.Equal(t, 3, batch.RecordCount)
	assert.Equal(t, 4, batch.MaterialCount)
	require.Len(t, batch.Records, 3)

	// Source order, then file order.
	assert.Equal(t, "Redes", batch.Records[0].TrainingName)
	assert.Equal(t, "Aves", batch.Records[2].TrainingName)

	fresh := collectIDs(batch.Records)
	for _, old := range []string{"r1", "r2", "r9", "m1", "m2", "m3", "m9"} {
		assert.False(t, fresh[old], "id %s was kept", old)
	}
	assert.Len(t, fresh, 7)

	require.Len(t, batch.Fingerprints, 2)
	assert.Equal(t, 2, batch.Fingerprints[0].Records)
	assert.Equal(t, 1, batch.Fingerprints[1].Records)
	assert.Empty(t, batch.Repeated)
}

func TestPrepare_BadFilesContributeNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(submissionA), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not":"a list"}`), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMerger(zap.New(core))

	batch, err := m.Prepare(context.Background(), []Source{
		FileSource(bad),
		FileSource(filepath.Join(dir, "missing.json")),
		FileSource(good),
		{Name: "broken", Open: func() (io.ReadCloser, error) { return nil, errors.New("permission denied") }},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, batch.FileCount)
	assert.Equal(t, 2, batch.RecordCount)
	assert.Equal(t, 3, batch.MaterialCount)

	assert.True(t, batch.Fingerprints[0].Failed)
	assert.True(t, batch.Fingerprints[1].Failed)
	assert.False(t, batch.Fingerprints[2].Failed)
	assert.True(t, batch.Fingerprints[3].Failed)
	assert.Equal(t, 3, logs.FilterMessage("submission file skipped").Len())
}

func TestPrepare_NoValidRecords(t *testing.T) {
	m := NewMerger(zap.NewNop())
	_, err := m.Prepare(context.Background(), []Source{
		BytesSource("empty.json", []byte(`[]`)),
		BytesSource("bad.json", []byte(`nope`)),
	})
	assert.ErrorIs(t, err, ErrNoValidRecords)

	_, err = m.Prepare(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoValidRecords)
}

func TestPrepare_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMerger(zap.NewNop())
	_, err := m.Prepare(ctx, []Source{BytesSource("a.json", []byte(submissionA))})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepare_RepeatedContentIsMergedTwice(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m := NewMerger(zap.New(core))

	batch, err := m.Prepare(context.Background(), []Source{
		BytesSource("a.json", []byte(submissionA)),
		BytesSource("a-copy.json", []byte(submissionA)),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, batch.RecordCount)
	assert.Equal(t, []string{"a-copy.json"}, batch.Repeated)
	assert.Equal(t, batch.Fingerprints[0].Checksum, batch.Fingerprints[1].Checksum)
	assert.Equal(t, 1, logs.FilterMessage("same content supplied twice; both copies are merged").Len())
	assert.Len(t, collectIDs(batch.Records), 10)
}

func TestCommit_PrependsAndReimportDoubles(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{records: []types.Request{{ID: "existing", Materials: []types.Material{{ID: "e"}}}}}
	m := NewMerger(zap.NewNop())

	for i := 0; i < 2; i++ {
		batch, err := m.Prepare(ctx, []Source{BytesSource("a.json", []byte(submissionA))})
		require.NoError(t, err)
		require.NoError(t, batch.Commit(ctx, store))
	}

	require.Len(t, store.records, 5)
	assert.Equal(t, "existing", store.records[4].ID)
	assert.Len(t, collectIDs(store.records), 12)
}

func TestCommit_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{err: errors.New("disk full")}

	batch, err := NewMerger(nil).Prepare(ctx, []Source{BytesSource("a.json", []byte(submissionA))})
	require.NoError(t, err)
	assert.Error(t, batch.Commit(ctx, store))
	assert.Empty(t, store.records)
}
