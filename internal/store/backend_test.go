package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/types"
)

// exerciseBackend runs the Backend contract against b.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	data, err := b.Read(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Write(ctx, testKey, []byte(`[{"id":"a"}]`)))
	require.NoError(t, b.Write(ctx, "otra_clave", []byte(`[]`)))
	require.NoError(t, b.Write(ctx, testKey, []byte(`[{"id":"b"}]`)))

	data, err = b.Read(ctx, testKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(data))

	require.NoError(t, b.Delete(ctx, testKey))
	require.NoError(t, b.Delete(ctx, testKey))

	data, err = b.Read(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = b.Read(ctx, "otra_clave")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileBackend_Contract(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "data", "requests.json"))
	exerciseBackend(t, b)
}

func TestFileBackend_LegacyArrayAndGarbage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "requests.json")

	// A bare array is handed to the store whole and loads normally.
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","materials":[{"id":"m"}]}]`), 0o644))
	s := New(NewFileBackend(path), testKey, zap.NewNop())
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 1, s.Len())

	// Garbage loads as an empty store, and the next save rewrites the file.
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	s = New(NewFileBackend(path), testKey, zap.NewNop())
	require.NoError(t, s.Load(ctx))
	assert.Zero(t, s.Len())

	require.NoError(t, s.Add(ctx, types.Request{ID: "n", Materials: []types.Material{{ID: "m"}}}))
	reloaded := New(NewFileBackend(path), testKey, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"n"}, ids(reloaded.All()))
}

func TestFileBackend_RejectsInvalidJSON(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "requests.json"))
	assert.Error(t, b.Write(context.Background(), testKey, []byte("{")))
}

func TestSQLiteBackend_Contract(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "sena.db")

	b, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	exerciseBackend(t, b)
	require.NoError(t, b.Close())

	// Reopening runs the migrations again without error.
	b, err = OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	data, err := b.Read(ctx, "otra_clave")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
	require.NoError(t, b.Close())
}

func TestPostgresBackend_Contract(t *testing.T) {
	dsn := os.Getenv("SENA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SENA_TEST_POSTGRES_DSN not set")
	}

	b, err := OpenPostgres(context.Background(), dsn, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
	require.NoError(t, b.Delete(context.Background(), "otra_clave"))
}

func TestOpen_FromConfig(t *testing.T) {
	ctx := context.Background()

	var cfg config.Config
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "sena.db")
	cfg.Store.Key = testKey

	s, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, types.Request{ID: "a", Materials: []types.Material{{ID: "m"}}}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"a"}, ids(s.All()))

	cfg.Store.Backend = "redis"
	_, err = Open(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
