package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/csvparser"
	"github.com/jllhz8912/sena/internal/form"
	"github.com/jllhz8912/sena/internal/importer"
	"github.com/jllhz8912/sena/internal/store"
	"github.com/jllhz8912/sena/internal/types"
)

const header = "Nombre Instructor,Programa Formación,Lote (Categoría),Nombre Formación,Nombre Material,Unidad Medida,Descripción Técnica,Código UNSPSC"

// twoGroups has two lots; the Sistemas block repeats one of its own items.
var twoGroups = strings.Join([]string{
	header,
	"Ana,Regular,Sistemas,Redes,Cable,Rollo,UTP cat 6,",
	",,,,Conector,Caja,RJ45,",
	",,,,cable ,Rollo,otro cable,",
	"Ana,Regular,Robótica,Robots,Servo,Unidad,Servo SG90,",
}, "\n")

func newConverter() *Converter {
	c := New(config.DefaultCatalog(), zap.NewNop())
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(store.NewFileBackend(filepath.Join(t.TempDir(), "requests.json")), "sena_material_requests_v1", zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPreview_ModeSelection(t *testing.T) {
	path := writeFile(t, "carga.csv", []byte(twoGroups))
	c := newConverter()

	p, err := c.Preview(path, form.New())
	require.NoError(t, err)
	assert.Equal(t, ModeBulk, p.Mode)
	assert.Len(t, p.Groups, 2)
	assert.Equal(t, 4, p.MaterialCount())
	assert.Equal(t, 4, p.Rows)

	// Editing never bulk-creates.
	editing := form.Edit(types.Request{ID: "r1", LotType: "Sistemas"}, config.DefaultCatalog())
	p, err = c.Preview(path, editing)
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, p.Mode)
}

func TestApply_BulkCreateScreensDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Add(ctx, types.Request{
		ID: "old", InstructorName: "Luis", ProgramType: "Regular", LotType: "Robótica", TrainingName: "X",
		Materials: []types.Material{{ID: "o1", CodeName: "Servo", UnitOfMeasure: "Unidad (Und)", TechnicalDescription: "viejo"}},
	}))

	c := newConverter()
	draft := form.New()
	p, err := c.Preview(writeFile(t, "carga.csv", []byte(twoGroups)), draft)
	require.NoError(t, err)

	res, err := c.Apply(ctx, p, draft, s)
	require.NoError(t, err)

	// Sistemas keeps Cable and Conector; the repeated cable is dropped.
	// Robótica's only item repeats a stored one, so no record is created.
	require.Len(t, res.Created, 1)
	created := res.Created[0]
	assert.Equal(t, "Sistemas", created.LotType)
	assert.Equal(t, int64(1700000000000), created.CreatedAt)
	require.Len(t, created.Materials, 2)
	assert.Equal(t, "Cable", created.Materials[0].CodeName)
	assert.Equal(t, "Conector", created.Materials[1].CodeName)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 2, res.Stats.MaterialsDropped)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, created.ID, all[0].ID)
	assert.Equal(t, "old", all[1].ID)

	// The draft is untouched in bulk mode.
	assert.True(t, draft.Materials[0].IsPlaceholder())
}

func TestApply_MergeIntoDraft(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	c := newConverter()

	content := strings.Join([]string{
		"Material;Unidad;Descripción",
		"Cable;rollo;UTP cat 6",
		"Conector;caja;RJ45",
	}, "\n")

	draft := form.New()
	draft.Instructor = "Ana"
	draft.Program = "Regular"
	draft.Lot = "Sistemas"
	draft.Training = "Redes"

	p, err := c.Preview(writeFile(t, "carga.csv", []byte(content)), draft)
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, p.Mode)
	assert.Equal(t, importer.Context{Instructor: "Ana", Program: "Regular", Lot: "Sistemas", Training: "Redes"}, p.Groups[0].Header)

	res, err := c.Apply(ctx, p, draft, s)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merged)
	assert.Empty(t, res.Created)
	assert.Zero(t, s.Len())

	require.Len(t, draft.Materials, 2)
	assert.Equal(t, "Rollo", draft.Materials[0].UnitOfMeasure)

	saved, err := draft.Submit(ctx, s, time.Now())
	require.NoError(t, err)
	assert.Len(t, saved.Materials, 2)
	assert.Equal(t, 1, s.Len())
}

func TestPreview_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Nombre Material", "Unidad Medida", "Descripción Técnica", "Lote"},
		{"Martillo", "Unidad", "Martillo de bola", "Mecánica"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	p, err := newConverter().Preview(writeFile(t, "carga.xlsx", buf.Bytes()), form.New())
	require.NoError(t, err)
	require.Len(t, p.Groups, 1)
	assert.Equal(t, "Mecánica", p.Groups[0].Header.Lot)
	assert.Equal(t, "Unidad (Und)", p.Groups[0].Materials[0].UnitOfMeasure)
}

func TestPreview_Windows1252(t *testing.T) {
	content := "Material;Unidad;Descripción\nCompás;Unidad;Compás de precisión"
	encoded, err := charmap.Windows1252.NewEncoder().String(content)
	require.NoError(t, err)

	p, err := newConverter().Preview(writeFile(t, "carga.csv", []byte(encoded)), form.New())
	require.NoError(t, err)
	assert.Equal(t, "Compás", p.Groups[0].Materials[0].CodeName)
	assert.Equal(t, "Compás de precisión", p.Groups[0].Materials[0].TechnicalDescription)
}

func TestPreview_Errors(t *testing.T) {
	c := newConverter()

	_, err := c.Preview(writeFile(t, "vacio.csv", []byte("\uFEFF\n\n")), form.New())
	assert.ErrorIs(t, err, csvparser.ErrEmptyFile)

	_, err = c.Preview(writeFile(t, "sin_columnas.csv", []byte("Instructor,Lote\nAna,Sistemas")), form.New())
	assert.ErrorIs(t, err, csvparser.ErrMissingRequiredColumns)

	_, err = c.Preview(writeFile(t, "sin_filas.csv", []byte("Material,Unidad,Descripción\n,,x,")), form.New())
	assert.ErrorIs(t, err, importer.ErrNoValidRows)

	_, err = c.Preview(filepath.Join(t.TempDir(), "missing.csv"), form.New())
	assert.Error(t, err)
}
