package importer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/csvparser"
)

const exampleHeader = "Nombre Instructor,Programa,Lote,Nombre Formación,Nombre Material,Unidad,Descripción,UNSPSC"

func newImporter() *Importer {
	return New(config.DefaultCatalog(), zap.NewNop())
}

func TestImportText_CarryForwardExample(t *testing.T) {
	content := strings.Join([]string{
		exampleHeader,
		"Ana,Regular,Sistemas,Curso X,Teclado,Unidad (Und),Teclado USB 104 teclas,43211508",
		",,,,Mouse,Unidad (Und),Mouse óptico,",
	}, "\n")

	groups, err := newImporter().ImportText(content, Context{})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, Context{Instructor: "Ana", Program: "Regular", Lot: "Sistemas", Training: "Curso X"}, g.Header)
	assert.Equal(t, "Sistemas", g.Header.EffectiveLot())
	require.Len(t, g.Materials, 2)

	assert.Equal(t, "Teclado", g.Materials[0].CodeName)
	assert.Equal(t, "43211508", g.Materials[0].UNSPSCCode)
	assert.Equal(t, "Mouse", g.Materials[1].CodeName)
	assert.Equal(t, "Unidad (Und)", g.Materials[1].UnitOfMeasure)
	assert.Equal(t, "Mouse óptico", g.Materials[1].TechnicalDescription)
	assert.Empty(t, g.Materials[1].UNSPSCCode)

	assert.NotEmpty(t, g.Materials[0].ID)
	assert.NotEqual(t, g.Materials[0].ID, g.Materials[1].ID)
}

func TestImportText_SingleContextYieldsOneGroup(t *testing.T) {
	const n = 25
	lines := []string{"Material;Unidad;Descripción"}
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf("Item %d;kg;Descripción %d", i, i))
	}
	// Rows without a material name or too short are not materials.
	lines = append(lines, ";kg;sin nombre", "solo;dos")

	groups, err := newImporter().ImportText(strings.Join(lines, "\r\n"), Context{Instructor: "Luis"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Materials, n)
	assert.Equal(t, "Luis", groups[0].Header.Instructor)
	assert.Equal(t, "Kilogramo (kg)", groups[0].Materials[0].UnitOfMeasure)
}

func TestImportText_KDistinctTuples(t *testing.T) {
	content := strings.Join([]string{
		exampleHeader,
		"Ana,Regular,Sistemas,Curso X,Teclado,Und,Teclado USB,",
		",,,,Mouse,Und,Mouse óptico,",
		",,Mecánica,,Martillo,Und,Martillo de bola,",
		",,,,Llave,Und,Llave inglesa,",
		"Beto,Campesena,Agropecuaria,Huerta,Pala,Und,Pala cuadrada,",
		"Ana,Regular,Sistemas,Curso X,Monitor,Und,Monitor 24,",
		",,,Curso Y,Cable,Und,Cable HDMI,",
	}, "\n")

	groups, err := newImporter().ImportText(content, Context{})
	require.NoError(t, err)
	require.Len(t, groups, 4)

	names := func(g Group) []string {
		var out []string
		for _, m := range g.Materials {
			out = append(out, m.CodeName)
		}
		return out
	}

	assert.Equal(t, "Sistemas", groups[0].Header.Lot)
	assert.Equal(t, []string{"Teclado", "Mouse", "Monitor"}, names(groups[0]))

	assert.Equal(t, "Mecánica", groups[1].Header.Lot)
	assert.Equal(t, "Ana", groups[1].Header.Instructor)
	assert.Equal(t, []string{"Martillo", "Llave"}, names(groups[1]))

	assert.Equal(t, Context{Instructor: "Beto", Program: "Campesena", Lot: "Agropecuaria", Training: "Huerta"}, groups[2].Header)
	assert.Equal(t, []string{"Pala"}, names(groups[2]))

	assert.Equal(t, "Curso Y", groups[3].Header.Training)
	assert.Equal(t, "Sistemas", groups[3].Header.Lot)
	assert.Equal(t, []string{"Cable"}, names(groups[3]))

	assert.Equal(t, 7, CountMaterials(groups))
}

func TestImportText_ProgramAndLotMatching(t *testing.T) {
	content := strings.Join([]string{
		exampleHeader,
		"Ana,REGULAR,sistemas,Curso,Teclado,Und,Teclado,",
		",Nocturno,Robótica,,Servo,Und,Servo motor,",
		",,MECÁNICA,,Martillo,Und,Martillo,",
	}, "\n")

	groups, err := newImporter().ImportText(content, Context{})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "Regular", groups[0].Header.Program)
	assert.Equal(t, "Sistemas", groups[0].Header.Lot)
	assert.False(t, groups[0].Header.IsCustomLot)

	// Unknown program keeps the previous one, unknown lot becomes custom.
	assert.Equal(t, "Regular", groups[1].Header.Program)
	assert.True(t, groups[1].Header.IsCustomLot)
	assert.Equal(t, "Robótica", groups[1].Header.CustomLot)
	assert.Empty(t, groups[1].Header.Lot)
	assert.Equal(t, "Robótica", groups[1].Header.EffectiveLot())

	// Back to a catalog lot clears the custom flag.
	assert.Equal(t, "Mecánica", groups[2].Header.Lot)
	assert.False(t, groups[2].Header.IsCustomLot)
	assert.Empty(t, groups[2].Header.CustomLot)
}

func TestImportText_SeedContextFromDraft(t *testing.T) {
	content := "Material,Unidad,Descripción\nTeclado,Und,Teclado USB\n"
	seed := Context{Instructor: "Carla", Program: "Otros", IsCustomLot: true, CustomLot: "Robótica", Training: "Drones"}

	groups, err := newImporter().ImportText(content, seed)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, seed, groups[0].Header)
}

func TestImportText_UnitMatching(t *testing.T) {
	content := strings.Join([]string{
		"Material,Unidad,Descripción",
		"A,caja,desc a",
		"B,Tambor,desc b",
		"C,,desc c",
	}, "\n")

	groups, err := newImporter().ImportText(content, Context{})
	require.NoError(t, err)

	m := groups[0].Materials
	assert.Equal(t, "Caja", m[0].UnitOfMeasure)
	assert.Equal(t, "Tambor", m[1].UnitOfMeasure)
	// A blank unit cell takes the first catalog unit.
	assert.Equal(t, "Unidad (Und)", m[2].UnitOfMeasure)
}

func TestImportText_BlankUnitLeavesMaterialComplete(t *testing.T) {
	groups, err := newImporter().ImportText("Nombre Material;Unidad;Descripción\nMartillo;;Acero", Context{})
	require.NoError(t, err)
	require.Len(t, groups[0].Materials, 1)

	m := groups[0].Materials[0]
	assert.Equal(t, "Martillo", m.CodeName)
	assert.Equal(t, "Unidad (Und)", m.UnitOfMeasure)
	assert.True(t, m.IsComplete())
}

func TestImportText_Errors(t *testing.T) {
	im := newImporter()

	_, err := im.ImportText("", Context{})
	assert.ErrorIs(t, err, csvparser.ErrEmptyFile)

	_, err = im.ImportText(exampleHeader+"\n", Context{})
	assert.ErrorIs(t, err, csvparser.ErrMissingDataRows)

	_, err = im.ImportText("Nombre Material,Unidad\nTeclado,Und\n", Context{})
	assert.ErrorIs(t, err, csvparser.ErrMissingRequiredColumns)
	var mce *csvparser.MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"Descripción Técnica"}, mce.Columns)

	_, err = im.ImportText("Material,Unidad,Descripción\n,Und,sin nombre\n", Context{})
	assert.ErrorIs(t, err, ErrNoValidRows)
}

func TestContext_KeyDistinguishesFields(t *testing.T) {
	a := Context{Instructor: "a b", Program: "c"}
	b := Context{Instructor: "a", Program: "b c"}
	assert.NotEqual(t, a.Key(), b.Key())

	custom := Context{Lot: "Sistemas", IsCustomLot: true, CustomLot: "Robótica"}
	assert.Equal(t, "Robótica", custom.EffectiveLot())
}

func TestGroup_Describe(t *testing.T) {
	g := Group{Header: Context{Instructor: "Ana", IsCustomLot: true, CustomLot: "Robótica"}}
	assert.Equal(t, "Ana | - | Robótica (personalizado) | -: 0 materiales", g.Describe())
}
