package csvparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllhz8912/sena/internal/config"
)

func TestParse_StripsBOMAndBlankLines(t *testing.T) {
	content := "\uFEFFMaterial,Unidad,Descripción\r\n\r\nTeclado,Und,USB\n   \nMouse,Und,Óptico\n"

	table, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, []string{"Material", "Unidad", "Descripción"}, table.Header)
	assert.Equal(t, [][]string{{"Teclado", "Und", "USB"}, {"Mouse", "Und", "Óptico"}}, table.Rows)
	assert.Equal(t, ',', table.Delimiter)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse("\uFEFF\r\n  \n")
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse("Material,Unidad,Descripción\n\n")
	assert.ErrorIs(t, err, ErrMissingDataRows)
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a;b;c", ';'},
		{"a,b,c", ','},
		{"a;b,c", ','},   // tie goes to comma
		{"a;b;c,d", ';'}, // strictly more semicolons
		{"sin separador", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDelimiter(tt.line), tt.line)
	}
}

func TestParse_SemicolonFile(t *testing.T) {
	table, err := Parse("Material;Unidad;Descripción\nTornillo, 1/4;Caja;Acero, galvanizado\n")
	require.NoError(t, err)

	assert.Equal(t, ';', table.Delimiter)
	assert.Equal(t, []string{"Tornillo, 1/4", "Caja", "Acero, galvanizado"}, table.Rows[0])
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delim rune
		want  []string
	}{
		{"plain", "a,b,c", ',', []string{"a", "b", "c"}},
		{"trims", "  a ,\tb , c  ", ',', []string{"a", "b", "c"}},
		{"quoted delimiter", `"a,b",c`, ',', []string{"a,b", "c"}},
		{"doubled quote", `"Teclado ""USB""",x`, ',', []string{`Teclado "USB"`, "x"}},
		{"empty quoted", `"",x`, ',', []string{"", "x"}},
		{"empty trailing", "a,b,", ',', []string{"a", "b", ""}},
		{"semicolon keeps commas", `a,1;"b;2"`, ';', []string{"a,1", "b;2"}},
		{"quoted with outer spaces", `  "a b"  ,c`, ',', []string{"a b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line, tt.delim))
		})
	}
}

func TestFromRows(t *testing.T) {
	table, err := FromRows([][]string{
		{" Material ", "Unidad", "Descripción"},
		{"", "", ""},
		{"Teclado", " Und ", "USB"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Material", "Unidad", "Descripción"}, table.Header)
	assert.Equal(t, [][]string{{"Teclado", "Und", "USB"}}, table.Rows)

	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = FromRows([][]string{{"Material"}, {" "}})
	assert.ErrorIs(t, err, ErrMissingDataRows)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "descripcion tecnica", Fold("  Descripción TÉCNICA "))
	assert.Equal(t, "lote (categoria)", Fold("Lote (Categoría)"))
	assert.Equal(t, "codigo unspsc", Fold("Código UNSPSC"))
}

func TestResolveHeader_AllColumns(t *testing.T) {
	header := []string{
		"Nombre Instructor", "Programa", "Lote", "Nombre Formación",
		"Nombre Material", "Unidad", "Descripción", "UNSPSC",
	}

	cols, err := ResolveHeader(header, config.DefaultCatalog())
	require.NoError(t, err)

	assert.Equal(t, Columns{
		"instructor":  0,
		"program":     1,
		"lot":         2,
		"training":    3,
		"material":    4,
		"unit":        5,
		"description": 6,
		"code":        7,
	}, cols)
}

func TestResolveHeader_TemplateLabelsAndAccents(t *testing.T) {
	cat := config.DefaultCatalog()

	header := []string{
		"NOMBRE INSTRUCTOR", "Programa Formacion", "Lote (Categoria)", "Nombre Formacion",
		"Nombre Material", "Unidad Medida", "DESCRIPCION TECNICA", "Codigo UNSPSC",
	}
	cols, err := ResolveHeader(header, cat)
	require.NoError(t, err)

	// "Programa Formación" belongs to the program column, not training.
	assert.Equal(t, 1, cols["program"])
	assert.Equal(t, 3, cols["training"])
	assert.Equal(t, 6, cols["description"])
	assert.Equal(t, 7, cols["code"])
}

func TestResolveHeader_FallbackFragment(t *testing.T) {
	cols, err := ResolveHeader([]string{"Categoría", "Material", "Unidad", "Técnica", "Formación"}, config.DefaultCatalog())
	require.NoError(t, err)

	assert.Equal(t, 0, cols["lot"])
	assert.Equal(t, 1, cols["material"])
	assert.Equal(t, 3, cols["description"])
	assert.Equal(t, 4, cols["training"])
	assert.False(t, cols.Has("instructor"))
	assert.False(t, cols.Has("code"))
}

func TestResolveHeader_MissingDescription(t *testing.T) {
	_, err := ResolveHeader([]string{"Nombre Material", "Unidad", "UNSPSC"}, config.DefaultCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredColumns)

	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"Descripción Técnica"}, mce.Columns)
}

func TestResolveHeader_MissingSeveral(t *testing.T) {
	_, err := ResolveHeader([]string{"Instructor", "Lote"}, config.DefaultCatalog())

	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"Nombre Material", "Unidad Medida", "Descripción Técnica"}, mce.Columns)
	assert.Contains(t, err.Error(), "Unidad Medida")
}

func TestColumns_Cell(t *testing.T) {
	cols := Columns{"material": 0, "code": 3}

	v, ok := cols.Cell([]string{" Teclado ", "Und"}, "material")
	assert.True(t, ok)
	assert.Equal(t, "Teclado", v)

	_, ok = cols.Cell([]string{"Teclado"}, "code")
	assert.False(t, ok)

	_, ok = cols.Cell([]string{"Teclado"}, "lot")
	assert.False(t, ok)
}
