package report

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/types"
)

func record(instructor, program, lot, training string, materials int) types.Request {
	r := types.Request{
		ID:             fmt.Sprintf("%s-%s-%s", instructor, lot, training),
		InstructorName: instructor,
		ProgramType:    program,
		LotType:        lot,
		TrainingName:   training,
	}
	for i := 0; i < materials; i++ {
		r.Materials = append(r.Materials, types.Material{ID: fmt.Sprintf("m%d", i), CodeName: "x"})
	}
	return r
}

func fixture() []types.Request {
	return []types.Request{
		record("Ana", "Regular", "Sistemas", "Curso X", 3),
		record(" ana ", "Regular", "Mecánica", "Motores", 2),
		record("Beto", "Campesena", "Sistemas", "Curso X", 2),
		record("Carla", "", "", "Huerta", 1),
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(fixture())
	want := Summary{Records: 4, Materials: 8, Instructors: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestByLot_Example(t *testing.T) {
	records := []types.Request{
		record("Ana", "Regular", "Mecánica", "A", 3),
		record("Ana", "Regular", "Sistemas", "B", 5),
	}

	got := ByLot(records)
	want := []Slice{
		{Label: "Sistemas", Count: 5, Percent: 62.5},
		{Label: "Mecánica", Count: 3, Percent: 37.5},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ByLot mismatch (-want +got):\n%s", diff)
	}
}

func TestDistributions_SentinelsAndTies(t *testing.T) {
	lots := ByLot(fixture())
	want := []Slice{
		{Label: "Sistemas", Count: 5, Percent: 62.5},
		{Label: "Mecánica", Count: 2, Percent: 25},
		{Label: NoLotLabel, Count: 1, Percent: 12.5},
	}
	if diff := cmp.Diff(want, lots, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ByLot mismatch (-want +got):\n%s", diff)
	}

	programs := ByProgram([]types.Request{
		record("A", "Regular", "L", "T", 2),
		record("B", "Campesena", "L", "T", 2),
		record("C", "", "L", "T", 1),
	})
	assert.Equal(t, []string{"Campesena", "Regular", NoProgramLabel}, labels(programs))
}

func TestDistributions_ZeroTotal(t *testing.T) {
	got := ByLot([]types.Request{record("Ana", "Regular", "Sistemas", "X", 0)})
	assert.Equal(t, []Slice{{Label: "Sistemas", Count: 0, Percent: 0}}, got)
	assert.Empty(t, ByProgram(nil))
}

func TestBuildMatrix_ByProgram(t *testing.T) {
	got := BuildMatrix(fixture(), RowsByProgram)

	want := Matrix{
		Dimension: RowsByProgram,
		Rows:      []string{"", "Campesena", "Regular"},
		Columns:   []string{"", "Mecánica", "Sistemas"},
		Cells: [][]int{
			{1, 0, 0},
			{0, 0, 2},
			{0, 2, 3},
		},
		RowTotals:    []int{1, 2, 5},
		ColumnTotals: []int{1, 2, 5},
		GrandTotal:   8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildMatrix mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 3, got.Cell("Regular", "Sistemas"))
	assert.Equal(t, 0, got.Cell("Campesena", "Mecánica"))
	assert.Equal(t, 0, got.Cell("Otros", "Sistemas"))
}

func TestBuildMatrix_ByTraining(t *testing.T) {
	got := BuildMatrix(fixture(), RowsByTraining)

	assert.Equal(t, []string{"Curso X", "Huerta", "Motores"}, got.Rows)
	assert.Equal(t, 5, got.Cell("Curso X", "Sistemas"))
	assert.Equal(t, []int{5, 1, 2}, got.RowTotals)
}

func TestBuildMatrix_TotalsMatchMaterialCount(t *testing.T) {
	records := fixture()
	for i := 0; i < 20; i++ {
		records = append(records, record(
			fmt.Sprintf("I%d", i%4),
			[]string{"Regular", "Otros", "Campesena"}[i%3],
			[]string{"Sistemas", "Granja", "Química", "Belleza", "Robótica"}[i%5],
			fmt.Sprintf("T%d", i%6),
			i%7,
		))
	}
	total := types.CountMaterials(records)

	for _, dim := range []RowDimension{RowsByProgram, RowsByTraining} {
		m := BuildMatrix(records, dim)
		assert.Equal(t, total, m.GrandTotal)
		assert.Equal(t, total, sum(m.RowTotals))
		assert.Equal(t, total, sum(m.ColumnTotals))
		assert.Len(t, m.Cells, len(m.Rows))
		for _, row := range m.Cells {
			assert.Len(t, row, len(m.Columns))
		}
	}
}

func TestParseRowDimension(t *testing.T) {
	d, ok := ParseRowDimension(" Training ")
	assert.True(t, ok)
	assert.Equal(t, RowsByTraining, d)

	_, ok = ParseRowDimension("lot")
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	records := fixture()

	assert.Len(t, Filter(records, Criteria{}), 4)
	assert.Equal(t, []string{"Ana", " ana "}, instructors(Filter(records, Criteria{Search: "ANA"})))
	assert.Equal(t, []string{"Ana", "Beto"}, instructors(Filter(records, Criteria{Search: "curso"})))
	assert.Equal(t, []string{" ana "}, instructors(Filter(records, Criteria{Search: "mecá"})))
	assert.Equal(t, []string{"Ana", "Beto"}, instructors(Filter(records, Criteria{Lot: "Sistemas"})))
	assert.Equal(t, []string{"Beto"}, instructors(Filter(records, Criteria{Lot: "Sistemas", Program: "Campesena"})))
	assert.Empty(t, Filter(records, Criteria{Lot: "sistemas"}))
}

func TestLotOptions(t *testing.T) {
	cat := config.DefaultCatalog()
	records := []types.Request{
		record("Ana", "Regular", "Robótica", "X", 1),
		record("Ana", "Regular", "Sistemas", "X", 1),
	}

	opts := LotOptions(cat, records)
	assert.Len(t, opts, len(cat.Lots)+1)
	assert.Contains(t, opts, "Robótica")
	assert.IsIncreasing(t, opts)
}

func labels(slices []Slice) []string {
	var out []string
	for _, s := range slices {
		out = append(out, s.Label)
	}
	return out
}

func instructors(records []types.Request) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.InstructorName)
	}
	return out
}

func sum(values []int) int {
	n := 0
	for _, v := range values {
		n += v
	}
	return n
}
