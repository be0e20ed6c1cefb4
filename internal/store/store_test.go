package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/kin-subset/internal/cohort"
	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/selection"
)

func pairRun(t *testing.T) (*graph.Graph, *selection.Result) {
	t.Helper()
	g, _, err := graph.Build(
		[]cohort.SampleRecord{{FID: "f1", IID: "b"}, {FID: "f1", IID: "a"}, {FID: "f2", IID: "c"}},
		map[string]string{"a": "1", "b": "0", "c": "0"},
		[]cohort.KinshipRecord{{IID1: "a", IID2: "b", Metric: 0.25}},
		0.1, cohort.Classifier{CaseValue: "1"})
	require.NoError(t, err)
	res, err := selection.New(g, selection.Options{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	return g, res
}

func TestCreateSQL(t *testing.T) {
	tbl := Table{
		Schema:     "public",
		Name:       "t",
		Columns:    []Column{{Name: "id", DataType: "text"}, {Name: "note", DataType: "text", Nullable: true}},
		PrimaryKey: []string{"id"},
	}
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS public.t (\n\tid text NOT NULL,\n\tnote text,\n\tPRIMARY KEY (id)\n);", tbl.CreateSQL())
}

func TestInsertSQL(t *testing.T) {
	sql := insertSQL(&RunsTable)
	assert.True(t, strings.HasPrefix(sql, "INSERT INTO public.kinship_selection_runs (run_id, started_at, "))
	assert.True(t, strings.HasSuffix(sql, "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)"))
}

func TestRows(t *testing.T) {
	g, res := pairRun(t)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{ID: NewRunID(started), StartedAt: started, SamplesPath: "s.txt", KinshipPath: "k.txt", Threshold: 0.1, CaseValue: "1"}

	row := RunRow(run, g, res)
	require.Len(t, row, len(RunsTable.Columns))
	assert.Equal(t, "20240301T120000.000000000Z", row[0])
	assert.Nil(t, row[6])
	assert.Equal(t, []any{int32(3), int32(1), int32(2), int32(1)}, row[7:])

	rows := DecisionRows(run.ID, g, res)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Len(t, r, len(DecisionsTable.Columns))
	}
	assert.Equal(t, []any{run.ID, "f1", "b", "0", "control", false, int32(0), int32(2), int32(1), int32(1)}, rows[0])
	assert.Equal(t, []any{run.ID, "f1", "a", "1", "case", true, int32(0), int32(2), int32(1), nil}, rows[1])
	assert.Equal(t, []any{run.ID, "f2", "c", "0", "control", true, int32(1), int32(1), int32(0), nil}, rows[2])
}

func TestWriteSQL(t *testing.T) {
	g, res := pairRun(t)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{ID: "r1", StartedAt: started, SamplesPath: "s.txt", KinshipPath: "k.txt", Threshold: 0.1, CaseValue: "1", ControlValue: "0"}

	var buf bytes.Buffer
	require.NoError(t, WriteSQL(&buf, RunRow(run, g, res), DecisionRows(run.ID, g, res)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "BEGIN;\nCREATE TABLE IF NOT EXISTS public.kinship_selection_runs ("))
	assert.True(t, strings.HasSuffix(out, "COMMIT;\n"))
	assert.Contains(t, out, "r1\t2024-03-01 12:00:00+00\ts.txt\tk.txt\t0.1\t1\t0\t3\t1\t2\t1\n")
	assert.Contains(t, out, "COPY public.kinship_selection_decisions (run_id, fid, iid, phenotype, class, retained, component, component_size, degree, removal_step) FROM stdin;\n")
	assert.Contains(t, out, "r1\tf1\ta\t1\tcase\tt\t0\t2\t1\t\\N\n")
	assert.Equal(t, 2, strings.Count(out, "\\.\n"))
}

func TestEscapeCopyValue(t *testing.T) {
	assert.Equal(t, `\N`, escapeCopyValue(nil))
	assert.Equal(t, "f", escapeCopyValue(false))
	assert.Equal(t, "0.0884", escapeCopyValue(0.0884))
	assert.Equal(t, `a\tb\\c\nd`, escapeCopyValue("a\tb\\c\nd"))
	assert.Equal(t, "7", escapeCopyValue(int32(7)))
}
