package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	a, err := db.CreateRun(RunConstraints, "trace.txt")
	require.NoError(t, err)
	_, err = uuid.Parse(a.ID)
	assert.NoError(t, err)

	b, err := db.CreateRun(RunSuppress, "readings.txt")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID)
	assert.Equal(t, RunSuppress, runs[0].Kind)
	assert.Equal(t, "readings.txt", runs[0].Source)
	assert.Equal(t, a.CreatedAt.Unix(), runs[1].CreatedAt.Unix())
}

func TestRecordConstraints(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	run, err := db.CreateRun(RunConstraints, "trace.txt")
	require.NoError(t, err)

	first := []constraints.Constraint{
		constraints.NewEquality(0, 0, 1),
		constraints.NewEquality(0, 1, 2),
	}
	second := []constraints.Constraint{
		constraints.NewInterval(1, 0, 1, 0.5),
		constraints.NewExclusion(1, 1, 2, 0.25),
		constraints.NewSymbolic(2, 0, -0.5, 1.5, constraints.Term{Coef: -0.5, Epoch: 1, Node: 1}),
	}
	require.NoError(t, db.RecordConstraints(run.ID, 0, first))
	require.NoError(t, db.RecordConstraints(run.ID, 3, second))
	require.NoError(t, db.RecordConstraints(run.ID, 3, nil))

	got, err := db.Constraints(run.ID)
	require.NoError(t, err)
	var want []StoredConstraint
	for _, c := range first {
		want = append(want, StoredConstraint{Cluster: 0, Constraint: c})
	}
	for _, c := range second {
		want = append(want, StoredConstraint{Cluster: 3, Constraint: c})
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored constraints mismatch (-want +got):\n%s", diff)
	}

	counts, err := db.ConstraintCounts(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[constraints.Kind]int{
		constraints.Equality:  2,
		constraints.Interval:  1,
		constraints.Exclusion: 1,
		constraints.Symbolic:  1,
	}, counts)

	other, err := db.Constraints(uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordConstraints_UnknownRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	err := db.RecordConstraints("missing", 0, []constraints.Constraint{constraints.NewEquality(0, 0, 1)})
	assert.Error(t, err, "foreign key on run_id")
}

func TestRecordDecisions(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	run, err := db.CreateRun(RunSuppress, "readings.txt")
	require.NoError(t, err)

	decisions := []belief.Decision{
		{Epoch: 0, Nodes: []int{0, 1, 2}},
		{Epoch: 1, Suppressed: true},
		{Epoch: 2, Nodes: []int{1}},
	}
	var want belief.Stats
	for _, d := range decisions {
		want.Record(d)
	}
	require.NoError(t, db.RecordDecisions(run.ID, 1, decisions))
	require.NoError(t, db.RecordDecisions(run.ID, 2, []belief.Decision{{Epoch: 0, Nodes: []int{5}}}))
	require.NoError(t, db.RecordDecisions(run.ID, 3, nil))

	got, err := db.Decisions(run.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, decisions, got)

	want.Record(belief.Decision{Epoch: 0, Nodes: []int{5}})
	st, err := db.DecisionStats(run.ID)
	require.NoError(t, err)
	assert.Equal(t, want, st)
	assert.Equal(t, belief.Stats{Epochs: 4, Suppressed: 1, Transmissions: 3, Values: 5}, st)

	clusters, err := db.DecisionClusters(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, clusters, "an empty batch records nothing")
}

func TestGetRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	created, err := db.CreateRun(RunConstraints, "trace.txt")
	require.NoError(t, err)

	got, err := db.GetRun(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "trace.txt", got.Source)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = db.GetRun(uuid.NewString())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDecisionStats_Empty(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	st, err := db.DecisionStats(uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, belief.Stats{}, st)
}

func TestRecordDecisions_UnknownRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	err := db.RecordDecisions(uuid.NewString(), 0, []belief.Decision{
		{Epoch: 0, Nodes: []int{0}},
		{Epoch: 1, Suppressed: true},
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&n))
	assert.Zero(t, n, "a failed batch leaves no rows behind")
}
