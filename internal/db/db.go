// Package db persists runs, emitted constraints and transmission decisions
// in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	RunConstraints = "constraints"
	RunSuppress    = "suppress"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the database at path, applies the connection
// PRAGMAs and runs the embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migFS, err := MigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migFS); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database with the connection PRAGMAs but leaves the
// schema alone, for the migrate command.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, err
	}
	return &DB{sqlDB}, nil
}

// pragmas are applied by the driver to every pooled connection.
var pragmas = strings.Join([]string{
	"_pragma=journal_mode(WAL)",
	"_pragma=busy_timeout(5000)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=temp_store(MEMORY)",
	"_pragma=foreign_keys(1)",
}, "&")

// Run is one invocation of a command over a trace or readings file.
type Run struct {
	ID        string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRun registers a new run and returns it with a fresh id.
func (db *DB) CreateRun(kind, source string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		CreatedAt: time.Now().Truncate(time.Second),
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, kind, source, created_unix) VALUES (?, ?, ?, ?)`,
		run.ID, run.Kind, run.Source, run.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Runs lists all runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, kind, source, created_unix FROM runs ORDER BY created_unix DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Source, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given id, or sql.ErrNoRows.
func (db *DB) GetRun(id string) (*Run, error) {
	r := &Run{ID: id}
	var created int64
	err := db.QueryRow(`SELECT kind, source, created_unix FROM runs WHERE run_id = ?`, id).
		Scan(&r.Kind, &r.Source, &created)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(created, 0)
	return r, nil
}

// RecordConstraints stores the constraints a cluster emitted, in order, in
// a single transaction.
func (db *DB) RecordConstraints(runID string, cluster int, cs []constraints.Constraint) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO constraints (run_id, cluster, epoch, node, kind, line) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cs {
		if _, err := stmt.Exec(runID, cluster, c.Epoch, c.Node, int(c.Kind), c.String()); err != nil {
			return fmt.Errorf("failed to insert constraint: %w", err)
		}
	}
	return tx.Commit()
}

// StoredConstraint is a constraint read back with the cluster it came from.
type StoredConstraint struct {
	Cluster    int
	Constraint constraints.Constraint
}

// Constraints returns the constraints of a run in insertion order.
func (db *DB) Constraints(runID string) ([]StoredConstraint, error) {
	rows, err := db.Query(`SELECT cluster, line FROM constraints WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredConstraint
	for rows.Next() {
		var cluster int
		var line string
		if err := rows.Scan(&cluster, &line); err != nil {
			return nil, err
		}
		c, err := constraints.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("stored constraint %q: %w", line, err)
		}
		out = append(out, StoredConstraint{Cluster: cluster, Constraint: c})
	}
	return out, rows.Err()
}

// ConstraintCounts returns the number of stored constraints per kind.
func (db *DB) ConstraintCounts(runID string) (map[constraints.Kind]int, error) {
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM constraints WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[constraints.Kind]int)
	for rows.Next() {
		var kind, n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[constraints.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// RecordDecisions stores the decisions of one cluster, in order, in a
// single transaction. Node ids are stored as given.
func (db *DB) RecordDecisions(runID string, cluster int, ds []belief.Decision) error {
	if len(ds) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO decisions (run_id, cluster, epoch, suppressed, nodes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range ds {
		ids := make([]string, len(d.Nodes))
		for i, n := range d.Nodes {
			ids[i] = strconv.Itoa(n)
		}
		if _, err := stmt.Exec(runID, cluster, d.Epoch, d.Suppressed, strings.Join(ids, ",")); err != nil {
			return fmt.Errorf("failed to insert decision: %w", err)
		}
	}
	return tx.Commit()
}

// Decisions returns the decisions of one cluster of a run, by epoch.
func (db *DB) Decisions(runID string, cluster int) ([]belief.Decision, error) {
	rows, err := db.Query(
		`SELECT epoch, suppressed, nodes FROM decisions WHERE run_id = ? AND cluster = ? ORDER BY epoch`,
		runID, cluster,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []belief.Decision
	for rows.Next() {
		var d belief.Decision
		var nodes string
		if err := rows.Scan(&d.Epoch, &d.Suppressed, &nodes); err != nil {
			return nil, err
		}
		if nodes != "" {
			for _, s := range strings.Split(nodes, ",") {
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("stored decision nodes %q: %w", nodes, err)
				}
				d.Nodes = append(d.Nodes, n)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DecisionClusters lists the clusters that recorded decisions in a run.
func (db *DB) DecisionClusters(runID string) ([]int, error) {
	rows, err := db.Query(`SELECT DISTINCT cluster FROM decisions WHERE run_id = ? ORDER BY cluster`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DecisionStats aggregates the stored decisions of a run.
func (db *DB) DecisionStats(runID string) (belief.Stats, error) {
	var st belief.Stats
	var suppressed, values sql.NullInt64
	err := db.QueryRow(`
		SELECT COUNT(*),
		       SUM(suppressed),
		       SUM(CASE WHEN nodes = '' THEN 0 ELSE LENGTH(nodes) - LENGTH(REPLACE(nodes, ',', '')) + 1 END)
		FROM decisions WHERE run_id = ?`, runID,
	).Scan(&st.Epochs, &suppressed, &values)
	if err != nil {
		return belief.Stats{}, err
	}
	st.Suppressed = int(suppressed.Int64)
	st.Values = int(values.Int64)

	err = db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE run_id = ? AND suppressed = 0 AND nodes != ''`, runID).
		Scan(&st.Transmissions)
	if err != nil {
		return belief.Stats{}, err
	}
	return st, nil
}
