// Package sqlite provides the sqlite-backed TaskRepository
// implementation with a read-through, write-invalidated GetAll cache.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"taskdog/internal/logging"
	"taskdog/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	priority INTEGER,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	planned_start TEXT,
	planned_end TEXT,
	deadline TEXT,
	actual_start TEXT,
	actual_end TEXT,
	estimated_duration REAL,
	is_fixed INTEGER NOT NULL DEFAULT 0,
	is_archived INTEGER NOT NULL DEFAULT 0,
	daily_allocations_json TEXT,
	actual_daily_hours_json TEXT,
	depends_on_json TEXT,
	tags_json TEXT
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS task_tags (
	task_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY (task_id, tag_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	operation TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id INTEGER,
	resource_name TEXT,
	success INTEGER NOT NULL,
	client_name TEXT,
	old_values_json TEXT,
	new_values_json TEXT,
	error_message TEXT
);
`

// Repository is a database/sql + mattn/go-sqlite3 backed
// repository.TaskRepository: one open connection, WAL journaling, and
// a busy timeout instead of application-level write retries.
type Repository struct {
	db *sql.DB

	cacheMu sync.Mutex
	cache   []*task.Task // nil means "absent"; any write sets this back to nil
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists. Use ":memory:" for ephemeral test
// databases.
func Open(path string) (*Repository, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection avoids sqlite's "database is locked"
	// errors under the in-process mutex striping in the controller.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Repo("sqlite repository opened at %s", path)
	return &Repository{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// GetAll returns every task in insertion (id) order, serving from cache
// when populated.
func (r *Repository) GetAll(ctx context.Context) ([]*task.Task, error) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	if r.cache != nil {
		logging.RepoDebug("GetAll served from cache (%d tasks)", len(r.cache))
		out := make([]*task.Task, len(r.cache))
		for i, t := range r.cache {
			out[i] = t.Clone()
		}
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	tasks := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.getByIDNoLock(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	r.cache = make([]*task.Task, len(tasks))
	for i, t := range tasks {
		r.cache[i] = t.Clone()
	}
	logging.RepoDebug("GetAll populated cache (%d tasks)", len(tasks))
	return tasks, nil
}

// GetByID returns the task with id, bypassing the GetAll cache.
func (r *Repository) GetByID(ctx context.Context, id int) (*task.Task, error) {
	return r.getByIDNoLock(ctx, id)
}

func (r *Repository) getByIDNoLock(ctx context.Context, id int) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &task.ErrNotFound{ID: id}
		}
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	return t, nil
}

// GetByIDs returns a map id->task for every id that resolves.
func (r *Repository) GetByIDs(ctx context.Context, ids []int) (map[int]*task.Task, error) {
	out := make(map[int]*task.Task, len(ids))
	for _, id := range ids {
		t, err := r.getByIDNoLock(ctx, id)
		if err != nil {
			if _, ok := err.(*task.ErrNotFound); ok {
				continue
			}
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// Save persists t, refreshes UpdatedAt, and invalidates the GetAll
// cache.
func (r *Repository) Save(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now()
	if err := r.upsert(ctx, t); err != nil {
		return err
	}
	r.invalidate()
	return nil
}

// SaveAll persists every task inside a single transaction.
func (r *Repository) SaveAll(ctx context.Context, tasks []*task.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	now := time.Now()
	for _, t := range tasks {
		t.UpdatedAt = now
		if err := upsertTx(ctx, tx, t); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch save: %w", err)
	}
	r.invalidate()
	return nil
}

// Delete removes the task with id if present.
func (r *Repository) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task_tags: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	r.invalidate()
	return nil
}

// GenerateNextID returns max(id)+1, or 1 when the table is empty.
func (r *Repository) GenerateNextID(ctx context.Context) (int, error) {
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(id) FROM tasks`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to compute next id: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// Create assigns an id and timestamps, validates via task.New, and
// persists.
func (r *Repository) Create(ctx context.Context, fields task.Fields) (*task.Task, error) {
	id, err := r.GenerateNextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t, err := task.New(id, fields, now)
	if err != nil {
		return nil, err
	}

	if err := r.Save(ctx, t); err != nil {
		return nil, err
	}
	logging.Repo("created task %d %q", t.ID, t.Name)
	return t, nil
}

// Reload invalidates the GetAll cache unconditionally.
func (r *Repository) Reload(ctx context.Context) error {
	r.invalidate()
	return nil
}

func (r *Repository) invalidate() {
	r.cacheMu.Lock()
	r.cache = nil
	r.cacheMu.Unlock()
}

func (r *Repository) upsert(ctx context.Context, t *task.Task) error {
	return upsertTx(ctx, r.db, t)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTx(ctx context.Context, ex execer, t *task.Task) error {
	dailyJSON, err := marshalDateMap(t.DailyAllocations)
	if err != nil {
		return fmt.Errorf("failed to marshal daily_allocations: %w", err)
	}
	actualJSON, err := marshalDateMap(t.ActualDailyHours)
	if err != nil {
		return fmt.Errorf("failed to marshal actual_daily_hours: %w", err)
	}
	dependsJSON, err := json.Marshal(t.DependsOn)
	if err != nil {
		return fmt.Errorf("failed to marshal depends_on: %w", err)
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO tasks (
			id, name, priority, status, created_at, updated_at,
			planned_start, planned_end, deadline, actual_start, actual_end,
			estimated_duration, is_fixed, is_archived,
			daily_allocations_json, actual_daily_hours_json, depends_on_json, tags_json
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, priority=excluded.priority, status=excluded.status,
			updated_at=excluded.updated_at, planned_start=excluded.planned_start,
			planned_end=excluded.planned_end, deadline=excluded.deadline,
			actual_start=excluded.actual_start, actual_end=excluded.actual_end,
			estimated_duration=excluded.estimated_duration, is_fixed=excluded.is_fixed,
			is_archived=excluded.is_archived,
			daily_allocations_json=excluded.daily_allocations_json,
			actual_daily_hours_json=excluded.actual_daily_hours_json,
			depends_on_json=excluded.depends_on_json, tags_json=excluded.tags_json
	`,
		t.ID, t.Name, nullableInt(t.Priority), string(t.Status), formatTime(&t.CreatedAt), formatTime(&t.UpdatedAt),
		formatTime(t.PlannedStart), formatTime(t.PlannedEnd), formatTime(t.Deadline),
		formatTime(t.ActualStart), formatTime(t.ActualEnd),
		nullableFloat(t.EstimatedDuration), boolToInt(t.IsFixed), boolToInt(t.IsArchived),
		dailyJSON, actualJSON, string(dependsJSON), string(tagsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %d: %w", t.ID, err)
	}

	if err := syncTags(ctx, ex, t); err != nil {
		return err
	}
	return nil
}

// syncTags writes the normalised tags/task_tags join tables alongside
// the tags_json column, per the dual-write migration window.
func syncTags(ctx context.Context, ex execer, t *task.Task) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear task_tags for %d: %w", t.ID, err)
	}
	for _, tag := range t.Tags {
		if _, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", tag, err)
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO task_tags (task_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?
		`, t.ID, tag); err != nil {
			return fmt.Errorf("failed to link tag %q to task %d: %w", tag, t.ID, err)
		}
	}
	return nil
}

const selectColumns = `
	SELECT id, name, priority, status, created_at, updated_at,
		planned_start, planned_end, deadline, actual_start, actual_end,
		estimated_duration, is_fixed, is_archived,
		daily_allocations_json, actual_daily_hours_json, depends_on_json, tags_json
	FROM tasks`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		id                                                          int
		name, status                                                string
		priority                                                    sql.NullInt64
		createdAt, updatedAt                                        string
		plannedStart, plannedEnd, deadline, actualStart, actualEnd  sql.NullString
		estimatedDuration                                           sql.NullFloat64
		isFixed, isArchived                                         int
		dailyJSON, actualJSON, dependsJSON, tagsJSON                sql.NullString
	)

	if err := row.Scan(
		&id, &name, &priority, &status, &createdAt, &updatedAt,
		&plannedStart, &plannedEnd, &deadline, &actualStart, &actualEnd,
		&estimatedDuration, &isFixed, &isArchived,
		&dailyJSON, &actualJSON, &dependsJSON, &tagsJSON,
	); err != nil {
		return nil, err
	}

	t := &task.Task{
		ID:         id,
		Name:       name,
		Status:     task.Status(status),
		IsFixed:    isFixed != 0,
		IsArchived: isArchived != 0,
	}

	if created, err := parseTime(createdAt); err == nil {
		t.CreatedAt = created
	}
	if updated, err := parseTime(updatedAt); err == nil {
		t.UpdatedAt = updated
	}
	t.PlannedStart = parseNullableTime(plannedStart)
	t.PlannedEnd = parseNullableTime(plannedEnd)
	t.Deadline = parseNullableTime(deadline)
	t.ActualStart = parseNullableTime(actualStart)
	t.ActualEnd = parseNullableTime(actualEnd)

	if priority.Valid {
		p := int(priority.Int64)
		t.Priority = &p
	}
	if estimatedDuration.Valid {
		d := estimatedDuration.Float64
		t.EstimatedDuration = &d
	}

	var err error
	if t.DailyAllocations, err = unmarshalDateMap(dailyJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily_allocations: %w", err)
	}
	if t.ActualDailyHours, err = unmarshalDateMap(actualJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actual_daily_hours: %w", err)
	}
	if dependsJSON.Valid && dependsJSON.String != "" {
		if err := json.Unmarshal([]byte(dependsJSON.String), &t.DependsOn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal depends_on: %w", err)
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return t, nil
}

func marshalDateMap(m map[time.Time]float64) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	asStrings := make(map[string]float64, len(m))
	for d, h := range m {
		asStrings[d.Format("2006-01-02")] = h
	}
	data, err := json.Marshal(asStrings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalDateMap(ns sql.NullString) (map[time.Time]float64, error) {
	if !ns.Valid || ns.String == "" || ns.String == "{}" {
		return nil, nil
	}
	var asStrings map[string]float64
	if err := json.Unmarshal([]byte(ns.String), &asStrings); err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(asStrings))
	for ds, h := range asStrings {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			return nil, err
		}
		out[d] = h
	}
	return out, nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
