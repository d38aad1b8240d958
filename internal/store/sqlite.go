package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	site       TEXT NOT NULL,
	mode       TEXT NOT NULL,
	names      TEXT NOT NULL,
	locations  TEXT,
	filter     TEXT,
	credits    INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	progress   TEXT,
	stats      TEXT,
	error      TEXT,
	logs       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS task_results (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL REFERENCES tasks(id),
	subtask_index INTEGER NOT NULL,
	record        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS page_cache (
	link       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_task_results_task_id ON task_results(task_id);
CREATE INDEX IF NOT EXISTS idx_task_results_subtask ON task_results(task_id, subtask_index);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = model.StatusPending
	}

	names, err := json.Marshal(task.Names)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal names")
	}
	locations, err := json.Marshal(task.Locations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal locations")
	}
	filter, err := json.Marshal(task.Filter)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal filter")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, site, mode, names, locations, filter, credits, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Site, string(task.Mode), string(names), string(locations), string(filter),
		task.Credits, string(task.Status), now, now,
	)
	return eris.Wrap(err, "sqlite: insert task")
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site, mode, names, locations, filter, credits, status, progress, error, created_at, updated_at
		 FROM tasks WHERE id = ?`, taskID)
	return scanTask(row)
}

// taskScanner abstracts *sql.Row and *sql.Rows.
type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (*model.Task, error) {
	var t model.Task
	var mode, status string
	var names, locations, filter, progress, taskErr sql.NullString

	err := row.Scan(&t.ID, &t.Site, &mode, &names, &locations, &filter, &t.Credits,
		&status, &progress, &taskErr, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan task")
	}

	t.Mode = model.TaskMode(mode)
	t.Status = model.TaskStatus(status)
	t.Error = taskErr.String
	if names.Valid {
		if err := json.Unmarshal([]byte(names.String), &t.Names); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal names")
		}
	}
	if locations.Valid && locations.String != "" {
		if err := json.Unmarshal([]byte(locations.String), &t.Locations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal locations")
		}
	}
	if filter.Valid && filter.String != "" {
		if err := json.Unmarshal([]byte(filter.String), &t.Filter); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal filter")
		}
	}
	if progress.Valid && progress.String != "" {
		if err := json.Unmarshal([]byte(progress.String), &t.Progress); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal progress")
		}
	}
	return &t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := `SELECT id, site, mode, names, locations, filter, credits, status, progress, error, created_at, updated_at FROM tasks`
	var args []any
	var conds []string
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks rows")
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task status %s", taskID)
	}
	return checkRowsAffected(res, taskID)
}

func (s *SQLiteStore) UpdateTaskProgress(ctx context.Context, taskID string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task progress %s", taskID)
	}
	return checkRowsAffected(res, taskID)
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID string, stats model.TaskStats, logs []string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal logs")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, stats = ?, logs = ?, updated_at = ? WHERE id = ?`,
		string(stats.Status), string(statsJSON), string(logsJSON), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete task %s", taskID)
	}
	return checkRowsAffected(res, taskID)
}

func (s *SQLiteStore) FailTask(ctx context.Context, taskID string, taskErr string, logs []string) error {
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal logs")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error = ?, logs = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), taskErr, string(logsJSON), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail task %s", taskID)
	}
	return checkRowsAffected(res, taskID)
}

func (s *SQLiteStore) SaveResults(ctx context.Context, taskID string, subtaskIndex int, records []model.Person) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO task_results (id, task_id, subtask_index, record, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save results")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal record")
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), taskID, subtaskIndex, string(recJSON), now); err != nil {
			return eris.Wrap(err, "sqlite: insert result")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) GetResults(ctx context.Context, taskID string) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM task_results WHERE task_id = ? ORDER BY subtask_index, created_at`, taskID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get results")
	}
	defer rows.Close()

	var records []model.Person
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var rec model.Person
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get results rows")
}

func (s *SQLiteStore) GetCachedPages(ctx context.Context, links []string) (map[string]string, error) {
	out := make(map[string]string, len(links))
	if len(links) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(links))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(links))
	for _, l := range links {
		args = append(args, l)
	}
	args = append(args, time.Now().UTC())

	rows, err := s.db.QueryContext(ctx,
		`SELECT link, body FROM page_cache WHERE link IN (`+placeholders+`) AND expires_at > ?`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached pages")
	}
	defer rows.Close()

	for rows.Next() {
		var link, body string
		if err := rows.Scan(&link, &body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cached page")
		}
		out[link] = body
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cached pages rows")
}

func (s *SQLiteStore) SetCachedPages(ctx context.Context, pages map[string]string, ttl time.Duration) error {
	if len(pages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin cache write")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	expires := now.Add(ttl)
	for link, body := range pages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO page_cache (link, body, fetched_at, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(link) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
			link, body, now, expires,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert cached page")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit cache write")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expired pages rows affected")
	}
	return int(n), nil
}

func checkRowsAffected(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}
