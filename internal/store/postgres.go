package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	site       TEXT NOT NULL,
	mode       TEXT NOT NULL,
	names      JSONB NOT NULL,
	locations  JSONB,
	filter     JSONB,
	credits    INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	progress   JSONB,
	stats      JSONB,
	error      TEXT,
	logs       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS task_results (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL REFERENCES tasks(id),
	subtask_index INTEGER NOT NULL,
	record        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_cache (
	link       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_task_results_task_id ON task_results(task_id);
CREATE INDEX IF NOT EXISTS idx_task_results_subtask ON task_results(task_id, subtask_index);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *model.Task) error {
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
		return eris.Wrap(err, "postgres: marshal names")
	}
	locations, err := json.Marshal(task.Locations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal locations")
	}
	filter, err := json.Marshal(task.Filter)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal filter")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (id, site, mode, names, locations, filter, credits, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Site, string(task.Mode), names, locations, filter,
		task.Credits, string(task.Status), now, now,
	)
	return eris.Wrap(err, "postgres: insert task")
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, site, mode, names, locations, filter, credits, status, progress, error, created_at, updated_at
		 FROM tasks WHERE id = $1`, taskID)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func scanPgTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var mode, status string
	var names, locations, filter, progress []byte
	var taskErr *string

	err := row.Scan(&t.ID, &t.Site, &mode, &names, &locations, &filter, &t.Credits,
		&status, &progress, &taskErr, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Mode = model.TaskMode(mode)
	t.Status = model.TaskStatus(status)
	if taskErr != nil {
		t.Error = *taskErr
	}
	if len(names) > 0 {
		if err := json.Unmarshal(names, &t.Names); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal names")
		}
	}
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &t.Locations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal locations")
		}
	}
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &t.Filter); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal filter")
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &t.Progress); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal progress")
		}
	}
	return &t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := `SELECT id, site, mode, names, locations, filter, credits, status, progress, error, created_at, updated_at FROM tasks`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks rows")
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task status %s", taskID)
	}
	if ct.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) UpdateTaskProgress(ctx context.Context, taskID string, progress model.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE tasks SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task progress %s", taskID)
	}
	if ct.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) CompleteTask(ctx context.Context, taskID string, stats model.TaskStats, logs []string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal logs")
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, stats = $2, logs = $3, updated_at = $4 WHERE id = $5`,
		string(stats.Status), statsJSON, logsJSON, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete task %s", taskID)
	}
	if ct.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) FailTask(ctx context.Context, taskID string, taskErr string, logs []string) error {
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal logs")
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, error = $2, logs = $3, updated_at = $4 WHERE id = $5`,
		string(model.StatusFailed), taskErr, logsJSON, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail task %s", taskID)
	}
	if ct.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) SaveResults(ctx context.Context, taskID string, subtaskIndex int, records []model.Person) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal record")
		}
		batch.Queue(
			`INSERT INTO task_results (id, task_id, subtask_index, record, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), taskID, subtaskIndex, recJSON, now,
		)
	}
	return eris.Wrap(s.pool.SendBatch(ctx, batch).Close(), "postgres: save results batch")
}

func (s *PostgresStore) GetResults(ctx context.Context, taskID string) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM task_results WHERE task_id = $1 ORDER BY subtask_index, created_at`, taskID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get results")
	}
	defer rows.Close()

	var records []model.Person
	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var rec model.Person
		if err := json.Unmarshal(recJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: get results rows")
}

func (s *PostgresStore) GetCachedPages(ctx context.Context, links []string) (map[string]string, error) {
	out := make(map[string]string, len(links))
	if len(links) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT link, body FROM page_cache WHERE link = ANY($1) AND expires_at > now()`, links)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached pages")
	}
	defer rows.Close()

	for rows.Next() {
		var link, body string
		if err := rows.Scan(&link, &body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cached page")
		}
		out[link] = body
	}
	return out, eris.Wrap(rows.Err(), "postgres: cached pages rows")
}

func (s *PostgresStore) SetCachedPages(ctx context.Context, pages map[string]string, ttl time.Duration) error {
	if len(pages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	expires := now.Add(ttl)
	for link, body := range pages {
		batch.Queue(
			`INSERT INTO page_cache (link, body, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (link) DO UPDATE SET body = EXCLUDED.body, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
			link, body, now, expires,
		)
	}
	return eris.Wrap(s.pool.SendBatch(ctx, batch).Close(), "postgres: cache write batch")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(ct.RowsAffected()), nil
}
