package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo"
)

// Store implements repo.Store on SQLite in WAL mode with a single writer
// connection and a pool of readers.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
	log     *zap.Logger
}

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	writeDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	if err := runMigrations(ctx, writeDB); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	readDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}
	readDB.SetMaxOpenConns(runtime.NumCPU())

	log.Info("sqlite_open", zap.String("path", path), zap.Int("schema_version", schemaVersion))
	return &Store{readDB: readDB, writeDB: writeDB, log: log}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	var hasSchemaTbl int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&hasSchemaTbl); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if hasSchemaTbl == 0 {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply base schema: %w", err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
		return nil
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration v%d begin: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d version update: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration v%d commit: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}

func (s *Store) Close() error {
	_, _ = s.writeDB.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return multierr.Combine(s.readDB.Close(), s.writeDB.Close())
}

const timeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- TargetStore ----

const targetCols = `id, name, url, method, timeout_ms, request_body, enabled, environment, description, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(row scanner) (domain.Target, error) {
	var (
		t                    domain.Target
		method               string
		enabled              int
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.URL, &method, &t.TimeoutMS, &t.RequestBody, &enabled,
		&t.Environment, &t.Description, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Method = domain.Method(method)
	t.Enabled = enabled == 1
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) queryTargets(ctx context.Context, q string, args ...any) ([]domain.Target, error) {
	rows, err := s.readDB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()
	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListActive(ctx context.Context, env string) ([]domain.Target, error) {
	return s.queryTargets(ctx,
		`SELECT `+targetCols+` FROM targets
		 WHERE enabled = 1 AND (environment = ? OR environment = '')
		 ORDER BY id`, env)
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	return s.queryTargets(ctx, `SELECT `+targetCols+` FROM targets ORDER BY id`)
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	t, err := scanTarget(s.readDB.QueryRowContext(ctx, `SELECT `+targetCols+` FROM targets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *domain.Target) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	res, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO targets (name, url, method, timeout_ms, request_body, enabled, environment, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.URL, string(t.Method), t.TimeoutMS, t.RequestBody, boolToInt(t.Enabled),
		t.Environment, t.Description, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if isUnique(err) {
		return repo.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	id, _ := res.LastInsertId()
	t.ID = domain.TargetID(id)
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.writeDB.ExecContext(ctx,
		`UPDATE targets SET name = ?, url = ?, method = ?, timeout_ms = ?, request_body = ?, enabled = ?,
		        environment = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.URL, string(t.Method), t.TimeoutMS, t.RequestBody, boolToInt(t.Enabled),
		t.Environment, t.Description, formatTime(t.UpdatedAt), t.ID)
	if isUnique(err) {
		return repo.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	return affected(res)
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return affected(res)
}

func (s *Store) ToggleEnabled(ctx context.Context, id domain.TargetID) (bool, error) {
	var enabled int
	err := s.writeDB.QueryRowContext(ctx,
		`UPDATE targets SET enabled = 1 - enabled, updated_at = ? WHERE id = ? RETURNING enabled`,
		formatTime(time.Now()), id).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, repo.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle target: %w", err)
	}
	return enabled == 1, nil
}

func (s *Store) Count(ctx context.Context, env string) (int, int, error) {
	var total, active int
	err := s.readDB.QueryRowContext(ctx,
		`SELECT count(*),
		        COALESCE(SUM(CASE WHEN enabled = 1 AND (environment = ? OR environment = '') THEN 1 ELSE 0 END), 0)
		 FROM targets`, env).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count targets: %w", err)
	}
	return total, active, nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- LogStore ----

const logCols = `id, target_id, server_name, url, method, success, status_code, elapsed_ms, error_message, response_body, executed_at, run_id, environment`

func (s *Store) Append(ctx context.Context, l *domain.ExecutionLog) error {
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now().UTC()
	}
	res, err := s.writeDB.ExecContext(ctx,
		`INSERT INTO execution_logs (target_id, server_name, url, method, success, status_code, elapsed_ms,
		                             error_message, response_body, executed_at, run_id, environment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.TargetID, l.Name, l.URL, string(l.Method), boolToInt(l.Success), l.StatusCode, l.ElapsedMS,
		l.ErrorMessage, l.ResponseBody, formatTime(l.ExecutedAt), l.RunID, l.Environment)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	id, _ := res.LastInsertId()
	l.ID = id
	return nil
}

func (s *Store) queryLogs(ctx context.Context, q string, args ...any) ([]domain.ExecutionLog, error) {
	rows, err := s.readDB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()
	var out []domain.ExecutionLog
	for rows.Next() {
		var (
			l          domain.ExecutionLog
			method     string
			success    int
			executedAt string
		)
		if err := rows.Scan(&l.ID, &l.TargetID, &l.Name, &l.URL, &method, &success, &l.StatusCode, &l.ElapsedMS,
			&l.ErrorMessage, &l.ResponseBody, &executedAt, &l.RunID, &l.Environment); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		l.Method = domain.Method(method)
		l.Success = success == 1
		l.ExecutedAt = parseTime(executedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) Recent(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs WHERE executed_at >= ? ORDER BY executed_at DESC, id DESC`,
		formatTime(since))
}

func (s *Store) RecentFailures(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs WHERE success = 0 AND executed_at >= ? ORDER BY executed_at DESC, id DESC`,
		formatTime(since))
}

func (s *Store) SlowResponses(ctx context.Context, thresholdMS int64, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs
		 WHERE success = 1 AND elapsed_ms > ? AND executed_at >= ?
		 ORDER BY elapsed_ms DESC`,
		thresholdMS, formatTime(since))
}

func (s *Store) ByRun(ctx context.Context, runID string) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx, `SELECT `+logCols+` FROM execution_logs WHERE run_id = ? ORDER BY id`, runID)
}

func (s *Store) Stats(ctx context.Context, since time.Time) (domain.LogStats, error) {
	st := domain.LogStats{Since: since}
	var avg sql.NullFloat64
	err := s.readDB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(success), 0),
		        COALESCE(SUM(1 - success), 0),
		        AVG(CASE WHEN success = 1 THEN elapsed_ms END)
		 FROM execution_logs WHERE executed_at >= ?`, formatTime(since)).
		Scan(&st.SuccessCount, &st.FailureCount, &avg)
	if err != nil {
		return st, fmt.Errorf("log stats: %w", err)
	}
	st.AverageLatencyMS = avg.Float64
	return st, nil
}

func (s *Store) StatsByTarget(ctx context.Context, since time.Time) ([]domain.TargetStats, error) {
	rows, err := s.readDB.QueryContext(ctx,
		`SELECT server_name, count(*), COALESCE(SUM(success), 0), AVG(elapsed_ms)
		 FROM execution_logs WHERE executed_at >= ?
		 GROUP BY server_name ORDER BY server_name`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("target stats: %w", err)
	}
	defer rows.Close()
	var out []domain.TargetStats
	for rows.Next() {
		var st domain.TargetStats
		if err := rows.Scan(&st.Name, &st.Executions, &st.Successes, &st.AverageLatencyMS); err != nil {
			return nil, fmt.Errorf("scan target stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM execution_logs WHERE executed_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("purge execution logs: %w", err)
	}
	return res.RowsAffected()
}

var _ repo.Store = (*Store)(nil)
