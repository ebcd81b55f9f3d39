package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New migrates the schema and opens a connection pool.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := Migrate(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info("postgres_connected")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- TargetStore ----

const targetCols = `id, name, url, method, timeout_ms, request_body, enabled, environment, description, created_at, updated_at`

func scanTarget(row pgx.Row) (domain.Target, error) {
	var (
		t      domain.Target
		id     int64
		method string
	)
	err := row.Scan(&id, &t.Name, &t.URL, &method, &t.TimeoutMS, &t.RequestBody, &t.Enabled,
		&t.Environment, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	t.ID = domain.TargetID(id)
	t.Method = domain.Method(method)
	return t, err
}

func (s *Store) queryTargets(ctx context.Context, q string, args ...any) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
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
		  WHERE enabled AND (environment = $1 OR environment = '')
		  ORDER BY id`, env)
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	return s.queryTargets(ctx, `SELECT `+targetCols+` FROM targets ORDER BY id`)
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	t, err := scanTarget(s.pool.QueryRow(ctx, `SELECT `+targetCols+` FROM targets WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
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
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO targets (name, url, method, timeout_ms, request_body, enabled, environment, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		t.Name, t.URL, string(t.Method), t.TimeoutMS, t.RequestBody, t.Enabled,
		t.Environment, t.Description, t.CreatedAt, t.UpdatedAt,
	).Scan(&id)
	if isUnique(err) {
		return repo.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	t.ID = domain.TargetID(id)
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET name = $2, url = $3, method = $4, timeout_ms = $5, request_body = $6,
		        enabled = $7, environment = $8, description = $9, updated_at = $10
		  WHERE id = $1`,
		int64(t.ID), t.Name, t.URL, string(t.Method), t.TimeoutMS, t.RequestBody,
		t.Enabled, t.Environment, t.Description, t.UpdatedAt)
	if isUnique(err) {
		return repo.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) ToggleEnabled(ctx context.Context, id domain.TargetID) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`UPDATE targets SET enabled = NOT enabled, updated_at = now() WHERE id = $1 RETURNING enabled`,
		int64(id)).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, repo.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle target: %w", err)
	}
	return enabled, nil
}

func (s *Store) Count(ctx context.Context, env string) (int, int, error) {
	var total, active int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE enabled AND (environment = $1 OR environment = ''))
		   FROM targets`, env).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count targets: %w", err)
	}
	return total, active, nil
}

// ---- LogStore ----

const logCols = `id, target_id, server_name, url, method, success, status_code, elapsed_ms, error_message, response_body, executed_at, run_id, environment`

func (s *Store) Append(ctx context.Context, l *domain.ExecutionLog) error {
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO execution_logs
		   (target_id, server_name, url, method, success, status_code, elapsed_ms,
		    error_message, response_body, executed_at, run_id, environment)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		int64(l.TargetID), l.Name, l.URL, string(l.Method), l.Success, l.StatusCode, l.ElapsedMS,
		l.ErrorMessage, l.ResponseBody, l.ExecutedAt, l.RunID, l.Environment,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

func (s *Store) queryLogs(ctx context.Context, q string, args ...any) ([]domain.ExecutionLog, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()
	var out []domain.ExecutionLog
	for rows.Next() {
		var (
			l        domain.ExecutionLog
			targetID int64
			method   string
		)
		if err := rows.Scan(&l.ID, &targetID, &l.Name, &l.URL, &method, &l.Success, &l.StatusCode, &l.ElapsedMS,
			&l.ErrorMessage, &l.ResponseBody, &l.ExecutedAt, &l.RunID, &l.Environment); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		l.TargetID = domain.TargetID(targetID)
		l.Method = domain.Method(method)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) Recent(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs WHERE executed_at >= $1 ORDER BY executed_at DESC, id DESC`, since)
}

func (s *Store) RecentFailures(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs WHERE NOT success AND executed_at >= $1 ORDER BY executed_at DESC, id DESC`, since)
}

func (s *Store) SlowResponses(ctx context.Context, thresholdMS int64, since time.Time) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx,
		`SELECT `+logCols+` FROM execution_logs
		  WHERE success AND elapsed_ms > $1 AND executed_at >= $2
		  ORDER BY elapsed_ms DESC`, thresholdMS, since)
}

func (s *Store) ByRun(ctx context.Context, runID string) ([]domain.ExecutionLog, error) {
	return s.queryLogs(ctx, `SELECT `+logCols+` FROM execution_logs WHERE run_id = $1 ORDER BY id`, runID)
}

func (s *Store) Stats(ctx context.Context, since time.Time) (domain.LogStats, error) {
	st := domain.LogStats{Since: since}
	var avg *float64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE success),
		        count(*) FILTER (WHERE NOT success),
		        AVG(elapsed_ms) FILTER (WHERE success)::float8
		   FROM execution_logs
		  WHERE executed_at >= $1`, since).Scan(&st.SuccessCount, &st.FailureCount, &avg)
	if err != nil {
		return st, fmt.Errorf("log stats: %w", err)
	}
	if avg != nil {
		st.AverageLatencyMS = *avg
	}
	return st, nil
}

func (s *Store) StatsByTarget(ctx context.Context, since time.Time) ([]domain.TargetStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT server_name, count(*), count(*) FILTER (WHERE success), AVG(elapsed_ms)::float8
		   FROM execution_logs
		  WHERE executed_at >= $1
		  GROUP BY server_name
		  ORDER BY server_name`, since)
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
	tag, err := s.pool.Exec(ctx, `DELETE FROM execution_logs WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge execution logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
