package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/healthbatch/internal/domain"
	"github.com/hamed0406/healthbatch/internal/repo"
)

// Store keeps targets and execution logs in process memory.
type Store struct {
	mu         sync.RWMutex
	nextTarget domain.TargetID
	nextLog    int64
	targets    map[domain.TargetID]*domain.Target
	logs       []domain.ExecutionLog
	now        func() time.Time
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		logs:    make([]domain.ExecutionLog, 0, 128),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Store) Close() error { return nil }

// ---- TargetStore ----

func (m *Store) ListActive(ctx context.Context, env string) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Target
	for _, t := range m.sortedTargets() {
		if t.Enabled && t.MatchesEnvironment(env) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedTargets(), nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Create(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicate(t.Name, t.Environment, 0) {
		return repo.ErrDuplicate
	}
	m.nextTarget++
	t.ID = m.nextTarget
	now := m.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.targets[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if m.duplicate(t.Name, t.Environment, t.ID) {
		return repo.ErrDuplicate
	}
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = m.now()
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

func (m *Store) ToggleEnabled(ctx context.Context, id domain.TargetID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	t.Enabled = !t.Enabled
	t.UpdatedAt = m.now()
	return t.Enabled, nil
}

func (m *Store) Count(ctx context.Context, env string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, t := range m.targets {
		if t.Enabled && t.MatchesEnvironment(env) {
			active++
		}
	}
	return len(m.targets), active, nil
}

// caller holds m.mu
func (m *Store) sortedTargets() []domain.Target {
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// caller holds m.mu
func (m *Store) duplicate(name, env string, self domain.TargetID) bool {
	for id, t := range m.targets {
		if id != self && t.Name == name && t.Environment == env {
			return true
		}
	}
	return false
}

// ---- LogStore ----

func (m *Store) Append(ctx context.Context, l *domain.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLog++
	l.ID = m.nextLog
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = m.now()
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *Store) Recent(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return m.filter(since, func(domain.ExecutionLog) bool { return true }), nil
}

func (m *Store) RecentFailures(ctx context.Context, since time.Time) ([]domain.ExecutionLog, error) {
	return m.filter(since, func(l domain.ExecutionLog) bool { return !l.Success }), nil
}

func (m *Store) SlowResponses(ctx context.Context, thresholdMS int64, since time.Time) ([]domain.ExecutionLog, error) {
	out := m.filter(since, func(l domain.ExecutionLog) bool { return l.Success && l.ElapsedMS > thresholdMS })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ElapsedMS > out[j].ElapsedMS })
	return out, nil
}

func (m *Store) ByRun(ctx context.Context, runID string) ([]domain.ExecutionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ExecutionLog
	for _, l := range m.logs {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Store) Stats(ctx context.Context, since time.Time) (domain.LogStats, error) {
	st := domain.LogStats{Since: since}
	var total int64
	for _, l := range m.filter(since, func(domain.ExecutionLog) bool { return true }) {
		if l.Success {
			st.SuccessCount++
			total += l.ElapsedMS
		} else {
			st.FailureCount++
		}
	}
	if st.SuccessCount > 0 {
		st.AverageLatencyMS = float64(total) / float64(st.SuccessCount)
	}
	return st, nil
}

func (m *Store) StatsByTarget(ctx context.Context, since time.Time) ([]domain.TargetStats, error) {
	byName := map[string]*domain.TargetStats{}
	totals := map[string]int64{}
	for _, l := range m.filter(since, func(domain.ExecutionLog) bool { return true }) {
		st := byName[l.Name]
		if st == nil {
			st = &domain.TargetStats{Name: l.Name}
			byName[l.Name] = st
		}
		st.Executions++
		totals[l.Name] += l.ElapsedMS
		if l.Success {
			st.Successes++
		}
	}
	out := make([]domain.TargetStats, 0, len(byName))
	for name, st := range byName {
		st.AverageLatencyMS = float64(totals[name]) / float64(st.Executions)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	var n int64
	for _, l := range m.logs {
		if l.ExecutedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.logs = kept
	return n, nil
}

// filter returns matching logs executed at or after since, newest first.
func (m *Store) filter(since time.Time, keep func(domain.ExecutionLog) bool) []domain.ExecutionLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ExecutionLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if !l.ExecutedAt.Before(since) && keep(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out
}

var _ repo.Store = (*Store)(nil)
