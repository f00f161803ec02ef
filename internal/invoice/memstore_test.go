package invoice

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// memStore is an in-memory Store. Transactions work on a copy that replaces
// the committed state only when fn succeeds.
type memStore struct {
	mu      sync.Mutex
	lines   []Line
	failGet error
	commits int
}

func newMemStore(lines ...Line) *memStore {
	return &memStore{lines: slices.Clone(lines)}
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{lines: slices.Clone(m.lines), failGet: m.failGet}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.lines = tx.lines
	m.commits++
	return nil
}

func (m *memStore) ListAll(context.Context) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines), nil
}

func (m *memStore) ListByProject(_ context.Context, projectID string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Line
	for _, l := range m.lines {
		if l.ProjectID == projectID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) DeleteProject(_ context.Context, projectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.lines)
	m.lines = slices.DeleteFunc(m.lines, func(l Line) bool { return l.ProjectID == projectID })
	return int64(before - len(m.lines)), nil
}

func (m *memStore) get(projectID, serviceType string) (Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.ProjectID == projectID && l.ServiceType == serviceType {
			return l, true
		}
	}
	return Line{}, false
}

type memTx struct {
	lines   []Line
	failGet error
}

func (t *memTx) find(projectID, serviceType string) int {
	return slices.IndexFunc(t.lines, func(l Line) bool {
		return l.ProjectID == projectID && l.ServiceType == serviceType
	})
}

func (t *memTx) Get(_ context.Context, projectID, serviceType string) (Line, error) {
	if t.failGet != nil {
		return Line{}, t.failGet
	}
	i := t.find(projectID, serviceType)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	return t.lines[i], nil
}

func (t *memTx) Insert(_ context.Context, l Line) error {
	if t.find(l.ProjectID, l.ServiceType) >= 0 {
		return ErrLineExists
	}
	now := time.Now()
	l.CreatedAt, l.UpdatedAt = now, now
	t.lines = append(t.lines, l)
	return nil
}

func (t *memTx) Update(_ context.Context, l Line) error {
	i := t.find(l.ProjectID, l.ServiceType)
	if i < 0 {
		return ErrLineNotFound
	}
	l.UpdatedAt = time.Now()
	t.lines[i] = l
	return nil
}

// racingTx reports a missing row once, then loses the insert race.
type racingTx struct {
	memTx
	raced bool
}

func (t *racingTx) Get(ctx context.Context, projectID, serviceType string) (Line, error) {
	if !t.raced {
		return Line{}, ErrLineNotFound
	}
	return t.memTx.Get(ctx, projectID, serviceType)
}

func (t *racingTx) Insert(ctx context.Context, l Line) error {
	t.raced = true
	if err := t.memTx.Insert(ctx, l); err != nil {
		return err
	}
	return ErrLineExists
}

var errBoom = errors.New("boom")
