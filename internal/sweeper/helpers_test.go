package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBackendDown = errors.New("backend unreachable")

type testRecord struct {
	id  string
	exp time.Time
}

func (r testRecord) Identifier() string { return r.id }
func (r testRecord) Expiry() time.Time  { return r.exp }

// memStore is an in-memory Store that records every call made to it.
type memStore struct {
	name string

	mu      sync.Mutex
	records map[string]time.Time
	// unfiltered makes ListExpired return every record regardless of cutoff.
	unfiltered bool
	// failLists is the number of upcoming ListExpired calls that fail.
	failLists int
	lists     int
	cutoffs   []time.Time
	deletes   []string
	ctxs      []context.Context

	// onList runs inside ListExpired after the call is recorded.
	onList func()
	// onDelete runs inside Delete before the record is removed.
	onDelete func(ctx context.Context)
}

func newMemStore(name string, recs ...testRecord) *memStore {
	m := &memStore{name: name, records: map[string]time.Time{}}
	for _, r := range recs {
		m.records[r.id] = r.exp
	}
	return m
}

func (m *memStore) Name() string { return m.name }

func (m *memStore) ListExpired(ctx context.Context, cutoff time.Time) ([]Record, error) {
	m.mu.Lock()
	m.lists++
	m.cutoffs = append(m.cutoffs, cutoff)
	fail := m.failLists > 0
	if fail {
		m.failLists--
	}
	var out []Record
	if !fail {
		for id, exp := range m.records {
			if m.unfiltered || !exp.After(cutoff) {
				out = append(out, testRecord{id: id, exp: exp})
			}
		}
	}
	hook := m.onList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return nil, errBackendDown
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	hook := m.onDelete
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	m.ctxs = append(m.ctxs, ctx)
	if _, ok := m.records[id]; !ok {
		return errors.New("record not found")
	}
	delete(m.records, id)
	return nil
}

func (m *memStore) listCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *memStore) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

func (m *memStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok
}

func (m *memStore) add(r testRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.id] = r.exp
}
