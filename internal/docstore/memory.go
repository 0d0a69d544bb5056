package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in process. Used for tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]map[string]map[string]interface{}{},
		now:         time.Now,
	}
}

// WithClock overrides the clock used for ServerTimestamp.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: cloneMap(data)}, nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]Doc, error) {
	filters, err := prepareFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	var docs []Doc
	for id, data := range m.collections[q.Collection] {
		if matchesAll(data, filters) {
			docs = append(docs, Doc{ID: id, Data: cloneMap(data)})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			c, ok := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if ok && c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (m *MemoryStore) Count(ctx context.Context, q Query) (int, error) {
	q.Limit = 0
	q.OrderBy = ""
	docs, err := m.Query(ctx, q)
	return len(docs), err
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	return m.RunBatch(ctx, func(b Batch) error {
		b.Set(collection, id, data)
		return nil
	})
}

func (m *MemoryStore) Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return m.RunBatch(ctx, func(b Batch) error {
		b.Merge(collection, id, fields)
		return nil
	})
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return m.RunBatch(ctx, func(b Batch) error {
		b.Delete(collection, id)
		return nil
	})
}

// RunBatch applies all writes under one lock.
func (m *MemoryStore) RunBatch(_ context.Context, fn func(Batch) error) error {
	b := &batch{}
	if err := fn(b); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, w := range b.writes {
		coll, ok := m.collections[w.collection]
		if !ok {
			coll = map[string]map[string]interface{}{}
			m.collections[w.collection] = coll
		}
		switch w.kind {
		case opSet:
			coll[w.id] = cloneMap(w.data)
		case opMerge:
			doc, ok := coll[w.id]
			if !ok {
				doc = map[string]interface{}{}
			}
			applyMerge(doc, w.fields, now)
			coll[w.id] = doc
		case opDelete:
			delete(coll, w.id)
		}
	}
	return nil
}

type preparedFilter struct {
	Filter
	value interface{}
}

func prepareFilters(filters []Filter) ([]preparedFilter, error) {
	out := make([]preparedFilter, len(filters))
	for i, f := range filters {
		v, err := filterValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = preparedFilter{Filter: f, value: v}
	}
	return out, nil
}

func matchesAll(data map[string]interface{}, filters []preparedFilter) bool {
	for _, f := range filters {
		if !matches(data[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(got interface{}, f preparedFilter) bool {
	if f.value == nil {
		return f.Op == OpEq && got == nil
	}
	if f.Op == OpIn {
		list, ok := f.value.([]interface{})
		return ok && containsValue(list, got)
	}

	c, ok := compareValues(got, f.value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}
