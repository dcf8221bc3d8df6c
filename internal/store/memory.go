package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// watchBuffer bounds how far a subscriber may fall behind before its channel
// is closed and it has to re-subscribe.
const watchBuffer = 256

// Memory is the in-process Store used by tests and by single-node deploys.
// It keeps documents in a map guarded by one mutex; batch commits mutate
// under the lock, which gives the atomicity the contract requires.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	watchers map[int]*watcher
	nextID   int
	clock    func() time.Time
}

type watcher struct {
	path   string
	doc    bool
	ch     chan Event
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string]any),
		watchers: make(map[int]*watcher),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock. Tests use it to pin server timestamps.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func (m *Memory) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock()
}

func (m *Memory) Get(ctx context.Context, path string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[path]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{Path: path, Data: copyDoc(data)}, nil
}

func (m *Memory) Set(ctx context.Context, path string, data map[string]any) error {
	return m.Commit(ctx, NewBatch().Set(path, data))
}

func (m *Memory) Merge(ctx context.Context, path string, fields map[string]any) error {
	return m.Commit(ctx, NewBatch().Merge(path, fields))
}

func (m *Memory) Commit(ctx context.Context, batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	for _, op := range batch.ops {
		if !op.guard {
			continue
		}
		existing, ok := m.docs[op.path]
		if !ok || !equalValue(existing[op.guardKey], op.guardVal) {
			return ErrPreconditionFailed
		}
	}

	for _, op := range batch.ops {
		switch op.kind {
		case opSet:
			existed := m.docs[op.path] != nil
			doc := make(map[string]any, len(op.fields))
			for key, value := range op.fields {
				doc[key] = resolveValue(nil, value, now)
			}
			m.docs[op.path] = doc
			m.notify(op.path, eventFor(existed))
		case opMerge:
			doc, existed := m.docs[op.path]
			if !existed {
				doc = make(map[string]any)
				m.docs[op.path] = doc
			}
			for key, value := range op.fields {
				doc[key] = resolveValue(doc[key], value, now)
			}
			m.notify(op.path, eventFor(existed))
		case opDelete:
			if _, ok := m.docs[op.path]; ok {
				delete(m.docs, op.path)
				m.notify(op.path, EventRemoved)
			}
		}
	}
	return nil
}

func eventFor(existed bool) EventType {
	if existed {
		return EventModified
	}
	return EventAdded
}

func (m *Memory) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Doc
	for path, data := range m.docs {
		if CollectionOf(path) != collection {
			continue
		}
		if !matches(data, filters) {
			continue
		}
		out = append(out, Doc{Path: path, Data: copyDoc(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(data map[string]any, filters []Filter) bool {
	for _, filter := range filters {
		if !equalValue(data[filter.Field], filter.Equals) {
			return false
		}
	}
	return true
}

func (m *Memory) Watch(ctx context.Context, path string) (<-chan Event, error) {
	m.mu.Lock()
	isDoc := false
	if _, ok := m.docs[path]; ok {
		isDoc = true
	} else {
		// A path with a live document is a document watch; anything else is
		// treated as a collection watch. Document watches on not-yet-created
		// paths register by depth: collections have an odd segment count.
		isDoc = segmentCount(path)%2 == 0
	}

	var initial []Doc
	if isDoc {
		if data, ok := m.docs[path]; ok {
			initial = append(initial, Doc{Path: path, Data: copyDoc(data)})
		}
	} else {
		for docPath, data := range m.docs {
			if CollectionOf(docPath) == path {
				initial = append(initial, Doc{Path: docPath, Data: copyDoc(data)})
			}
		}
		sort.Slice(initial, func(i, j int) bool { return initial[i].Path < initial[j].Path })
	}

	// A long-lived collection's snapshot can exceed watchBuffer, so the
	// channel is sized to hold it in full; the sends below must never block
	// while the store lock is held.
	w := &watcher{
		path: path,
		doc:  isDoc,
		ch:   make(chan Event, len(initial)+watchBuffer),
	}
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	for _, doc := range initial {
		w.ch <- Event{Type: EventAdded, Doc: doc}
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if !w.closed {
			w.closed = true
			close(w.ch)
		}
		delete(m.watchers, id)
		m.mu.Unlock()
	}()

	return w.ch, nil
}

// notify runs with m.mu held. Slow subscribers are dropped by closing their
// channel rather than blocking every other writer.
func (m *Memory) notify(path string, eventType EventType) {
	var data map[string]any
	if eventType != EventRemoved {
		data = copyDoc(m.docs[path])
	}
	event := Event{Type: eventType, Doc: Doc{Path: path, Data: data}}
	collection := CollectionOf(path)
	for id, w := range m.watchers {
		if w.closed {
			continue
		}
		if w.doc && w.path != path {
			continue
		}
		if !w.doc && w.path != collection {
			continue
		}
		select {
		case w.ch <- event:
		default:
			w.closed = true
			close(w.ch)
			delete(m.watchers, id)
		}
	}
}

func segmentCount(path string) int {
	if path == "" {
		return 0
	}
	count := 1
	for _, r := range path {
		if r == '/' {
			count++
		}
	}
	return count
}

func resolveValue(current, value any, now time.Time) any {
	switch v := value.(type) {
	case Increment:
		return numericValue(current) + v.By
	case ServerTimestamp:
		return now
	default:
		return v
	}
}

func numericValue(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func equalValue(a, b any) bool {
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			return na == nb
		}
		return false
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func copyDoc(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case []string:
			ids := make([]string, len(v))
			copy(ids, v)
			out[key] = ids
		case map[string]any:
			out[key] = copyDoc(v)
		default:
			out[key] = v
		}
	}
	return out
}
