package resource

import "sync"

// Table maps handles to the host values of one component instantiation.
// Safe for concurrent use.
type Table struct {
	observer Observer
	slots    []slot
	free     []Handle
	mu       sync.RWMutex
	live     int
	closed   bool
}

type slot struct {
	value any
	kind  Kind
	live  bool
}

// Option configures a Table.
type Option func(*Table)

// WithObserver reports inserts and drops to o.
func WithObserver(o Observer) Option {
	return func(t *Table) {
		t.observer = o
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{slots: make([]slot, 0, 16)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert stores value and returns its handle. It returns 0 once the table
// is closed.
func (t *Table) Insert(kind Kind, value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	s := slot{value: value, kind: kind, live: true}
	var h Handle
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[h-1] = s
	} else {
		t.slots = append(t.slots, s)
		h = Handle(len(t.slots))
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind})
	return h
}

// get returns the live slot for h. Callers hold t.mu.
func (t *Table) get(h Handle) (*slot, bool) {
	if h == 0 || int(h) > len(t.slots) {
		return nil, false
	}
	s := &t.slots[h-1]
	return s, s.live
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.get(h)
	if !ok {
		return nil, false
	}
	return s.value, true
}

// Kind returns the kind of a live handle.
func (t *Table) Kind(h Handle) (Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.get(h)
	if !ok {
		return KindUnknown, false
	}
	return s.kind, true
}

// GetTyped retrieves a value only if it has the expected kind.
func (t *Table) GetTyped(h Handle, kind Kind) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.get(h)
	if !ok || s.kind != kind {
		return nil, false
	}
	return s.value, true
}

// Remove frees h, releases its value and returns it.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	s, ok := t.get(h)
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	value, kind := s.value, s.kind
	*s = slot{}
	t.free = append(t.free, h)
	t.live--
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Kind: kind})
	return value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Handles returns the live handles in ascending order.
func (t *Table) Handles() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Handle, 0, t.live)
	for i, s := range t.slots {
		if s.live {
			out = append(out, Handle(i+1))
		}
	}
	return out
}

// Clear removes every handle. The table stays usable.
func (t *Table) Clear() {
	for _, h := range t.Handles() {
		t.Remove(h)
	}
}

// Close clears the table and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Clear()
	return nil
}

func (t *Table) notify(e Event) {
	if t.observer != nil {
		t.observer(e)
	}
}

// Lookup retrieves a handle of the given kind and asserts its Go type.
func Lookup[T any](t *Table, h Handle, kind Kind) (T, bool) {
	value, ok := t.GetTyped(h, kind)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := value.(T)
	return v, ok
}
