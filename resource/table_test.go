package resource

import (
	"sync"
	"testing"
)

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(KindSurface, "window")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "window" {
		t.Fatalf("Get = %v, %v", val, ok)
	}
	if k, _ := table.Kind(h); k != KindSurface {
		t.Fatalf("Kind = %v", k)
	}
	if _, ok = table.GetTyped(h, KindSurface); !ok {
		t.Fatal("GetTyped with correct kind failed")
	}
	if _, ok = table.GetTyped(h, KindBuffer); ok {
		t.Fatal("GetTyped with wrong kind should fail")
	}

	val, ok = table.Remove(h)
	if !ok || val != "window" {
		t.Fatalf("Remove = %v, %v", val, ok)
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("double Remove should fail")
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestTable_InvalidHandles(t *testing.T) {
	table := NewTable()
	table.Insert(KindDevice, "dev")

	for _, h := range []Handle{0, 2, 1 << 20} {
		if _, ok := table.Get(h); ok {
			t.Errorf("Get(%d) should fail", h)
		}
		if _, ok := table.Kind(h); ok {
			t.Errorf("Kind(%d) should fail", h)
		}
		if _, ok := table.Remove(h); ok {
			t.Errorf("Remove(%d) should fail", h)
		}
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()
	a := table.Insert(KindBuffer, "a")
	b := table.Insert(KindBuffer, "b")
	table.Remove(a)

	c := table.Insert(KindFrameBuffer, "c")
	if c != a {
		t.Fatalf("freed handle %d not reused, got %d", a, c)
	}
	if v, _ := table.Get(c); v != "c" {
		t.Fatalf("reused slot holds %v", v)
	}
	if got := table.Handles(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("Handles = %v", got)
	}
}

func TestLookup(t *testing.T) {
	table := NewTable()
	h := table.Insert(KindFrameBuffer, 42)

	v, ok := Lookup[int](table, h, KindFrameBuffer)
	if !ok || v != 42 {
		t.Fatalf("Lookup = %v, %v", v, ok)
	}
	if _, ok := Lookup[string](table, h, KindFrameBuffer); ok {
		t.Fatal("Lookup with wrong Go type should fail")
	}
	if _, ok := Lookup[int](table, h, KindDevice); ok {
		t.Fatal("Lookup with wrong kind should fail")
	}
	if _, ok := Lookup[int](table, 0, KindFrameBuffer); ok {
		t.Fatal("handle 0 must never resolve")
	}
}

func TestTable_Observer(t *testing.T) {
	var events []Event
	table := NewTable(WithObserver(func(e Event) { events = append(events, e) }))

	h := table.Insert(KindDevice, "dev")
	table.Remove(h)
	table.Remove(h)

	want := []Event{
		{Type: EventCreated, Handle: h, Kind: KindDevice},
		{Type: EventDropped, Handle: h, Kind: KindDevice},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestTable_Dropper(t *testing.T) {
	table := NewTable()
	removed, cleared, closed := &dropCounter{}, &dropCounter{}, &dropCounter{}

	table.Remove(table.Insert(KindGraphicsContext, removed))
	table.Insert(KindGraphicsContext, cleared)
	table.Clear()
	table.Insert(KindBuffer, closed)
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for name, d := range map[string]*dropCounter{"remove": removed, "clear": cleared, "close": closed} {
		if d.count != 1 {
			t.Errorf("%s: Drop called %d times, want 1", name, d.count)
		}
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()
	table.Insert(KindBuffer, "a")
	table.Insert(KindBuffer, "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d after Close", table.Len())
	}
	if h := table.Insert(KindBuffer, "c"); h != 0 {
		t.Fatal("Expected Insert to fail after Close")
	}
}

func TestTable_Concurrent(t *testing.T) {
	var mu sync.Mutex
	live := 0
	table := NewTable(WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Type == EventCreated {
			live++
		} else {
			live--
		}
	}))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				h := table.Insert(KindBuffer, i*1000+j)
				if v, ok := table.Get(h); !ok || v != i*1000+j {
					t.Errorf("Get(%d) = %v, %v", h, v, ok)
					return
				}
				if j%2 == 0 {
					table.Remove(h)
				}
			}
		}()
	}
	wg.Wait()

	if table.Len() != 400 || live != 400 {
		t.Fatalf("Len = %d, observed live = %d, want 400", table.Len(), live)
	}
}

func TestKind_String(t *testing.T) {
	if KindSurface.String() != "surface" {
		t.Errorf("KindSurface = %q", KindSurface.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("Kind(99) = %q", Kind(99).String())
	}
}
