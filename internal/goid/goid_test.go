package goid

import "testing"

func TestCurrent_StablePerGoroutine(t *testing.T) {
	a := Current()
	if a == 0 {
		t.Fatal("expected non-zero goroutine id")
	}
	if b := Current(); a != b {
		t.Fatalf("id changed within one goroutine: %d != %d", a, b)
	}

	other := make(chan uint64)
	go func() { other <- Current() }()
	if o := <-other; o == a || o == 0 {
		t.Fatalf("other goroutine id = %d, self = %d", o, a)
	}
}
