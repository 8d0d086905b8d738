package shadercache

import (
	"errors"
	"testing"
)

func TestKeyOf(t *testing.T) {
	if KeyOf("src", "main") != KeyOf("src", "main") {
		t.Error("KeyOf() is not deterministic")
	}
	if KeyOf("src", "main") == KeyOf("src", "other") {
		t.Error("KeyOf() ignores the entry point")
	}
	if KeyOf("ab", "c") == KeyOf("a", "bc") {
		t.Error("KeyOf() does not separate entry point and source")
	}
}

func TestGetOrCompile(t *testing.T) {
	c := New[[]uint32](0)
	calls := 0
	compile := func() ([]uint32, error) {
		calls++
		return []uint32{0x07230203}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompile(1, compile)
		if err != nil || len(v) != 1 {
			t.Fatalf("GetOrCompile() = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compile called %d times, want 1", calls)
	}
	if hits, misses := c.Stats(); hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 2, 1", hits, misses)
	}
}

func TestGetOrCompileErrorNotCached(t *testing.T) {
	c := New[int](0)
	boom := errors.New("boom")
	if _, err := c.GetOrCompile(1, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrCompile() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after a failed compile", c.Len())
	}
	v, err := c.GetOrCompile(1, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrCompile() = %d, %v; want 7", v, err)
	}
}

func TestEviction(t *testing.T) {
	c := New[int](4)
	for k := Key(0); k < 4; k++ {
		_, _ = c.GetOrCompile(k, func() (int, error) { return int(k), nil })
	}
	// Touch 0 so it survives.
	_, _ = c.GetOrCompile(0, func() (int, error) { return -1, nil })
	_, _ = c.GetOrCompile(4, func() (int, error) { return 4, nil })

	if got := c.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	v, _ := c.GetOrCompile(0, func() (int, error) { return -1, nil })
	if v != 0 {
		t.Errorf("recently used entry evicted")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}
}
