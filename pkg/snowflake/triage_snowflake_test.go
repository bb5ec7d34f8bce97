package snowflake

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewNode(t *testing.T) {
	tests := []struct {
		name    string
		node    int64
		wantErr bool
	}{
		{"zero", 0, false},
		{"max", 1023, false},
		{"negative", -1, true},
		{"too large", 1024, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode(tt.node)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewNode(%d) error = %v, wantErr %v", tt.node, err, tt.wantErr)
			}
		})
	}
}

func TestNext_UniqueAcrossGoroutines(t *testing.T) {
	g, err := NewNode(7)
	if err != nil {
		t.Fatal(err)
	}

	const workers, per = 8, 2000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := g.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*per)
	}
}

func TestDecode(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	g, _ := NewNode(42)
	g.now = func() time.Time { return fixed }

	id, err := g.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got := Time(id); !got.Equal(fixed.Truncate(time.Millisecond)) {
		t.Errorf("Time() = %v, want %v", got, fixed)
	}
	if NodeOf(id) != 42 {
		t.Errorf("NodeOf() = %d", NodeOf(id))
	}
}

func TestClockMovedBack(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)
	g, _ := NewNode(1)
	g.now = func() time.Time { return now }

	if _, err := g.Next(); err != nil {
		t.Fatal(err)
	}
	now = now.Add(-time.Second)
	if _, err := g.Next(); err != ErrClockMovedBack {
		t.Errorf("err = %v, want ErrClockMovedBack", err)
	}
}

func TestKey(t *testing.T) {
	g, _ := NewNode(0)
	k, err := g.Key("web-form-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(k, "web-form-") || len(k) <= len("web-form-") {
		t.Errorf("Key() = %q", k)
	}
}
