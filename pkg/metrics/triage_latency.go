// Package metrics keeps in-process latency windows and outcome counters.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Latency Window
// =============================================================================

// LatencyWindow keeps the most recent samples in a fixed ring.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int64
}

// NewLatencyWindow creates a window holding size samples (default 500).
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 500
	}
	return &LatencyWindow{samples: make([]time.Duration, size)}
}

// Record adds one sample, overwriting the oldest when full.
func (w *LatencyWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.total++
}

// Snapshot computes stats over the current window.
func (w *LatencyWindow) Snapshot() LatencyStats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	buf := make([]time.Duration, n)
	copy(buf, w.samples[:n])
	total := w.total
	w.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })

	var sum time.Duration
	for _, d := range buf {
		sum += d
	}
	at := func(p float64) time.Duration {
		return buf[int(float64(n-1)*p)]
	}
	return LatencyStats{
		Count:  total,
		Window: n,
		Min:    buf[0],
		Max:    buf[n-1],
		Avg:    sum / time.Duration(n),
		P50:    at(0.50),
		P95:    at(0.95),
		P99:    at(0.99),
	}
}

// LatencyStats summarizes a window.
type LatencyStats struct {
	Count  int64         `json:"count"`
	Window int           `json:"window"`
	Min    time.Duration `json:"-"`
	Max    time.Duration `json:"-"`
	Avg    time.Duration `json:"-"`
	P50    time.Duration `json:"-"`
	P95    time.Duration `json:"-"`
	P99    time.Duration `json:"-"`
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// ToMap renders durations in milliseconds.
func (s LatencyStats) ToMap() map[string]any {
	return map[string]any{
		"count":  s.Count,
		"window": s.Window,
		"min_ms": ms(s.Min),
		"max_ms": ms(s.Max),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds named latency windows and counters.
type Registry struct {
	mu       sync.RWMutex
	windows  map[string]*LatencyWindow
	counters map[string]int64
	size     int
}

// NewRegistry creates an empty registry whose windows hold size samples.
func NewRegistry(size int) *Registry {
	return &Registry{
		windows:  make(map[string]*LatencyWindow),
		counters: make(map[string]int64),
		size:     size,
	}
}

func (r *Registry) window(name string) *LatencyWindow {
	r.mu.RLock()
	w, ok := r.windows[name]
	r.mu.RUnlock()
	if ok {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok = r.windows[name]; !ok {
		w = NewLatencyWindow(r.size)
		r.windows[name] = w
	}
	return w
}

// Observe records a latency sample under name.
func (r *Registry) Observe(name string, d time.Duration) {
	r.window(name).Record(d)
}

// Inc increments counter name by one.
func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

// Add increments counter name by n.
func (r *Registry) Add(name string, n int64) {
	r.mu.Lock()
	r.counters[name] += n
	r.mu.Unlock()
}

// Counter returns the current value of name.
func (r *Registry) Counter(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Snapshot returns every window and counter.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	names := make([]string, 0, len(r.windows))
	for name := range r.windows {
		names = append(names, name)
	}
	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	r.mu.RUnlock()

	latency := make(map[string]any, len(names))
	for _, name := range names {
		latency[name] = r.window(name).Snapshot().ToMap()
	}
	return map[string]any{
		"latency":  latency,
		"counters": counters,
	}
}
