// Package cooldown rate-limits interaction checks per detection point.
package cooldown

// Timer is the countdown owned by one detection point.
type Timer struct {
	Interval  float64 `json:"interval"`
	Remaining float64 `json:"remaining"`
}

// Gate keeps an independent timer per detection point.
type Gate struct {
	timers map[string]*Timer
	order  []string
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{timers: make(map[string]*Timer)}
}

// Add registers point with the given interval. The first check fires after one
// full interval. Re-adding a point replaces its timer.
func (g *Gate) Add(point string, interval float64) {
	if _, ok := g.timers[point]; !ok {
		g.order = append(g.order, point)
	}
	g.timers[point] = &Timer{Interval: interval, Remaining: interval}
}

// Advance decrements every timer by dt and calls fire for each point whose
// timer reached zero, then resets that timer to its interval. Points with a
// non-positive interval never fire.
func (g *Gate) Advance(dt float64, fire func(point string)) {
	for _, name := range g.order {
		t := g.timers[name]
		if t.Interval <= 0 {
			continue
		}
		t.Remaining -= dt
		if t.Remaining <= 0 {
			t.Remaining = t.Interval
			if fire != nil {
				fire(name)
			}
		}
	}
}

// Remaining returns the time left on a point's timer.
func (g *Gate) Remaining(point string) (float64, bool) {
	t, ok := g.timers[point]
	if !ok {
		return 0, false
	}
	return t.Remaining, true
}

// Set overrides the time left on a point's timer, e.g. when restoring a snapshot.
func (g *Gate) Set(point string, remaining float64) bool {
	t, ok := g.timers[point]
	if !ok {
		return false
	}
	t.Remaining = remaining
	return true
}

// Reset restarts a point's countdown from its full interval.
func (g *Gate) Reset(point string) {
	if t, ok := g.timers[point]; ok {
		t.Remaining = t.Interval
	}
}

// Points returns the registered point names in registration order.
func (g *Gate) Points() []string {
	return append([]string(nil), g.order...)
}

// Snapshot copies every timer keyed by point name.
func (g *Gate) Snapshot() map[string]Timer {
	out := make(map[string]Timer, len(g.timers))
	for name, t := range g.timers {
		out[name] = *t
	}
	return out
}
