// Package sequence advances timed state changes once per tick instead of
// running them as suspended sequential code.
package sequence

// Step holds a state for a duration.
type Step[S comparable] struct {
	State    S       `json:"state"`
	Duration float64 `json:"duration"`
}

// Timed is a state value with the time left before it moves to the next queued step.
// When the queue drains it settles on Rest.
type Timed[S comparable] struct {
	Current   S         `json:"current"`
	Rest      S         `json:"rest"`
	Remaining float64   `json:"remaining"`
	Queue     []Step[S] `json:"queue,omitempty"`
}

// New returns a timed value resting in rest.
func New[S comparable](rest S) *Timed[S] {
	return &Timed[S]{Current: rest, Rest: rest}
}

// Busy reports whether a sequence is in progress.
func (t *Timed[S]) Busy() bool {
	return t.Current != t.Rest || len(t.Queue) > 0
}

// Start replaces any running sequence with steps. It returns false and does
// nothing when steps is empty.
func (t *Timed[S]) Start(steps ...Step[S]) bool {
	if len(steps) == 0 {
		return false
	}
	t.Current = steps[0].State
	t.Remaining = steps[0].Duration
	t.Queue = append([]Step[S](nil), steps[1:]...)
	return true
}

// Advance moves time forward by dt and returns the states entered, in order.
// Leftover time carries into the following step so long ticks skip short steps.
func (t *Timed[S]) Advance(dt float64) []S {
	if !t.Busy() {
		return nil
	}

	var entered []S
	t.Remaining -= dt
	for t.Remaining <= 0 {
		if len(t.Queue) == 0 {
			if t.Current != t.Rest {
				t.Current = t.Rest
				entered = append(entered, t.Rest)
			}
			t.Remaining = 0
			break
		}
		next := t.Queue[0]
		t.Queue = t.Queue[1:]
		t.Current = next.State
		t.Remaining += next.Duration
		entered = append(entered, next.State)
	}
	return entered
}
