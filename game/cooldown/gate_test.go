package cooldown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_IndependentTimers(t *testing.T) {
	g := NewGate()
	g.Add("front", 0.5)
	g.Add("rear", 2)

	var fired []string
	record := func(p string) { fired = append(fired, p) }

	g.Advance(0.5, record)
	assert.Equal(t, []string{"front"}, fired)

	front, _ := g.Remaining("front")
	rear, _ := g.Remaining("rear")
	assert.Equal(t, 0.5, front, "fired timer resets to its interval")
	assert.Equal(t, 1.5, rear, "firing front does not touch rear")

	fired = nil
	g.Advance(1.5, record)
	assert.Equal(t, []string{"front", "rear"}, fired)
}

func TestGate_ResetOnlyAffectsOnePoint(t *testing.T) {
	g := NewGate()
	g.Add("a", 1)
	g.Add("b", 1)
	g.Advance(0.75, nil)

	g.Reset("a")
	a, _ := g.Remaining("a")
	b, _ := g.Remaining("b")
	assert.Equal(t, 1.0, a)
	assert.Equal(t, 0.25, b)
}

func TestGate_NonPositiveIntervalNeverFires(t *testing.T) {
	g := NewGate()
	g.Add("off", 0)
	g.Add("neg", -1)

	calls := 0
	for i := 0; i < 10; i++ {
		g.Advance(1, func(string) { calls++ })
	}
	assert.Zero(t, calls)
}


func TestGate_SetAndSnapshot(t *testing.T) {
	g := NewGate()
	g.Add("a", 1)
	assert.True(t, g.Set("a", 0.25))
	assert.False(t, g.Set("missing", 1))

	_, ok := g.Remaining("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]Timer{"a": {Interval: 1, Remaining: 0.25}}, g.Snapshot())
	assert.Equal(t, []string{"a"}, g.Points())
}
