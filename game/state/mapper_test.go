package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/bridge-it-together/game/sensor"
)

var guardFlags = []string{"idle", "walking", "flying"}

func TestDeathRule_GuardExpression(t *testing.T) {
	rule, err := CompileDeathRule("!idle || walking || flying", guardFlags)
	require.NoError(t, err)

	tests := []struct {
		name     string
		flags    map[string]bool
		expected bool
	}{
		{"idle only", map[string]bool{"idle": true, "walking": false, "flying": false}, false},
		{"idle and walking", map[string]bool{"idle": true, "walking": true, "flying": false}, true},
		{"not idle", map[string]bool{"idle": false}, true},
		{"flying", map[string]bool{"idle": true, "flying": true}, true},
		{"missing flags read false", map[string]bool{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rule.Eval("", tt.flags, guardFlags))
		})
	}
}

func TestDeathRule_UsesState(t *testing.T) {
	rule, err := CompileDeathRule(`state == "none"`, nil)
	require.NoError(t, err)
	assert.True(t, rule.Eval("none", nil, nil))
	assert.False(t, rule.Eval("ground", nil, nil))
}

func TestDeathRule_Empty(t *testing.T) {
	rule, err := CompileDeathRule("  ", guardFlags)
	require.NoError(t, err)
	assert.False(t, rule.Eval("none", map[string]bool{"flying": true}, guardFlags))
	assert.Equal(t, "", rule.Source())
}

func TestDeathRule_Invalid(t *testing.T) {
	_, err := CompileDeathRule("idle &&", guardFlags)
	assert.Error(t, err)

	_, err = CompileDeathRule("wheels", guardFlags)
	assert.Error(t, err, "unknown identifiers are rejected at compile time")

	_, err = CompileDeathRule(`"text"`, guardFlags)
	assert.Error(t, err, "non-boolean results are rejected")
}

func TestMapper_Map(t *testing.T) {
	m, err := NewMapper(guardFlags, Mapping{
		sensor.Carrier: {"idle"},
		sensor.Ground:  {"walking"},
		sensor.None:    {"flying"},
	}, "!idle || walking || flying")
	require.NoError(t, err)

	tests := []struct {
		category sensor.Category
		expected Output
	}{
		{sensor.Carrier, Output{Flags: map[string]bool{"idle": true, "walking": false, "flying": false}, DeathCounts: false}},
		{sensor.Ground, Output{Flags: map[string]bool{"idle": false, "walking": true, "flying": false}, DeathCounts: true}},
		{sensor.None, Output{Flags: map[string]bool{"idle": false, "walking": false, "flying": true}, DeathCounts: true}},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := m.Map(tt.category)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Map(%s) mismatch (-want +got):\n%s", tt.category, diff)
			}
		})
	}
}

func TestNewMapper_RejectsBadConfig(t *testing.T) {
	_, err := NewMapper([]string{"idle", "idle"}, nil, "")
	assert.Error(t, err)

	_, err = NewMapper([]string{"idle"}, Mapping{sensor.Ground: {"walking"}}, "")
	assert.Error(t, err)

	_, err = NewMapper([]string{"state"}, nil, "")
	assert.Error(t, err)

	_, err = NewMapper([]string{"idle"}, nil, "walking")
	assert.Error(t, err)
}

func TestApply_RecordsSignals(t *testing.T) {
	rec := NewRecorder()
	Apply(Output{Flags: map[string]bool{"walking": true, "flying": false}}, rec)

	assert.Equal(t, map[string]bool{"walking": true, "flying": false}, rec.Signals())

	Apply(Output{}, nil)
}
