package state

import (
	"fmt"
	"sort"

	"github.com/wricardo/bridge-it-together/game/sensor"
)

// Mapping lists, per category, which flags are raised.
type Mapping map[sensor.Category][]string

// Output is what the mapper produces for one tick.
type Output struct {
	Flags       map[string]bool `json:"flags"`
	DeathCounts bool            `json:"death_counts"`
}

// Mapper translates a classification into animation flags and the death-counts flag.
type Mapper struct {
	flags   []string
	mapping Mapping
	rule    *DeathRule
}

// NewMapper validates the mapping against the declared flag names and compiles the death rule.
func NewMapper(flags []string, mapping Mapping, deathRule string) (*Mapper, error) {
	declared := make(map[string]bool, len(flags))
	for _, f := range flags {
		if f == "" || f == "state" {
			return nil, fmt.Errorf("mapper: invalid flag name %q", f)
		}
		if declared[f] {
			return nil, fmt.Errorf("mapper: duplicate flag %q", f)
		}
		declared[f] = true
	}
	for cat, raised := range mapping {
		for _, f := range raised {
			if !declared[f] {
				return nil, fmt.Errorf("mapper: category %q raises undeclared flag %q", cat, f)
			}
		}
	}

	rule, err := CompileDeathRule(deathRule, flags)
	if err != nil {
		return nil, fmt.Errorf("mapper: %w", err)
	}

	return &Mapper{
		flags:   append([]string(nil), flags...),
		mapping: mapping,
		rule:    rule,
	}, nil
}

// Flags returns the declared flag names in declaration order.
func (m *Mapper) Flags() []string {
	return m.flags
}

// Rule returns the compiled death rule.
func (m *Mapper) Rule() *DeathRule {
	return m.rule
}

// Map is a pure function of the category: every declared flag is present in the output.
func (m *Mapper) Map(category sensor.Category) Output {
	out := Output{Flags: make(map[string]bool, len(m.flags))}
	for _, f := range m.flags {
		out.Flags[f] = false
	}
	for _, f := range m.mapping[category] {
		out.Flags[f] = true
	}
	out.DeathCounts = m.rule.Eval(string(category), out.Flags, m.flags)
	return out
}

// Animator consumes named boolean signals.
type Animator interface {
	SetBool(name string, value bool)
}

// Apply pushes every flag of out into the animator in a stable order.
func Apply(out Output, animator Animator) {
	if animator == nil {
		return
	}
	names := make([]string, 0, len(out.Flags))
	for name := range out.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		animator.SetBool(name, out.Flags[name])
	}
}

// Recorder is an Animator that keeps the last value of every signal.
type Recorder struct {
	signals map[string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{signals: make(map[string]bool)}
}

// SetBool implements Animator.
func (r *Recorder) SetBool(name string, value bool) {
	r.signals[name] = value
}

// Signals returns a copy of the current signal values.
func (r *Recorder) Signals() map[string]bool {
	out := make(map[string]bool, len(r.signals))
	for k, v := range r.signals {
		out[k] = v
	}
	return out
}
