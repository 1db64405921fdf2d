// Package validate checks scenario files before they are served.
//
// Structural errors (unknown kinds, bad precedence, death rules that do not
// compile) make a file invalid. Things that load but are probably mistakes,
// like detection points that can never match, are reported as warnings.
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/sensor"
)

// ValidationResult is the outcome for one scenario file. Info holds the
// summary lines printed for valid files.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// ValidateFile parses, validates and dry-runs one scenario file.
func ValidateFile(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	scenario, err := engine.ParseScenario(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Warnings = append(result.Warnings, checkTypes(scenario)...)
	result.Warnings = append(result.Warnings, checkBodies(scenario)...)

	spawnWarnings, err := checkSpawns(scenario)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Warnings = append(result.Warnings, spawnWarnings...)

	result.Info = append(result.Info,
		fmt.Sprintf("✓ Name: %s", scenario.Name),
		fmt.Sprintf("✓ Fixed step: %gs", scenario.FixedStep),
		fmt.Sprintf("✓ Types: %d", len(scenario.Types)),
		fmt.Sprintf("✓ Bodies: %d", len(scenario.Bodies)),
		fmt.Sprintf("✓ Spawns: %d", len(scenario.Spawns)),
	)
	return result
}

// ValidateDir validates every *.json file in dir, sorted by name.
func ValidateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("error finding scenario files: %w", err)
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, ValidateFile(file))
	}
	return results, nil
}

// checkTypes reports detection points that can never match and mappings that
// leave an entity without flags when nothing is underneath it.
func checkTypes(s *engine.Scenario) []string {
	var warnings []string
	for _, t := range s.Types {
		for _, p := range t.Points {
			if p.Radius <= 0 {
				warnings = append(warnings, fmt.Sprintf("kind %q: point %q has no radius and never matches", t.Kind, p.Name))
			}
			if len(p.Tags) == 0 {
				warnings = append(warnings, fmt.Sprintf("kind %q: point %q has no tags and never matches", t.Kind, p.Name))
			}
		}
		if len(t.Points) == 0 {
			warnings = append(warnings, fmt.Sprintf("kind %q: no detection points, always classified as none", t.Kind))
		}
		if _, ok := t.Mapping[sensor.None]; !ok {
			warnings = append(warnings, fmt.Sprintf("kind %q: mapping has no entry for %q", t.Kind, sensor.None))
		}
		if strings.TrimSpace(t.DeathRule) == "" {
			warnings = append(warnings, fmt.Sprintf("kind %q: empty death rule, deaths never count", t.Kind))
		}
		for _, ip := range t.Interactions {
			if ip.Interval <= 0 {
				warnings = append(warnings, fmt.Sprintf("kind %q: interaction %q checks every tick", t.Kind, ip.Name))
			}
		}
	}
	return warnings
}

func checkBodies(s *engine.Scenario) []string {
	var warnings []string
	for _, b := range s.Bodies {
		if len(b.Colliders) == 0 {
			warnings = append(warnings, fmt.Sprintf("body %q has no colliders", b.ID))
		}
	}
	return warnings
}

// checkSpawns builds the scenario, runs one tick and reports spawned entities
// that are not standing on anything.
func checkSpawns(s *engine.Scenario) ([]string, error) {
	eng, err := engine.NewEngine(s, zerolog.Nop(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario: %w", err)
	}
	if _, err := eng.Step(1); err != nil {
		return nil, fmt.Errorf("failed to run first tick: %w", err)
	}

	var warnings []string
	for _, ent := range eng.GetState().Entities {
		if ent.Category == sensor.None {
			warnings = append(warnings, fmt.Sprintf("spawn %q (%s) touches nothing after the first tick", ent.ID, ent.Kind))
		}
		if ent.DeathCounts {
			warnings = append(warnings, fmt.Sprintf("spawn %q (%s) starts in a state where a death counts", ent.ID, ent.Kind))
		}
	}
	return warnings, nil
}

// Report prints a concise report and returns whether every file is valid.
func Report(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠ "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "No scenario files found")
	case allValid:
		fmt.Fprintln(w, "✅ All scenarios are valid!")
	default:
		fmt.Fprintln(w, "❌ Some scenarios have errors")
	}
	return allValid
}
