package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/sensor"
)

func writeDefault(t *testing.T, dir string) string {
	t.Helper()
	data, err := json.Marshal(engine.DefaultScenario())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "default.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeScenario(t *testing.T) {
	path := writeDefault(t, t.TempDir())

	var buf bytes.Buffer
	if err := analyzeScenario(path, 10, &buf); err != nil {
		t.Fatalf("analyzeScenario failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Name: default",
		"Kind: guard",
		"Precedence: carrier > ground",
		"Kind: car_guard",
		"Precedence: ground > carrier",
		"Death rule: falling",
		"☠ none",
		"Dry run: 10 ticks",
		"royal-1 (royal_car, alive): ground 100%",
		"guard-1 (guard, alive): carrier 100%",
		"state_change=1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalyzeScenario_NoDryRun(t *testing.T) {
	path := writeDefault(t, t.TempDir())

	var buf bytes.Buffer
	if err := analyzeScenario(path, 0, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Dry run") {
		t.Error("Expected no dry run with zero steps")
	}
}

func TestAnalyzeScenario_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := analyzeScenario(filepath.Join(dir, "missing.json"), 1, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name": "x"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := analyzeScenario(bad, 1, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid scenario")
	}
}

func TestDescribeType_TruthTable(t *testing.T) {
	var buf bytes.Buffer
	if err := describeType(&buf, engine.GuardType()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")

	want := map[string]struct {
		flags string
		dies  bool
	}{
		"carrier": {"idle", false},
		"ground":  {"walking", true},
		"none":    {"flying", true},
	}
	found := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		dies := fields[0] == "☠"
		if dies {
			fields = fields[1:]
		}
		exp, ok := want[fields[0]]
		if !ok || fields[1] != "->" {
			continue
		}
		found++
		if fields[2] != exp.flags || dies != exp.dies {
			t.Errorf("Category %s: got %q (counts=%v), want %s (counts=%v)", fields[0], fields[2], dies, exp.flags, exp.dies)
		}
	}
	if found != len(want) {
		t.Errorf("Expected %d truth table rows, found %d in:\n%s", len(want), found, buf.String())
	}
}

func TestRun_Directory(t *testing.T) {
	dir := t.TempDir()
	writeDefault(t, dir)

	var buf bytes.Buffer
	cmd := &cli.Command{
		Name:   "analyze",
		Writer: &buf,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs"},
			&cli.IntFlag{Name: "steps", Value: defaultSteps},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), []string{"analyze", "--dir", dir, "--steps", "5"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(buf.String(), "=== Analyzing default.json ===") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Dry run: 5 ticks") {
		t.Errorf("Expected steps flag to be honored:\n%s", buf.String())
	}
}

func TestRaised(t *testing.T) {
	declared := []string{"idle", "walking", "flying"}
	tests := []struct {
		flags map[string]bool
		want  string
	}{
		{map[string]bool{"walking": true, "idle": true}, "idle, walking"},
		{map[string]bool{"flying": false}, "(no flags)"},
		{map[string]bool{"unknown": true}, "(no flags)"},
	}
	for _, tt := range tests {
		if got := raised(declared, tt.flags); got != tt.want {
			t.Errorf("raised(%v) = %q, want %q", tt.flags, got, tt.want)
		}
	}
}

func TestCategoryShare(t *testing.T) {
	if got := categoryShare(nil); got != "no live ticks" {
		t.Errorf("Unexpected empty share %q", got)
	}
	got := categoryShare(map[sensor.Category]int{sensor.Ground: 3, sensor.None: 1})
	if got != "ground 75%, none 25%" {
		t.Errorf("Unexpected share %q", got)
	}
}

func TestEventCounts(t *testing.T) {
	got := eventCounts(map[engine.EventType]int{engine.EventLaunch: 2, engine.EventDeath: 1})
	if got != "death=1 launch=2" {
		t.Errorf("Unexpected counts %q", got)
	}
}
