// Command analyze prints quick, human-readable summaries of scenario files:
// per kind, which category wins, which flags each category raises and whether
// a death there counts; then a short dry run showing where every spawned
// entity spends its ticks and which events it produced.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/state"
)

const defaultSteps = 50

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "summarize scenario files",
		ArgsUsage: "[file.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs", Usage: "scenario directory used when no files are given"},
			&cli.IntFlag{Name: "steps", Value: defaultSteps, Usage: "ticks to simulate per scenario"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
		if err != nil {
			return err
		}
		sort.Strings(files)
	}

	steps := int(cmd.Int("steps"))
	for _, file := range files {
		fmt.Fprintf(cmd.Root().Writer, "\n=== Analyzing %s ===\n", filepath.Base(file))
		if err := analyzeScenario(file, steps, cmd.Root().Writer); err != nil {
			fmt.Fprintf(cmd.Root().Writer, "Error: %v\n", err)
		}
	}
	return nil
}

func analyzeScenario(path string, steps int, w io.Writer) error {
	scenario, err := engine.LoadScenario(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Name: %s\n", scenario.Name)
	fmt.Fprintf(w, "Fixed step: %gs\n", scenario.FixedStep)
	fmt.Fprintf(w, "Bodies: %d, Spawns: %d\n", len(scenario.Bodies), len(scenario.Spawns))

	for _, t := range scenario.Types {
		if err := describeType(w, t); err != nil {
			return err
		}
	}

	if steps <= 0 || len(scenario.Spawns) == 0 {
		return nil
	}
	return dryRun(w, scenario, steps)
}

// describeType prints the precedence and the category truth table of one kind.
func describeType(w io.Writer, t engine.EntityType) error {
	mapper, err := state.NewMapper(t.Flags, t.Mapping, t.DeathRule)
	if err != nil {
		return fmt.Errorf("kind %s: %w", t.Kind, err)
	}

	fmt.Fprintf(w, "\nKind: %s\n", t.Kind)
	fmt.Fprintf(w, "  Points: %s\n", pointList(t.Points))
	fmt.Fprintf(w, "  Precedence: %s\n", joinCategories(t.Precedence))
	rule := mapper.Rule().Source()
	if rule == "" {
		rule = "(never counts)"
	}
	fmt.Fprintf(w, "  Death rule: %s\n", rule)

	categories := append(sensor.Precedence(nil), t.Precedence...)
	categories = append(categories, sensor.None)
	for _, cat := range categories {
		out := mapper.Map(cat)
		mark := "  "
		if out.DeathCounts {
			mark = "☠ "
		}
		fmt.Fprintf(w, "  %s%-8s -> %s\n", mark, cat, raised(mapper.Flags(), out.Flags))
	}
	return nil
}

// dryRun simulates the scenario unattended and reports time per category and
// event counts for every entity.
func dryRun(w io.Writer, scenario *engine.Scenario, steps int) error {
	eng, err := engine.NewEngine(scenario, zerolog.Nop(), nil)
	if err != nil {
		return err
	}

	ticks := make(map[string]map[sensor.Category]int)
	events := make(map[string]map[engine.EventType]int)
	var order []string

	for i := 0; i < steps; i++ {
		evs, err := eng.Tick(scenario.FixedStep)
		if err != nil {
			return err
		}
		for _, ev := range evs {
			if events[ev.Entity] == nil {
				events[ev.Entity] = make(map[engine.EventType]int)
			}
			events[ev.Entity][ev.Type]++
		}
		for _, ent := range eng.GetState().Entities {
			if ticks[ent.ID] == nil {
				ticks[ent.ID] = make(map[sensor.Category]int)
				order = append(order, ent.ID)
			}
			if !ent.Dead {
				ticks[ent.ID][ent.Category]++
			}
		}
	}

	fmt.Fprintf(w, "\nDry run: %d ticks (%.2fs)\n", steps, float64(steps)*scenario.FixedStep)
	final := make(map[string]engine.EntityState)
	for _, ent := range eng.GetState().Entities {
		final[ent.ID] = ent
	}
	for _, id := range order {
		ent := final[id]
		status := "alive"
		if ent.Dead {
			status = "dead"
		}
		fmt.Fprintf(w, "  %s (%s, %s): %s\n", id, ent.Kind, status, categoryShare(ticks[id]))
		if len(events[id]) > 0 {
			fmt.Fprintf(w, "    events: %s\n", eventCounts(events[id]))
		}
		if ent.DeathCounts && !ent.Dead {
			fmt.Fprintf(w, "    ⚠️  ends in a state where a death counts (%s)\n", ent.Category)
		}
	}
	return nil
}

func pointList(points []sensor.DetectionPoint) string {
	if len(points) == 0 {
		return "(none)"
	}
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%s[%s r=%g]", p.Name, p.Category, p.Radius)
	}
	return strings.Join(parts, ", ")
}

func joinCategories(cats []sensor.Category) string {
	if len(cats) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, " > ")
}

// raised lists the true flags in declaration order.
func raised(declared []string, flags map[string]bool) string {
	var on []string
	for _, f := range declared {
		if flags[f] {
			on = append(on, f)
		}
	}
	if len(on) == 0 {
		return "(no flags)"
	}
	return strings.Join(on, ", ")
}

func categoryShare(ticks map[sensor.Category]int) string {
	total := 0
	for _, n := range ticks {
		total += n
	}
	if total == 0 {
		return "no live ticks"
	}
	cats := make([]string, 0, len(ticks))
	for c := range ticks {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	parts := make([]string, len(cats))
	for i, c := range cats {
		n := ticks[sensor.Category(c)]
		parts[i] = fmt.Sprintf("%s %d%%", c, n*100/total)
	}
	return strings.Join(parts, ", ")
}

func eventCounts(counts map[engine.EventType]int) string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s=%d", t, counts[engine.EventType(t)])
	}
	return strings.Join(parts, " ")
}
