package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/state"
)

var (
	ErrInvalidScenario  = errors.New("invalid scenario")
	ErrEntityNotFound   = errors.New("entity not found")
	ErrUnknownKind      = errors.New("unknown entity kind")
	ErrDuplicateEntity  = errors.New("entity already exists")
	ErrEntityDead       = errors.New("entity is dead")
	ErrNoLauncher       = errors.New("entity has no launcher")
	ErrLauncherBusy     = errors.New("launcher is busy")
	ErrInvalidStep      = errors.New("invalid step")
	ErrBodyNotFound     = errors.New("body not found")
	ErrSnapshotMismatch = errors.New("snapshot does not match scenario")
)

// kind is an entity type with its derived, shareable parts.
type kind struct {
	spec   EntityType
	points []sensor.DetectionPoint
	mapper *state.Mapper
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
}

// ValidateScenario checks a scenario for structural errors. Detection points with a
// non-positive radius or no tags are accepted: they simply never match.
func ValidateScenario(s *Scenario) error {
	_, err := compileTypes(s)
	return err
}

func compileTypes(s *Scenario) (map[string]*kind, error) {
	if s == nil {
		return nil, invalid("scenario is nil")
	}
	if s.Name == "" {
		return nil, invalid("name is required")
	}
	if s.FixedStep < MinFixedStep || s.FixedStep > MaxFixedStep {
		return nil, invalid("fixed_step must be between %g and %g, got %g", MinFixedStep, MaxFixedStep, s.FixedStep)
	}
	if s.HistoryLimit < 0 {
		return nil, invalid("history_limit must not be negative")
	}
	if len(s.Types) == 0 {
		return nil, invalid("at least one entity type is required")
	}

	kinds := make(map[string]*kind, len(s.Types))
	for i := range s.Types {
		t := s.Types[i]
		if t.Kind == "" {
			return nil, invalid("types[%d]: kind is required", i)
		}
		if _, dup := kinds[t.Kind]; dup {
			return nil, invalid("duplicate kind %q", t.Kind)
		}
		k, err := compileType(t)
		if err != nil {
			return nil, invalid("kind %q: %v", t.Kind, err)
		}
		kinds[t.Kind] = k
	}

	bodies := make(map[string]bool, len(s.Bodies))
	for _, b := range s.Bodies {
		if b.ID == "" {
			return nil, invalid("static body id is required")
		}
		if bodies[b.ID] {
			return nil, invalid("duplicate body %q", b.ID)
		}
		bodies[b.ID] = true
		for j, c := range b.Colliders {
			if c.Radius <= 0 && !positive(c.HalfExtents) {
				return nil, invalid("body %q collider %d needs a positive radius or half extents", b.ID, j)
			}
		}
	}

	spawned := make(map[string]bool, len(s.Spawns))
	for i, sp := range s.Spawns {
		if _, ok := kinds[sp.Kind]; !ok {
			return nil, invalid("spawns[%d]: unknown kind %q", i, sp.Kind)
		}
		if sp.ID == "" {
			continue
		}
		if spawned[sp.ID] || bodies[sp.ID] {
			return nil, invalid("spawns[%d]: duplicate id %q", i, sp.ID)
		}
		spawned[sp.ID] = true
	}
	return kinds, nil
}

func compileType(t EntityType) (*kind, error) {
	if err := t.Precedence.Validate(); err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(t.Points)+len(t.Interactions))
	for _, p := range t.Points {
		if p.Name == "" {
			return nil, fmt.Errorf("detection point name is required")
		}
		if names[p.Name] {
			return nil, fmt.Errorf("duplicate point %q", p.Name)
		}
		names[p.Name] = true
		if p.Category == "" || p.Category == sensor.None {
			return nil, fmt.Errorf("point %q: category must name a surface", p.Name)
		}
		if t.Precedence.Rank(p.Category) == 0 {
			return nil, fmt.Errorf("point %q: category %q missing from precedence", p.Name, p.Category)
		}
	}
	for _, ip := range t.Interactions {
		if ip.Name == "" {
			return nil, fmt.Errorf("interaction point name is required")
		}
		if names[ip.Name] {
			return nil, fmt.Errorf("duplicate point %q", ip.Name)
		}
		names[ip.Name] = true
		if len(ip.Targets) == 0 {
			return nil, fmt.Errorf("interaction %q: at least one target capability is required", ip.Name)
		}
	}
	if l := t.Launcher; l != nil && (l.LaunchDuration < 0 || l.ReloadDuration < 0) {
		return nil, fmt.Errorf("launcher durations must not be negative")
	}
	if t.ColliderRadius < 0 {
		return nil, fmt.Errorf("collider_radius must not be negative")
	}

	mapper, err := state.NewMapper(t.Flags, t.Mapping, t.DeathRule)
	if err != nil {
		return nil, err
	}
	return &kind{
		spec:   t,
		points: t.Precedence.Apply(t.Points),
		mapper: mapper,
	}, nil
}

func positive(v mgl64.Vec3) bool {
	return v.X() > 0 && v.Y() > 0 && v.Z() > 0
}

// LoadScenario loads and validates a scenario from a JSON file.
func LoadScenario(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := ValidateScenario(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TransformAt builds a transform at pos rotated yaw degrees around +Y.
func TransformAt(pos mgl64.Vec3, yaw float64) sensor.Transform {
	t := sensor.NewTransform(pos)
	if yaw != 0 {
		t.Rotation = mgl64.QuatRotate(mgl64.DegToRad(yaw), mgl64.Vec3{0, 1, 0})
	}
	return t
}
