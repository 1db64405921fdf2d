package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wricardo/bridge-it-together/game/collision"
	"github.com/wricardo/bridge-it-together/game/cooldown"
	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/sequence"
	"github.com/wricardo/bridge-it-together/game/state"
	"github.com/wricardo/bridge-it-together/game/world"
)

const (
	// Validation constants
	MinFixedStep          = 0.001
	MaxFixedStep          = 1.0
	DefaultFixedStep      = 0.02
	DefaultColliderRadius = 0.5
	DefaultHistoryLimit   = 500
	MaxStepsPerCall       = 1000
	WebSocketBufferSize   = 256
)

// LauncherState is the phase of an entity's projectile launcher.
type LauncherState string

const (
	Loaded    LauncherState = "loaded"
	Launching LauncherState = "launching"
	Reloading LauncherState = "reloading"
)

// LauncherConfig times one fire cycle: launching, then reloading, then loaded again.
type LauncherConfig struct {
	LaunchDuration float64 `json:"launch_duration"`
	ReloadDuration float64 `json:"reload_duration"`
}

// InteractionPoint is a detection point that periodically checks for contacts.
type InteractionPoint struct {
	Name     string                 `json:"name"`
	Offset   mgl64.Vec3             `json:"offset"`
	Radius   float64                `json:"radius"`
	Interval float64                `json:"interval"`
	Mask     uint32                 `json:"mask,omitempty"`
	Targets  []collision.Capability `json:"targets"`
}

// EntityType is the declared behaviour of one vehicle kind.
type EntityType struct {
	Kind           string                  `json:"kind"`
	Description    string                  `json:"description,omitempty"`
	Points         []sensor.DetectionPoint `json:"points"`
	Precedence     sensor.Precedence       `json:"precedence"`
	Flags          []string                `json:"flags"`
	Mapping        state.Mapping           `json:"mapping"`
	DeathRule      string                  `json:"death_rule,omitempty"`
	Ignore         collision.Policy        `json:"ignore"`
	Interactions   []InteractionPoint      `json:"interactions,omitempty"`
	Launcher       *LauncherConfig         `json:"launcher,omitempty"`
	Capabilities   collision.Set           `json:"capabilities,omitempty"`
	Tags           []string                `json:"tags,omitempty"`
	ColliderRadius float64                 `json:"collider_radius,omitempty"`
	Layer          uint32                  `json:"layer,omitempty"`
}

// ColliderSpec describes a collider attached to a body.
type ColliderSpec struct {
	ID          string     `json:"id,omitempty"`
	Body        string     `json:"body"`
	Offset      mgl64.Vec3 `json:"offset"`
	Radius      float64    `json:"radius,omitempty"`
	HalfExtents mgl64.Vec3 `json:"half_extents,omitempty"`
	Layer       uint32     `json:"layer,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// StaticBody is scenery: bridges, carriers parked in place, markers.
type StaticBody struct {
	ID           string         `json:"id"`
	Position     mgl64.Vec3     `json:"position"`
	Capabilities collision.Set  `json:"capabilities,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Colliders    []ColliderSpec `json:"colliders"`
}

// SpawnSpec places an entity of a declared kind.
type SpawnSpec struct {
	ID       string     `json:"id,omitempty"`
	Kind     string     `json:"kind"`
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw,omitempty"` // degrees around +Y
}

// Scenario is the JSON document describing a simulation.
type Scenario struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	FixedStep    float64      `json:"fixed_step"`
	HistoryLimit int          `json:"history_limit,omitempty"`
	Types        []EntityType `json:"types"`
	Bodies       []StaticBody `json:"bodies,omitempty"`
	Spawns       []SpawnSpec  `json:"spawns,omitempty"`
}

// Type returns the entity type declared for kind.
func (s *Scenario) Type(kind string) (*EntityType, bool) {
	for i := range s.Types {
		if s.Types[i].Kind == kind {
			return &s.Types[i], true
		}
	}
	return nil, false
}

// EventType names what happened.
type EventType string

const (
	EventSpawn         EventType = "spawn"
	EventDespawn       EventType = "despawn"
	EventStateChange   EventType = "state_change"
	EventBridgeHit     EventType = "bridge_hit"
	EventPlayerHit     EventType = "player_hit"
	EventContact       EventType = "contact"
	EventDeath         EventType = "death"
	EventLaunch        EventType = "launch"
	EventReload        EventType = "reload"
	EventLoaded        EventType = "loaded"
	EventIgnoreApplied EventType = "ignore_applied"
)

// Event is one entry of the simulation history.
type Event struct {
	Seq     int             `json:"seq"`
	Tick    int             `json:"tick"`
	Time    float64         `json:"time"`
	Type    EventType       `json:"type"`
	Entity  string          `json:"entity"`
	Kind    string          `json:"kind,omitempty"`
	Other   string          `json:"other,omitempty"`
	Point   string          `json:"point,omitempty"`
	From    sensor.Category `json:"from,omitempty"`
	To      sensor.Category `json:"to,omitempty"`
	Counts  bool            `json:"counts,omitempty"`
	Count   int             `json:"count,omitempty"`
	Message string          `json:"message,omitempty"`
}

// EntityState is the externally visible view of one entity.
type EntityState struct {
	ID          string                    `json:"id"`
	Kind        string                    `json:"kind"`
	Position    mgl64.Vec3                `json:"position"`
	Rotation    mgl64.Quat                `json:"rotation"`
	Category    sensor.Category           `json:"category"`
	Point       string                    `json:"point,omitempty"`
	Matched     []string                  `json:"matched,omitempty"`
	Flags       map[string]bool           `json:"flags"`
	DeathCounts bool                      `json:"death_counts"`
	Signals     map[string]bool           `json:"signals"`
	Dead        bool                      `json:"dead"`
	Launcher    LauncherState             `json:"launcher,omitempty"`
	Cooldowns   map[string]cooldown.Timer `json:"cooldowns,omitempty"`
	Ignored     []string                  `json:"ignored,omitempty"`
	Swept       bool                      `json:"swept"`
}

// WorldState is the complete state returned to clients.
type WorldState struct {
	Scenario     string           `json:"scenario"`
	Tick         int              `json:"tick"`
	Time         float64          `json:"time"`
	FixedStep    float64          `json:"fixed_step"`
	Entities     []EntityState    `json:"entities"`
	Colliders    []world.Collider `json:"colliders"`
	IgnoredPairs int              `json:"ignored_pairs"`
	Events       []Event          `json:"events,omitempty"`
}

// EntitySnapshot is the persisted form of one entity.
type EntitySnapshot struct {
	ID        string                         `json:"id"`
	Kind      string                         `json:"kind"`
	Transform sensor.Transform               `json:"transform"`
	Category  sensor.Category                `json:"category"`
	Point     string                         `json:"point,omitempty"`
	Matched   []string                       `json:"matched,omitempty"`
	Dead      bool                           `json:"dead"`
	Colliders []ColliderSpec                 `json:"colliders"`
	Cooldowns map[string]cooldown.Timer      `json:"cooldowns,omitempty"`
	Launcher  *sequence.Timed[LauncherState] `json:"launcher,omitempty"`
	Ignored   []string                       `json:"ignored,omitempty"`
	Swept     bool                           `json:"swept"`
}

// Snapshot is everything needed to resume a simulation of the same scenario.
type Snapshot struct {
	Scenario string           `json:"scenario"`
	Tick     int              `json:"tick"`
	Time     float64          `json:"time"`
	Seq      int              `json:"seq"`
	Bodies   []StaticBody     `json:"bodies"`
	Entities []EntitySnapshot `json:"entities"`
	History  []Event          `json:"history"`
}
