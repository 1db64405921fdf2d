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

// Entity is one spawned vehicle. Its body in the world shares its ID.
type Entity struct {
	ID        string
	Kind      string
	Transform sensor.Transform
	Result    sensor.Result
	Output    state.Output
	Dead      bool

	kind         *kind
	classifier   *sensor.Classifier
	filter       *collision.Filter
	gate         *cooldown.Gate
	interactions map[string]InteractionPoint
	dispatchers  map[string]*collision.Dispatcher
	launcher     *sequence.Timed[LauncherState]
	animator     *state.Recorder
}

// State returns the externally visible view of the entity.
func (ent *Entity) State() EntityState {
	s := EntityState{
		ID:          ent.ID,
		Kind:        ent.Kind,
		Position:    ent.Transform.Position,
		Rotation:    ent.Transform.Rotation,
		Category:    ent.Result.Category,
		Point:       ent.Result.Point,
		Matched:     append([]string(nil), ent.Result.Matched...),
		Flags:       copyFlags(ent.Output.Flags),
		DeathCounts: ent.Output.DeathCounts,
		Signals:     ent.animator.Signals(),
		Dead:        ent.Dead,
		Ignored:     ent.filter.Applied(),
		Swept:       ent.filter.Swept(),
	}
	if ent.launcher != nil {
		s.Launcher = ent.launcher.Current
	}
	if len(ent.interactions) > 0 {
		s.Cooldowns = ent.gate.Snapshot()
	}
	return s
}

func copyFlags(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// selfExcluded wraps the world query so an entity never senses its own colliders.
type selfExcluded struct {
	world   *world.World
	self    string
	scratch [2 * sensor.MaxOverlapResults]sensor.Hit
}

func (q *selfExcluded) OverlapSphere(center mgl64.Vec3, radius float64, mask uint32, results []sensor.Hit) int {
	n := q.world.OverlapSphere(center, radius, mask, q.scratch[:])
	k := 0
	for i := 0; i < n && k < len(results); i++ {
		if q.scratch[i].BodyID == q.self {
			continue
		}
		results[k] = q.scratch[i]
		k++
	}
	clear(q.scratch[:n])
	return k
}

func eventForCapability(c collision.Capability) EventType {
	switch c {
	case collision.BridgeCollisionHandler:
		return EventBridgeHit
	case collision.PlayerCollisionHandler:
		return EventPlayerHit
	default:
		return EventContact
	}
}
