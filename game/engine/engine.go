package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/collision"
	"github.com/wricardo/bridge-it-together/game/cooldown"
	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/sequence"
	"github.com/wricardo/bridge-it-together/game/state"
	"github.com/wricardo/bridge-it-together/game/world"
	"github.com/wricardo/bridge-it-together/telemetry"
)

// Engine runs the per-tick coordination of every entity in one scenario.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	scenario *Scenario
	kinds    map[string]*kind
	world    *world.World

	entities map[string]*Entity
	order    []string

	tick    int
	time    float64
	seq     int
	history []Event
	limit   int
	pending []Event

	buf [sensor.MaxOverlapResults]sensor.Hit

	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// NewEngine validates the scenario and builds its initial world.
func NewEngine(scenario *Scenario, log zerolog.Logger, metrics *telemetry.Metrics) (*Engine, error) {
	kinds, err := compileTypes(scenario)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}

	limit := scenario.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	e := &Engine{
		scenario: scenario,
		kinds:    kinds,
		limit:    limit,
		log:      log.With().Str("scenario", scenario.Name).Logger(),
		metrics:  metrics,
	}
	if err := e.build(); err != nil {
		return nil, err
	}
	e.pending = nil
	return e, nil
}

// build resets the world to the scenario's initial layout.
func (e *Engine) build() error {
	e.world = world.New()
	e.entities = make(map[string]*Entity)
	e.order = nil
	e.tick = 0
	e.time = 0

	for _, b := range e.scenario.Bodies {
		if err := e.addBody(b); err != nil {
			return err
		}
	}
	for _, sp := range e.scenario.Spawns {
		if _, err := e.spawn(sp); err != nil {
			return err
		}
	}
	return nil
}

// Scenario returns the scenario the engine runs.
func (e *Engine) Scenario() *Scenario {
	return e.scenario
}

// World exposes the scene for inspection.
func (e *Engine) World() *world.World {
	return e.world
}

// Ticks returns the number of ticks executed since the last reset.
func (e *Engine) Ticks() int {
	return e.tick
}

// Entity returns a spawned entity.
func (e *Engine) Entity(id string) (*Entity, bool) {
	ent, ok := e.entities[id]
	return ent, ok
}

// Spawn creates an entity of a declared kind, runs its one-time ignore sweep and
// returns its state.
func (e *Engine) Spawn(spec SpawnSpec) (EntityState, error) {
	e.pending = nil
	return e.spawn(spec)
}

// spawn appends to the pending events so a rebuild reports every entity.
func (e *Engine) spawn(spec SpawnSpec) (EntityState, error) {
	k, ok := e.kinds[spec.Kind]
	if !ok {
		return EntityState{}, fmt.Errorf("%w: %s", ErrUnknownKind, spec.Kind)
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := e.world.Body(id); exists {
		return EntityState{}, fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}

	radius := k.spec.ColliderRadius
	if radius == 0 {
		radius = DefaultColliderRadius
	}
	colliders := []ColliderSpec{{ID: id + "/body", Body: id, Radius: radius, Layer: k.spec.Layer}}

	ent, err := e.place(id, k, TransformAt(spec.Position, spec.Yaw), colliders)
	if err != nil {
		return EntityState{}, err
	}
	e.emit(Event{Type: EventSpawn, Entity: id, Kind: k.spec.Kind})
	e.log.Debug().Str("entity", id).Str("kind", k.spec.Kind).Msg("entity spawned")

	if n := ent.filter.ApplyIgnoreToAllMarked(); n > 0 {
		e.emit(Event{Type: EventIgnoreApplied, Entity: id, Kind: k.spec.Kind, Count: n})
		e.metrics.IgnoresApplied(context.Background(), k.spec.Kind, n)
	}
	return ent.State(), nil
}

// place registers the entity's body, colliders and per-entity components.
func (e *Engine) place(id string, k *kind, t sensor.Transform, colliders []ColliderSpec) (*Entity, error) {
	if _, err := e.world.AddBody(world.Body{
		ID:           id,
		Position:     t.Position,
		Capabilities: k.spec.Capabilities,
		Tags:         k.spec.Tags,
	}); err != nil {
		return nil, err
	}
	for _, c := range colliders {
		c.Body = id
		if _, err := e.world.AddCollider(toWorldCollider(c)); err != nil {
			e.world.RemoveBody(id)
			return nil, err
		}
	}

	filter := collision.NewFilter(id, k.spec.Ignore, e.world, e.log.With().Str("entity", id).Logger())
	ent := &Entity{
		ID:           id,
		Kind:         k.spec.Kind,
		Transform:    t,
		Result:       sensor.Result{Category: sensor.None},
		kind:         k,
		classifier:   sensor.NewClassifier(&selfExcluded{world: e.world, self: id}, k.points),
		filter:       filter,
		gate:         cooldown.NewGate(),
		interactions: make(map[string]InteractionPoint, len(k.spec.Interactions)),
		dispatchers:  make(map[string]*collision.Dispatcher, len(k.spec.Interactions)),
		animator:     state.NewRecorder(),
	}
	ent.Output = k.mapper.Map(sensor.None)

	for _, ip := range k.spec.Interactions {
		ent.gate.Add(ip.Name, ip.Interval)
		ent.interactions[ip.Name] = ip
		d := collision.NewDispatcher(filter, e.world)
		for _, target := range ip.Targets {
			d.Handle(target, e.onContact)
		}
		ent.dispatchers[ip.Name] = d
	}
	if k.spec.Launcher != nil {
		ent.launcher = sequence.New(Loaded)
	}

	e.entities[id] = ent
	e.order = append(e.order, id)
	return ent, nil
}

func (e *Engine) onContact(c collision.Contact) {
	var entKind string
	if ent, ok := e.entities[c.Self]; ok {
		entKind = ent.Kind
	}
	e.emit(Event{
		Type:   eventForCapability(c.Capability),
		Entity: c.Self,
		Kind:   entKind,
		Other:  c.Other,
		Point:  c.Point,
	})
}

// Despawn removes an entity, its body and every ignore pair involving it.
func (e *Engine) Despawn(id string) error {
	e.pending = nil
	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	e.world.RemoveBody(id)
	delete(e.entities, id)
	e.order = removeID(e.order, id)
	for _, other := range e.entities {
		other.filter.Forget(id)
	}
	e.emit(Event{Type: EventDespawn, Entity: id, Kind: ent.Kind})
	return nil
}

// SetTransform teleports an entity. The new position is classified on the next tick.
func (e *Engine) SetTransform(id string, t sensor.Transform) error {
	e.pending = nil
	ent, ok := e.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if err := e.world.SetBodyPosition(id, t.Position); err != nil {
		return err
	}
	ent.Transform = t
	return nil
}

// Kill marks an entity dead. The death counts when the entity's last mapped output says so.
func (e *Engine) Kill(id, cause string) (Event, error) {
	e.pending = nil
	ent, ok := e.entities[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if ent.Dead {
		return Event{}, fmt.Errorf("%w: %s", ErrEntityDead, id)
	}
	ent.Dead = true
	counts := ent.Output.DeathCounts
	e.metrics.Death(context.Background(), ent.Kind, counts)
	e.log.Info().Str("entity", id).Str("kind", ent.Kind).Bool("counts", counts).Str("cause", cause).Msg("entity died")
	return e.emit(Event{Type: EventDeath, Entity: id, Kind: ent.Kind, Counts: counts, Message: cause}), nil
}

// Fire starts a launch/reload cycle on an idle launcher.
func (e *Engine) Fire(id string) (Event, error) {
	e.pending = nil
	ent, ok := e.entities[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if ent.Dead {
		return Event{}, fmt.Errorf("%w: %s", ErrEntityDead, id)
	}
	if ent.launcher == nil {
		return Event{}, fmt.Errorf("%w: %s", ErrNoLauncher, id)
	}
	if ent.launcher.Busy() {
		return Event{}, fmt.Errorf("%w: %s", ErrLauncherBusy, id)
	}
	cfg := ent.kind.spec.Launcher
	ent.launcher.Start(
		sequence.Step[LauncherState]{State: Launching, Duration: cfg.LaunchDuration},
		sequence.Step[LauncherState]{State: Reloading, Duration: cfg.ReloadDuration},
	)
	return e.emit(Event{Type: EventLaunch, Entity: id, Kind: ent.Kind}), nil
}

// AddBody adds a static body with its colliders.
func (e *Engine) AddBody(b StaticBody) error {
	e.pending = nil
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return e.addBody(b)
}

func (e *Engine) addBody(b StaticBody) error {
	if _, err := e.world.AddBody(world.Body{
		ID:           b.ID,
		Position:     b.Position,
		Capabilities: b.Capabilities,
		Tags:         b.Tags,
		Static:       true,
	}); err != nil {
		return err
	}
	for _, c := range b.Colliders {
		c.Body = b.ID
		if _, err := e.world.AddCollider(toWorldCollider(c)); err != nil {
			e.world.RemoveBody(b.ID)
			return err
		}
	}
	return nil
}

// RemoveBody removes a static body. Entities are removed with Despawn.
func (e *Engine) RemoveBody(id string) error {
	e.pending = nil
	b, ok := e.world.Body(id)
	if !ok || !b.Static {
		return fmt.Errorf("%w: %s", ErrBodyNotFound, id)
	}
	e.world.RemoveBody(id)
	for _, ent := range e.entities {
		ent.filter.Forget(id)
	}
	return nil
}

// AddCollider attaches a collider to an existing body. Entities that already filtered
// the owner extend the decision to the new collider.
func (e *Engine) AddCollider(c ColliderSpec) (string, error) {
	e.pending = nil
	if _, ok := e.world.Body(c.Body); !ok {
		return "", fmt.Errorf("%w: %s", ErrBodyNotFound, c.Body)
	}
	id, err := e.world.AddCollider(toWorldCollider(c))
	if err != nil {
		return "", err
	}
	e.refreshFilters(c.Body)
	return id, nil
}

// RemoveCollider detaches a collider. A static body left without colliders is removed.
func (e *Engine) RemoveCollider(id string) error {
	e.pending = nil
	owner, ok := e.world.OwnerOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", world.ErrColliderNotFound, id)
	}
	e.world.RemoveCollider(id)
	if b, _ := e.world.Body(owner); b.Static && len(e.world.CollidersOf(owner)) == 0 {
		return e.RemoveBody(owner)
	}
	return nil
}

// refreshFilters re-applies existing ignore decisions touching body so a new
// collider joins the owning hierarchy's pairs.
func (e *Engine) refreshFilters(body string) {
	for _, ent := range e.entities {
		if ent.ID == body {
			owners := ent.filter.Applied()
			for _, owner := range owners {
				ent.filter.Forget(owner)
			}
			ent.filter.Restore(owners, ent.filter.Swept())
			continue
		}
		if ent.filter.IsApplied(body) {
			ent.filter.Forget(body)
			ent.filter.Restore([]string{body}, ent.filter.Swept())
		}
	}
}

// Step advances n fixed steps and returns every event they produced.
func (e *Engine) Step(n int) ([]Event, error) {
	if n < 1 || n > MaxStepsPerCall {
		return nil, fmt.Errorf("%w: steps must be between 1 and %d, got %d", ErrInvalidStep, MaxStepsPerCall, n)
	}
	var events []Event
	for i := 0; i < n; i++ {
		evs, err := e.Tick(e.scenario.FixedStep)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	e.pending = append([]Event(nil), events...)
	return events, nil
}

// Tick runs one tick of length dt. For every living entity, in spawn order:
// classify, map, apply signals, run due interaction checks, advance the launcher.
func (e *Engine) Tick(dt float64) ([]Event, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidStep, dt)
	}
	e.pending = nil
	e.tick++
	e.time += dt

	ctx := context.Background()
	for _, id := range e.order {
		ent := e.entities[id]
		if ent.Dead {
			continue
		}
		e.update(ctx, ent, dt)
	}
	e.metrics.Tick(ctx)
	return e.Events(), nil
}

func (e *Engine) update(ctx context.Context, ent *Entity, dt float64) {
	prev := ent.Result.Category
	ent.Result = ent.classifier.Classify(ent.Transform)
	ent.Output = ent.kind.mapper.Map(ent.Result.Category)
	state.Apply(ent.Output, ent.animator)
	e.metrics.Classified(ctx, ent.Kind, string(ent.Result.Category))

	if prev != ent.Result.Category {
		e.emit(Event{
			Type:   EventStateChange,
			Entity: ent.ID,
			Kind:   ent.Kind,
			Point:  ent.Result.Point,
			From:   prev,
			To:     ent.Result.Category,
		})
	}

	ent.gate.Advance(dt, func(point string) {
		e.interact(ctx, ent, point)
	})

	if ent.launcher != nil {
		for _, st := range ent.launcher.Advance(dt) {
			switch st {
			case Reloading:
				e.emit(Event{Type: EventReload, Entity: ent.ID, Kind: ent.Kind})
			case Loaded:
				e.emit(Event{Type: EventLoaded, Entity: ent.ID, Kind: ent.Kind})
			}
		}
	}
}

// interact runs one interaction check: first contact with a marked owner applies the
// ignore, everything else is dispatched by capability.
func (e *Engine) interact(ctx context.Context, ent *Entity, point string) {
	ip := ent.interactions[point]
	center := ent.Transform.WorldPoint(ip.Offset)

	n := e.world.OverlapSphere(center, ip.Radius, ip.Mask, e.buf[:])
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, e.buf[i].ColliderID)
	}
	clear(e.buf[:n])

	applied := 0
	for _, id := range ids {
		if ent.filter.ApplyIgnore(id) {
			applied++
		}
	}
	if applied > 0 {
		e.emit(Event{Type: EventIgnoreApplied, Entity: ent.ID, Kind: ent.Kind, Point: point, Count: applied})
		e.metrics.IgnoresApplied(ctx, ent.Kind, applied)
	}

	dispatched := ent.dispatchers[point].Dispatch(point, ids)
	e.metrics.Interactions(ctx, point, dispatched)
}

// GetState returns the world state with the events of the last operation.
func (e *Engine) GetState() *WorldState {
	ws := &WorldState{
		Scenario:     e.scenario.Name,
		Tick:         e.tick,
		Time:         e.time,
		FixedStep:    e.scenario.FixedStep,
		Entities:     make([]EntityState, 0, len(e.order)),
		Colliders:    e.world.Colliders(),
		IgnoredPairs: e.world.IgnoredPairs(),
		Events:       e.Events(),
	}
	for _, id := range e.order {
		ws.Entities = append(ws.Entities, e.entities[id].State())
	}
	return ws
}

// Events returns a copy of the events produced by the last operation.
func (e *Engine) Events() []Event {
	return append([]Event(nil), e.pending...)
}

// GetHistory returns a copy of the retained history, oldest first.
func (e *Engine) GetHistory() []Event {
	return append([]Event(nil), e.history...)
}

// Reset rebuilds the scenario's initial world. History is kept.
func (e *Engine) Reset() error {
	e.pending = nil
	return e.build()
}

func (e *Engine) emit(ev Event) Event {
	e.seq++
	ev.Seq = e.seq
	ev.Tick = e.tick
	ev.Time = e.time
	e.pending = append(e.pending, ev)
	e.history = append(e.history, ev)
	if over := len(e.history) - e.limit; over > 0 {
		e.history = append([]Event(nil), e.history[over:]...)
	}
	return ev
}

func toWorldCollider(c ColliderSpec) world.Collider {
	return world.Collider{
		ID:          c.ID,
		BodyID:      c.Body,
		Offset:      c.Offset,
		Radius:      c.Radius,
		HalfExtents: c.HalfExtents,
		Layer:       c.Layer,
		Tags:        c.Tags,
	}
}

func removeID(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
