package engine

import (
	"fmt"

	"github.com/wricardo/bridge-it-together/game/sensor"
	"github.com/wricardo/bridge-it-together/game/state"
	"github.com/wricardo/bridge-it-together/game/world"
)

// Snapshot captures the engine state for persistence.
func (e *Engine) Snapshot() *Snapshot {
	snap := &Snapshot{
		Scenario: e.scenario.Name,
		Tick:     e.tick,
		Time:     e.time,
		Seq:      e.seq,
		Bodies:   []StaticBody{},
		Entities: make([]EntitySnapshot, 0, len(e.order)),
		History:  e.GetHistory(),
	}

	for _, id := range e.world.Bodies() {
		b, _ := e.world.Body(id)
		if !b.Static {
			continue
		}
		snap.Bodies = append(snap.Bodies, StaticBody{
			ID:           b.ID,
			Position:     b.Position,
			Capabilities: b.Capabilities,
			Tags:         b.Tags,
			Colliders:    e.colliderSpecs(id),
		})
	}

	for _, id := range e.order {
		ent := e.entities[id]
		es := EntitySnapshot{
			ID:        ent.ID,
			Kind:      ent.Kind,
			Transform: ent.Transform,
			Category:  ent.Result.Category,
			Point:     ent.Result.Point,
			Matched:   append([]string(nil), ent.Result.Matched...),
			Dead:      ent.Dead,
			Colliders: e.colliderSpecs(id),
			Ignored:   ent.filter.Applied(),
			Swept:     ent.filter.Swept(),
		}
		if len(ent.interactions) > 0 {
			es.Cooldowns = ent.gate.Snapshot()
		}
		if ent.launcher != nil {
			l := *ent.launcher
			l.Queue = append(l.Queue[:0:0], l.Queue...)
			es.Launcher = &l
		}
		snap.Entities = append(snap.Entities, es)
	}
	return snap
}

func (e *Engine) colliderSpecs(body string) []ColliderSpec {
	ids := e.world.CollidersOf(body)
	specs := make([]ColliderSpec, 0, len(ids))
	for _, cid := range ids {
		c, _ := e.world.Collider(cid)
		specs = append(specs, ColliderSpec{
			ID:          c.ID,
			Body:        c.BodyID,
			Offset:      c.Offset,
			Radius:      c.Radius,
			HalfExtents: c.HalfExtents,
			Layer:       c.Layer,
			Tags:        c.Tags,
		})
	}
	return specs
}

// Restore replaces the engine state with a snapshot taken from the same scenario.
// On error the previous state is kept.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrSnapshotMismatch)
	}
	if snap.Scenario != e.scenario.Name {
		return fmt.Errorf("%w: snapshot of %q, engine runs %q", ErrSnapshotMismatch, snap.Scenario, e.scenario.Name)
	}

	prevWorld, prevEntities, prevOrder := e.world, e.entities, e.order
	if err := e.restore(snap); err != nil {
		e.world, e.entities, e.order = prevWorld, prevEntities, prevOrder
		return err
	}

	e.tick = snap.Tick
	e.time = snap.Time
	e.seq = snap.Seq
	e.history = append([]Event(nil), snap.History...)
	if over := len(e.history) - e.limit; over > 0 {
		e.history = e.history[over:]
	}
	e.pending = nil
	return nil
}

func (e *Engine) restore(snap *Snapshot) error {
	e.world = world.New()
	e.entities = make(map[string]*Entity, len(snap.Entities))
	e.order = nil

	for _, b := range snap.Bodies {
		if err := e.addBody(b); err != nil {
			return err
		}
	}

	for _, es := range snap.Entities {
		k, ok := e.kinds[es.Kind]
		if !ok {
			return fmt.Errorf("%w: unknown kind %q", ErrSnapshotMismatch, es.Kind)
		}
		ent, err := e.place(es.ID, k, es.Transform, es.Colliders)
		if err != nil {
			return err
		}
		ent.Dead = es.Dead
		ent.Result = sensor.Result{Category: es.Category, Point: es.Point, Matched: es.Matched}
		if ent.Result.Category == "" {
			ent.Result.Category = sensor.None
		}
		ent.Output = k.mapper.Map(ent.Result.Category)
		state.Apply(ent.Output, ent.animator)

		for name, t := range es.Cooldowns {
			ent.gate.Set(name, t.Remaining)
		}
		if es.Launcher != nil && ent.launcher != nil {
			l := *es.Launcher
			ent.launcher = &l
		}
	}

	// Ignore pairs need every owner's colliders in place first.
	for _, es := range snap.Entities {
		ent := e.entities[es.ID]
		ent.filter.Restore(es.Ignored, es.Swept)
	}
	return nil
}
