// Package world is an in-memory scene of bodies and colliders that answers
// overlap queries and keeps the ignore-pair table for the collision filter.
package world

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/wricardo/bridge-it-together/game/collision"
	"github.com/wricardo/bridge-it-together/game/sensor"
)

var (
	ErrBodyNotFound     = errors.New("body not found")
	ErrColliderNotFound = errors.New("collider not found")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrInvalidShape     = errors.New("invalid collider shape")
)

// Body is the logical owner of a group of colliders.
type Body struct {
	ID           string        `json:"id"`
	Position     mgl64.Vec3    `json:"position"`
	Capabilities collision.Set `json:"capabilities"`
	Tags         []string      `json:"tags,omitempty"`
	Static       bool          `json:"static,omitempty"`
}

// Collider is a sphere (Radius > 0) or an axis-aligned box (HalfExtents) placed
// at Offset from its body.
type Collider struct {
	ID          string     `json:"id"`
	BodyID      string     `json:"body_id"`
	Offset      mgl64.Vec3 `json:"offset"`
	Radius      float64    `json:"radius,omitempty"`
	HalfExtents mgl64.Vec3 `json:"half_extents,omitempty"`
	Layer       uint32     `json:"layer,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

func (c Collider) isBox() bool {
	return c.Radius <= 0
}

func (c Collider) validate() error {
	if c.Radius > 0 {
		return nil
	}
	if c.HalfExtents.X() > 0 && c.HalfExtents.Y() > 0 && c.HalfExtents.Z() > 0 {
		return nil
	}
	return fmt.Errorf("%w: collider %q needs a positive radius or half extents", ErrInvalidShape, c.ID)
}

type pair [2]string

func newPair(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// World is the host-side scene: bodies, their colliders and the ignore-pair table.
// It answers overlap queries and records ignore decisions; it does not integrate motion.
type World struct {
	bodies    map[string]*Body
	bodyOrder []string

	colliders     map[string]*Collider
	colliderOrder []string
	byBody        map[string][]string

	ignored map[pair]bool
}

// New creates an empty world.
func New() *World {
	return &World{
		bodies:    make(map[string]*Body),
		colliders: make(map[string]*Collider),
		byBody:    make(map[string][]string),
		ignored:   make(map[pair]bool),
	}
}

// AddBody registers a body. An empty ID gets a generated one.
func (w *World) AddBody(b Body) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := w.bodies[b.ID]; exists {
		return "", fmt.Errorf("%w: body %s", ErrDuplicateID, b.ID)
	}
	b.Tags = append([]string(nil), b.Tags...)
	w.bodies[b.ID] = &b
	w.bodyOrder = append(w.bodyOrder, b.ID)
	return b.ID, nil
}

// RemoveBody drops a body, its colliders and every ignore pair touching them.
func (w *World) RemoveBody(id string) bool {
	if _, ok := w.bodies[id]; !ok {
		return false
	}
	for _, cid := range append([]string(nil), w.byBody[id]...) {
		w.RemoveCollider(cid)
	}
	delete(w.byBody, id)
	delete(w.bodies, id)
	w.bodyOrder = removeString(w.bodyOrder, id)
	return true
}

// Body returns a copy of a body.
func (w *World) Body(id string) (Body, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// SetBodyPosition moves a body and, with it, all of its colliders.
func (w *World) SetBodyPosition(id string, pos mgl64.Vec3) error {
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBodyNotFound, id)
	}
	b.Position = pos
	return nil
}

// AddCollider attaches a collider to an existing body. Colliders without tags inherit the body's.
func (w *World) AddCollider(c Collider) (string, error) {
	b, ok := w.bodies[c.BodyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBodyNotFound, c.BodyID)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := w.colliders[c.ID]; exists {
		return "", fmt.Errorf("%w: collider %s", ErrDuplicateID, c.ID)
	}
	if err := c.validate(); err != nil {
		return "", err
	}
	if len(c.Tags) == 0 {
		c.Tags = b.Tags
	}
	c.Tags = append([]string(nil), c.Tags...)

	w.colliders[c.ID] = &c
	w.colliderOrder = append(w.colliderOrder, c.ID)
	w.byBody[c.BodyID] = append(w.byBody[c.BodyID], c.ID)
	return c.ID, nil
}

// RemoveCollider drops a collider and its ignore pairs.
func (w *World) RemoveCollider(id string) bool {
	c, ok := w.colliders[id]
	if !ok {
		return false
	}
	for p := range w.ignored {
		if p[0] == id || p[1] == id {
			delete(w.ignored, p)
		}
	}
	w.byBody[c.BodyID] = removeString(w.byBody[c.BodyID], id)
	w.colliderOrder = removeString(w.colliderOrder, id)
	delete(w.colliders, id)
	return true
}

// Collider returns a copy of a collider.
func (w *World) Collider(id string) (Collider, bool) {
	c, ok := w.colliders[id]
	if !ok {
		return Collider{}, false
	}
	return *c, true
}

// Colliders returns copies of every collider in insertion order.
func (w *World) Colliders() []Collider {
	out := make([]Collider, 0, len(w.colliderOrder))
	for _, id := range w.colliderOrder {
		out = append(out, *w.colliders[id])
	}
	return out
}

// OverlapSphere implements sensor.OverlapQuery. Hits are sorted nearest first
// and truncated to len(results).
func (w *World) OverlapSphere(center mgl64.Vec3, radius float64, mask uint32, results []sensor.Hit) int {
	if radius <= 0 || len(results) == 0 {
		return 0
	}

	var hits []sensor.Hit
	for _, id := range w.colliderOrder {
		c := w.colliders[id]
		if !layerMatches(c.Layer, mask) {
			continue
		}
		d := w.surfaceDistance(c, center)
		if d > radius {
			continue
		}
		hits = append(hits, sensor.Hit{
			ColliderID: c.ID,
			BodyID:     c.BodyID,
			Tags:       c.Tags,
			Distance:   d,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return copy(results, hits)
}

func (w *World) surfaceDistance(c *Collider, p mgl64.Vec3) float64 {
	center := w.bodies[c.BodyID].Position.Add(c.Offset)
	if !c.isBox() {
		return math.Max(0, p.Sub(center).Len()-c.Radius)
	}
	lo := center.Sub(c.HalfExtents)
	hi := center.Add(c.HalfExtents)
	closest := mgl64.Vec3{
		mgl64.Clamp(p.X(), lo.X(), hi.X()),
		mgl64.Clamp(p.Y(), lo.Y(), hi.Y()),
		mgl64.Clamp(p.Z(), lo.Z(), hi.Z()),
	}
	return p.Sub(closest).Len()
}

// layerMatches treats layer 0 as layer 1 and mask 0 as every layer.
func layerMatches(layer, mask uint32) bool {
	if mask == 0 {
		return true
	}
	if layer == 0 {
		layer = 1
	}
	return layer&mask != 0
}

// IgnoreCollision records that a and b must not collide. Unknown colliders are skipped.
func (w *World) IgnoreCollision(a, b string) {
	if a == b {
		return
	}
	if _, ok := w.colliders[a]; !ok {
		return
	}
	if _, ok := w.colliders[b]; !ok {
		return
	}
	w.ignored[newPair(a, b)] = true
}

// IsIgnored reports whether a and b have been told not to collide.
func (w *World) IsIgnored(a, b string) bool {
	return w.ignored[newPair(a, b)]
}

// IgnoredPairs returns the size of the ignore table.
func (w *World) IgnoredPairs() int {
	return len(w.ignored)
}

// OwnerOf implements collision.Physics.
func (w *World) OwnerOf(colliderID string) (string, bool) {
	c, ok := w.colliders[colliderID]
	if !ok {
		return "", false
	}
	return c.BodyID, true
}

// CapabilitiesOf implements collision.Physics.
func (w *World) CapabilitiesOf(bodyID string) collision.Set {
	if b, ok := w.bodies[bodyID]; ok {
		return b.Capabilities
	}
	return 0
}

// TagsOf implements collision.Physics.
func (w *World) TagsOf(bodyID string) []string {
	if b, ok := w.bodies[bodyID]; ok {
		return b.Tags
	}
	return nil
}

// CollidersOf implements collision.Physics.
func (w *World) CollidersOf(bodyID string) []string {
	return append([]string(nil), w.byBody[bodyID]...)
}

// Bodies implements collision.Physics.
func (w *World) Bodies() []string {
	return append([]string(nil), w.bodyOrder...)
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
