package sensor

import "github.com/go-gl/mathgl/mgl64"

// Category classifies what a detection point is touching.
type Category string

const (
	Ground  Category = "ground"
	Carrier Category = "carrier"
	None    Category = "none"
)

// MaxOverlapResults bounds the hits returned by a single overlap query.
const MaxOverlapResults = 16

// Hit is one collider returned by an overlap query. Tags may alias host
// storage and must not be retained after the query that produced them.
type Hit struct {
	ColliderID string
	BodyID     string
	Tags       []string
	Distance   float64
}

// OverlapQuery is the host primitive that finds colliders within a sphere.
// It writes at most len(results) hits and returns how many were written.
// A zero mask matches every layer.
type OverlapQuery interface {
	OverlapSphere(center mgl64.Vec3, radius float64, mask uint32, results []Hit) int
}

// DetectionPoint is a named local-space sensor.
type DetectionPoint struct {
	Name     string     `json:"name"`
	Offset   mgl64.Vec3 `json:"offset"`
	Radius   float64    `json:"radius"`
	Category Category   `json:"category"`
	Tags     []string   `json:"tags"`
	Mask     uint32     `json:"mask,omitempty"`
	Priority int        `json:"priority,omitempty"`
}

// Transform places an entity in world space.
type Transform struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// NewTransform returns a transform at pos with no rotation.
func NewTransform(pos mgl64.Vec3) Transform {
	return Transform{Position: pos, Rotation: mgl64.QuatIdent()}
}

// WorldPoint converts a local offset into world space.
func (t Transform) WorldPoint(offset mgl64.Vec3) mgl64.Vec3 {
	rot := t.Rotation
	if rot.W == 0 && rot.V.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	return t.Position.Add(rot.Rotate(offset))
}

// Result is the outcome of one classification.
type Result struct {
	Category Category `json:"category"`
	Point    string   `json:"point,omitempty"`
	Matched  []string `json:"matched,omitempty"`
}
