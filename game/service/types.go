package service

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wricardo/bridge-it-together/game/engine"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string             `json:"id"`
	ScenarioID     string             `json:"scenario_id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	State          *engine.WorldState `json:"state"`
	Scenario       *engine.Scenario   `json:"scenario,omitempty"`
}

// StepResult is returned after advancing the simulation
type StepResult struct {
	Requested int                `json:"requested"`
	Executed  int                `json:"executed"`
	Tick      int                `json:"tick"`
	Time      float64            `json:"time"`
	Events    []engine.Event     `json:"events"`
	Truncated bool               `json:"truncated,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	State     *engine.WorldState `json:"state"`
}

// ActionResult is returned by entity and collider mutations
type ActionResult struct {
	Message    string              `json:"message"`
	Entity     *engine.EntityState `json:"entity,omitempty"`
	ColliderID string              `json:"collider_id,omitempty"`
	Events     []engine.Event      `json:"events"`
	State      *engine.WorldState  `json:"state"`
}

// MoveRequest places an entity. With Relative set, Position is a delta and Yaw is
// added to the current heading.
type MoveRequest struct {
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw,omitempty"` // degrees around +Y
	Relative bool       `json:"relative,omitempty"`
}

// HistoryOptions configures event history retrieval
type HistoryOptions struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Order  string `json:"order"` // "asc" or "desc"
	Type   string `json:"type,omitempty"`
	Entity string `json:"entity,omitempty"`
}

// HistoryResponse contains paginated event history
type HistoryResponse struct {
	Events      []engine.Event `json:"events"`
	TotalEvents int            `json:"total_events"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// ScenarioInfo provides information about a scenario file
type ScenarioInfo struct {
	Filename    string   `json:"filename"`
	ScenarioID  string   `json:"scenario_id"` // The identifier to use for session creation
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FixedStep   float64  `json:"fixed_step"`
	Kinds       []string `json:"kinds"`
	Bodies      int      `json:"bodies"`
	Spawns      int      `json:"spawns"`
}
