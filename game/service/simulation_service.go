package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/bridge-it-together/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// SimulationService defines all simulation operations exposed to transports
type SimulationService interface {
	// Session Management
	CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	Step(ctx context.Context, sessionID string, steps int) (*StepResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.WorldState, error)

	// Entities
	Spawn(ctx context.Context, sessionID string, spec engine.SpawnSpec) (*ActionResult, error)
	Despawn(ctx context.Context, sessionID, entityID string) (*ActionResult, error)
	MoveEntity(ctx context.Context, sessionID, entityID string, req MoveRequest) (*ActionResult, error)
	Kill(ctx context.Context, sessionID, entityID, cause string) (*ActionResult, error)
	Fire(ctx context.Context, sessionID, entityID string) (*ActionResult, error)

	// World
	AddBody(ctx context.Context, sessionID string, body engine.StaticBody) (*ActionResult, error)
	RemoveBody(ctx context.Context, sessionID, bodyID string) (*ActionResult, error)
	AddCollider(ctx context.Context, sessionID string, spec engine.ColliderSpec) (*ActionResult, error)
	RemoveCollider(ctx context.Context, sessionID, colliderID string) (*ActionResult, error)

	// State
	GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error)
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	LoadScenario(ctx context.Context, scenarioID string) (*engine.Scenario, error)
	SaveScenario(ctx context.Context, scenarioID string, scenario *engine.Scenario) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, scenarioID string, scenario *engine.Scenario) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, scenarioID string, scenario *engine.Scenario) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ScenarioManager handles scenario loading
type ScenarioManager interface {
	LoadScenario(id string) (*engine.Scenario, error)
	ListScenarios() ([]*ScenarioInfo, error)
	GetDefault() *engine.Scenario
	SaveScenario(id string, scenario *engine.Scenario) error
}

// Session represents an active simulation
type Session struct {
	ID             string
	ScenarioID     string
	Engine         *engine.Engine
	Scenario       *engine.Scenario
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
