package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/sensor"
)

// History page size bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// simulationServiceImpl implements the SimulationService interface. Every call
// that stamps a session's access time holds mu for writing.
type simulationServiceImpl struct {
	sessions  SessionManager
	scenarios ScenarioManager
	log       zerolog.Logger
	mu        sync.RWMutex
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(sessions SessionManager, scenarios ScenarioManager, log zerolog.Logger) SimulationService {
	return &simulationServiceImpl{
		sessions:  sessions,
		scenarios: scenarios,
		log:       log,
	}
}

// scenarioIDFor returns the scenario_id for a display name
func (s *simulationServiceImpl) scenarioIDFor(name string) string {
	infos, err := s.scenarios.ListScenarios()
	if err == nil {
		for _, info := range infos {
			if info.Name == name {
				return info.ScenarioID
			}
		}
	}
	if name == "" {
		return "default"
	}
	return name
}

func (s *simulationServiceImpl) info(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ScenarioID:     sess.ScenarioID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          sess.Engine.GetState(),
		Scenario:       sess.Scenario,
	}
}

// CreateSession creates a new session running the given scenario, or the default one
func (s *simulationServiceImpl) CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scenario *engine.Scenario
	if scenarioID != "" {
		var err error
		scenario, err = s.scenarios.LoadScenario(scenarioID)
		if err != nil {
			if strings.Contains(err.Error(), "scenario not found") {
				infos, listErr := s.scenarios.ListScenarios()
				if listErr == nil && len(infos) > 0 {
					ids := make([]string, 0, len(infos))
					for _, info := range infos {
						ids = append(ids, info.ScenarioID)
					}
					return nil, fmt.Errorf("scenario '%s' not found. Available scenarios: %v", scenarioID, ids)
				}
				return nil, fmt.Errorf("scenario '%s' not found. Use /api/scenarios to list available scenarios", scenarioID)
			}
			return nil, fmt.Errorf("failed to load scenario %s: %w", scenarioID, err)
		}
		scenarioID = strings.TrimSuffix(scenarioID, ".json")
	} else {
		scenario = s.scenarios.GetDefault()
		scenarioID = s.scenarioIDFor(scenario.Name)
	}

	sess, err := s.sessions.Create("", scenarioID, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info().Str("session", sess.ID).Str("scenario", scenarioID).Msg("session created")
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *simulationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	// Touching the access time is a write.
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *simulationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simulationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// mutate runs fn against a session's engine under the write lock and persists
// the session afterwards.
func (s *simulationServiceImpl) mutate(sessionID string, fn func(sess *Session) error) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if err := fn(sess); err != nil {
		return err
	}

	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("failed to persist session")
	}
	return nil
}

// Step advances the simulation by fixed steps. Requests above the per-call
// limit are truncated.
func (s *simulationServiceImpl) Step(ctx context.Context, sessionID string, steps int) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be at least 1, got %d", engine.ErrInvalidStep, steps)
	}

	result := &StepResult{Requested: steps}
	if steps > engine.MaxStepsPerCall {
		result.Truncated = true
		result.Limit = engine.MaxStepsPerCall
		steps = engine.MaxStepsPerCall
	}

	err := s.mutate(sessionID, func(sess *Session) error {
		events, err := sess.Engine.Step(steps)
		if err != nil {
			return err
		}
		if events == nil {
			events = []engine.Event{}
		}
		result.Executed = steps
		result.Tick = sess.Engine.Ticks()
		result.Events = events
		result.State = sess.Engine.GetState()
		result.Time = result.State.Time
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reset rebuilds the scenario's initial world. Event history is kept.
func (s *simulationServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ws *engine.WorldState
	err := s.mutate(sessionID, func(sess *Session) error {
		if err := sess.Engine.Reset(); err != nil {
			return err
		}
		ws = sess.Engine.GetState()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func actionResult(eng *engine.Engine, message string) *ActionResult {
	ws := eng.GetState()
	events := ws.Events
	if events == nil {
		events = []engine.Event{}
	}
	return &ActionResult{Message: message, Events: events, State: ws}
}

// Spawn creates an entity of a declared kind
func (s *simulationServiceImpl) Spawn(ctx context.Context, sessionID string, spec engine.SpawnSpec) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		st, err := sess.Engine.Spawn(spec)
		if err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("spawned %s %s", st.Kind, st.ID))
		result.Entity = &st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Despawn removes an entity
func (s *simulationServiceImpl) Despawn(ctx context.Context, sessionID, entityID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		if err := sess.Engine.Despawn(entityID); err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("despawned %s", entityID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MoveEntity teleports an entity; it is classified at its new place on the next step
func (s *simulationServiceImpl) MoveEntity(ctx context.Context, sessionID, entityID string, req MoveRequest) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		ent, ok := sess.Engine.Entity(entityID)
		if !ok {
			return fmt.Errorf("%w: %s", engine.ErrEntityNotFound, entityID)
		}
		t := engine.TransformAt(req.Position, req.Yaw)
		if req.Relative {
			t = sensor.Transform{
				Position: ent.Transform.Position.Add(req.Position),
				Rotation: mgl64.QuatRotate(mgl64.DegToRad(req.Yaw), mgl64.Vec3{0, 1, 0}).Mul(ent.Transform.Rotation),
			}
		}
		if err := sess.Engine.SetTransform(entityID, t); err != nil {
			return err
		}
		st := ent.State()
		result = actionResult(sess.Engine, fmt.Sprintf("moved %s", entityID))
		result.Entity = &st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Kill marks an entity dead
func (s *simulationServiceImpl) Kill(ctx context.Context, sessionID, entityID, cause string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		ev, err := sess.Engine.Kill(entityID, cause)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("%s died", entityID)
		if !ev.Counts {
			msg += " (not counted)"
		}
		result = actionResult(sess.Engine, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Fire starts an entity's launch/reload cycle
func (s *simulationServiceImpl) Fire(ctx context.Context, sessionID, entityID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		if _, err := sess.Engine.Fire(entityID); err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("%s fired", entityID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddBody adds a static body with its colliders
func (s *simulationServiceImpl) AddBody(ctx context.Context, sessionID string, body engine.StaticBody) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		if err := sess.Engine.AddBody(body); err != nil {
			return err
		}
		result = actionResult(sess.Engine, "body added")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveBody removes a static body
func (s *simulationServiceImpl) RemoveBody(ctx context.Context, sessionID, bodyID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		if err := sess.Engine.RemoveBody(bodyID); err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("removed body %s", bodyID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddCollider attaches a collider to an existing body
func (s *simulationServiceImpl) AddCollider(ctx context.Context, sessionID string, spec engine.ColliderSpec) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		id, err := sess.Engine.AddCollider(spec)
		if err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("collider %s added to %s", id, spec.Body))
		result.ColliderID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveCollider detaches a collider
func (s *simulationServiceImpl) RemoveCollider(ctx context.Context, sessionID, colliderID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *ActionResult
	err := s.mutate(sessionID, func(sess *Session) error {
		if err := sess.Engine.RemoveCollider(colliderID); err != nil {
			return err
		}
		result = actionResult(sess.Engine, fmt.Sprintf("collider %s removed", colliderID))
		result.ColliderID = colliderID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetWorldState returns the current world state
func (s *simulationServiceImpl) GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.GetState(), nil
}

// GetHistory returns paginated event history, newest first by default
func (s *simulationServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := filterHistory(sess.Engine.GetHistory(), opts)
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultHistoryLimit
	}
	if opts.Limit > MaxHistoryLimit {
		opts.Limit = MaxHistoryLimit
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	events := []engine.Event{}
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			events = append(events, history[i])
		}
	} else if start < total {
		events = append(events, history[start:end]...)
	}

	return &HistoryResponse{
		Events:      events,
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

func filterHistory(history []engine.Event, opts HistoryOptions) []engine.Event {
	if opts.Type == "" && opts.Entity == "" {
		return history
	}
	out := history[:0:0]
	for _, ev := range history {
		if opts.Type != "" && string(ev.Type) != opts.Type {
			continue
		}
		if opts.Entity != "" && ev.Entity != opts.Entity {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// ListScenarios returns available scenarios
func (s *simulationServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	return s.scenarios.ListScenarios()
}

// LoadScenario loads a specific scenario
func (s *simulationServiceImpl) LoadScenario(ctx context.Context, scenarioID string) (*engine.Scenario, error) {
	return s.scenarios.LoadScenario(scenarioID)
}

// SaveScenario validates and saves a scenario
func (s *simulationServiceImpl) SaveScenario(ctx context.Context, scenarioID string, scenario *engine.Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	return s.scenarios.SaveScenario(scenarioID, scenario)
}
