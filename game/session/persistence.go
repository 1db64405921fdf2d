package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/service"
	"github.com/wricardo/bridge-it-together/telemetry"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session
type PersistedSessionData struct {
	ID             string           `json:"id"`
	ScenarioID     string           `json:"scenario_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Snapshot       *engine.Snapshot `json:"snapshot"`
}

func newPersistedData(sess *service.Session) (*PersistedSessionData, error) {
	if sess == nil {
		return nil, errors.New("session cannot be nil")
	}
	return &PersistedSessionData{
		ID:             sess.ID,
		ScenarioID:     sess.ScenarioID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Snapshot:       sess.Engine.Snapshot(),
	}, nil
}

// Rebuilder turns persisted data back into a live session: it loads the
// scenario, builds a fresh engine and restores the snapshot into it.
type Rebuilder struct {
	Scenarios service.ScenarioManager
	Log       zerolog.Logger
	Metrics   *telemetry.Metrics
}

// Rebuild restores a session. A scenario that is no longer on disk falls back
// to the default scenario when the snapshot was taken from it.
func (r Rebuilder) Rebuild(data *PersistedSessionData) (*service.Session, error) {
	if data.Snapshot == nil {
		return nil, fmt.Errorf("session %s has no snapshot", data.ID)
	}

	scenario, err := r.Scenarios.LoadScenario(data.ScenarioID)
	if err != nil {
		def := r.Scenarios.GetDefault()
		if def == nil || def.Name != data.Snapshot.Scenario {
			return nil, fmt.Errorf("failed to load scenario '%s': %w", data.ScenarioID, err)
		}
		scenario = def
	}

	eng, err := engine.NewEngine(scenario, r.Log.With().Str("session", data.ID).Logger(), r.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Restore(data.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		ScenarioID:     data.ScenarioID,
		Engine:         eng,
		Scenario:       scenario,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}
