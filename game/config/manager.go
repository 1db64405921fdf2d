package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/service"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = errors.New("invalid scenario")
)

// DefaultScenarioID is tried first when picking the default scenario.
const DefaultScenarioID = "default"

// Manager loads scenario files from a directory and caches them by ID.
type Manager struct {
	dir             string
	defaultScenario *engine.Scenario
	scenarios       map[string]*engine.Scenario
	log             zerolog.Logger
	mu              sync.RWMutex
}

// NewManager creates a scenario manager reading from dir.
func NewManager(dir string, log zerolog.Logger) (*Manager, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario directory does not exist: %s", dir)
	}

	m := &Manager{
		dir:       dir,
		scenarios: make(map[string]*engine.Scenario),
		log:       log,
	}
	m.loadDefault()
	return m, nil
}

// LoadScenario loads a scenario by ID (file name without .json).
func (m *Manager) LoadScenario(id string) (*engine.Scenario, error) {
	id = strings.TrimSuffix(id, ".json")

	m.mu.RLock()
	if s, ok := m.scenarios[id]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.scenarios[id]; ok {
		return s, nil
	}

	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(m.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, id)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := engine.ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, id, err)
	}

	m.scenarios[id] = s
	return s, nil
}

// ListScenarios describes every valid scenario file in the directory.
// Invalid files are skipped and logged.
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	infos := []*service.ScenarioInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		s, err := m.LoadScenario(id)
		if err != nil {
			m.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping scenario")
			continue
		}
		infos = append(infos, Describe(id, entry.Name(), s))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ScenarioID < infos[j].ScenarioID })
	return infos, nil
}

// Describe summarises a scenario for listings.
func Describe(id, filename string, s *engine.Scenario) *service.ScenarioInfo {
	kinds := make([]string, 0, len(s.Types))
	for _, t := range s.Types {
		kinds = append(kinds, t.Kind)
	}
	return &service.ScenarioInfo{
		Filename:    filename,
		ScenarioID:  id,
		Name:        s.Name,
		Description: s.Description,
		FixedStep:   s.FixedStep,
		Kinds:       kinds,
		Bodies:      len(s.Bodies),
		Spawns:      len(s.Spawns),
	}
}

// Count returns the number of cached scenarios.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scenarios)
}

// GetDefault returns the default scenario.
func (m *Manager) GetDefault() *engine.Scenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// SetDefault makes the named scenario the default.
func (m *Manager) SetDefault(id string) error {
	s, err := m.LoadScenario(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScenario = s
	return nil
}

// RefreshCache drops cached scenarios and picks the default again.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.scenarios = make(map[string]*engine.Scenario)
	m.mu.Unlock()

	m.loadDefault()
}

// loadDefault prefers default.json, then the first valid file, then the
// built-in scenario.
func (m *Manager) loadDefault() {
	s, err := m.LoadScenario(DefaultScenarioID)
	if err != nil {
		infos, listErr := m.ListScenarios()
		if listErr != nil || len(infos) == 0 {
			m.log.Info().Str("dir", m.dir).Msg("no scenario files, using built-in default")
			s = engine.DefaultScenario()
		} else {
			s, _ = m.LoadScenario(infos[0].ScenarioID)
		}
	}

	m.mu.Lock()
	m.defaultScenario = s
	m.mu.Unlock()
}

// SaveScenario validates and writes a scenario as <id>.json.
func (m *Manager) SaveScenario(id string, s *engine.Scenario) error {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: bad scenario id %q", ErrInvalidScenario, id)
	}
	if err := engine.ValidateScenario(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	m.mu.Lock()
	m.scenarios[id] = s
	m.mu.Unlock()

	m.log.Info().Str("scenario", id).Msg("scenario saved")
	return nil
}
