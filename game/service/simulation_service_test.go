package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/service"
	"github.com/wricardo/bridge-it-together/game/session"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{sessions: make(map[string]*service.Session)}
}

func (m *MockSessionManager) Create(id, scenarioID string, scenario *engine.Scenario) (*service.Session, error) {
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, service.ErrSessionAlreadyExists
	}
	eng, err := engine.NewEngine(scenario, zerolog.Nop(), nil)
	if err != nil {
		return nil, err
	}
	sess := &service.Session{
		ID:             id,
		ScenarioID:     scenarioID,
		Engine:         eng,
		Scenario:       scenario,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[id] = sess
	return sess, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MockSessionManager) GetOrCreate(id, scenarioID string, scenario *engine.Scenario) (*service.Session, error) {
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	return m.Create(id, scenarioID, scenario)
}

func (m *MockSessionManager) List() []*service.Session {
	out := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

func (m *MockSessionManager) Delete(id string) error {
	if _, ok := m.sessions[id]; !ok {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return service.ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	return nil
}

func (m *MockSessionManager) Save(id string) error {
	m.saves++
	return nil
}

// MockScenarioManager implements service.ScenarioManager for testing
type MockScenarioManager struct {
	scenarios map[string]*engine.Scenario
}

func NewMockScenarioManager() *MockScenarioManager {
	night := engine.DefaultScenario()
	night.Name = "Night"
	return &MockScenarioManager{scenarios: map[string]*engine.Scenario{
		"default": engine.DefaultScenario(),
		"night":   night,
	}}
}

func (m *MockScenarioManager) LoadScenario(id string) (*engine.Scenario, error) {
	s, ok := m.scenarios[id]
	if !ok {
		return nil, errors.New("scenario not found")
	}
	return s, nil
}

func (m *MockScenarioManager) ListScenarios() ([]*service.ScenarioInfo, error) {
	return []*service.ScenarioInfo{
		{ScenarioID: "default", Name: "default", Filename: "default.json"},
		{ScenarioID: "night", Name: "Night", Filename: "night.json"},
	}, nil
}

func (m *MockScenarioManager) GetDefault() *engine.Scenario {
	return m.scenarios["default"]
}

func (m *MockScenarioManager) SaveScenario(id string, s *engine.Scenario) error {
	if err := engine.ValidateScenario(s); err != nil {
		return err
	}
	m.scenarios[id] = s
	return nil
}

func newTestService(t *testing.T) (service.SimulationService, *MockSessionManager, string) {
	t.Helper()
	sessions := NewMockSessionManager()
	svc := service.NewSimulationService(sessions, NewMockScenarioManager(), zerolog.Nop())
	info, err := svc.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return svc, sessions, info.ID
}

func TestSimulationService_CreateSession(t *testing.T) {
	ctx := context.Background()
	svc := service.NewSimulationService(NewMockSessionManager(), NewMockScenarioManager(), zerolog.Nop())

	t.Run("default scenario", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ScenarioID != "default" {
			t.Errorf("Expected scenario_id 'default', got %q", info.ScenarioID)
		}
		if info.State == nil || len(info.State.Entities) != 2 {
			t.Fatalf("Expected 2 spawned entities, got %+v", info.State)
		}
	})

	t.Run("named scenario", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "night")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ScenarioID != "night" || info.State.Scenario != "Night" {
			t.Errorf("Unexpected session: id=%q scenario=%q", info.ScenarioID, info.State.Scenario)
		}
	})

	t.Run("unknown scenario lists alternatives", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "missing")
		if err == nil {
			t.Fatal("Expected error for unknown scenario")
		}
		if !strings.Contains(err.Error(), "night") {
			t.Errorf("Expected available scenarios in error, got %v", err)
		}
	})
}

func TestSimulationService_Step(t *testing.T) {
	ctx := context.Background()
	svc, sessions, id := newTestService(t)

	res, err := svc.Step(ctx, id, 3)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if res.Executed != 3 || res.Tick != 3 {
		t.Errorf("Expected 3 executed ticks, got executed=%d tick=%d", res.Executed, res.Tick)
	}
	if res.State == nil || res.State.Tick != 3 {
		t.Errorf("Expected state at tick 3, got %+v", res.State)
	}
	if sessions.saves == 0 {
		t.Error("Expected session to be persisted after step")
	}

	for _, ent := range res.State.Entities {
		if ent.ID == "royal-1" && ent.Category != "ground" {
			t.Errorf("Expected royal car on ground, got %q", ent.Category)
		}
		if ent.ID == "guard-1" && ent.Category != "carrier" {
			t.Errorf("Expected guard on carrier, got %q", ent.Category)
		}
	}

	t.Run("truncated", func(t *testing.T) {
		res, err := svc.Step(ctx, id, engine.MaxStepsPerCall+5)
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if !res.Truncated || res.Executed != engine.MaxStepsPerCall {
			t.Errorf("Expected truncation to %d, got %+v", engine.MaxStepsPerCall, res.Executed)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := svc.Step(ctx, id, 0); !errors.Is(err, engine.ErrInvalidStep) {
			t.Errorf("Expected ErrInvalidStep, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := svc.Step(ctx, "nope", 1); !errors.Is(err, service.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestSimulationService_EntityLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newTestService(t)

	res, err := svc.Spawn(ctx, id, engine.SpawnSpec{ID: "patrol-1", Kind: engine.KindCarGuard, Position: mgl64.Vec3{-5, 0.1, 0}})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if res.Entity == nil || res.Entity.ID != "patrol-1" {
		t.Fatalf("Expected spawned entity, got %+v", res.Entity)
	}
	if len(res.Events) == 0 || res.Events[0].Type != engine.EventSpawn {
		t.Errorf("Expected spawn event, got %+v", res.Events)
	}

	moved, err := svc.MoveEntity(ctx, id, "patrol-1", service.MoveRequest{Position: mgl64.Vec3{1, 0, 0}, Yaw: 90, Relative: true})
	if err != nil {
		t.Fatalf("MoveEntity failed: %v", err)
	}
	want := mgl64.Vec3{-4, 0.1, 0}
	if !moved.Entity.Position.ApproxEqual(want) {
		t.Errorf("Expected position %v, got %v", want, moved.Entity.Position)
	}

	if _, err := svc.Fire(ctx, id, "patrol-1"); !errors.Is(err, engine.ErrNoLauncher) {
		t.Errorf("Expected ErrNoLauncher, got %v", err)
	}
	if _, err := svc.Fire(ctx, id, "guard-1"); err != nil {
		t.Errorf("Fire failed: %v", err)
	}

	killed, err := svc.Kill(ctx, id, "patrol-1", "test")
	if err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	if len(killed.Events) != 1 || killed.Events[0].Type != engine.EventDeath {
		t.Errorf("Expected one death event, got %+v", killed.Events)
	}

	if _, err := svc.Despawn(ctx, id, "patrol-1"); err != nil {
		t.Fatalf("Despawn failed: %v", err)
	}
	if _, err := svc.Despawn(ctx, id, "patrol-1"); !errors.Is(err, engine.ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}
	if _, err := svc.MoveEntity(ctx, id, "patrol-1", service.MoveRequest{}); !errors.Is(err, engine.ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}
}

func TestSimulationService_Colliders(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newTestService(t)

	res, err := svc.AddBody(ctx, id, engine.StaticBody{
		ID:       "ramp",
		Position: mgl64.Vec3{0, -1, -10},
		Tags:     []string{"ground"},
		Colliders: []engine.ColliderSpec{
			{ID: "ramp/deck", HalfExtents: mgl64.Vec3{2, 0.5, 2}},
		},
	})
	if err != nil {
		t.Fatalf("AddBody failed: %v", err)
	}
	if len(res.State.Colliders) == 0 {
		t.Fatal("Expected colliders in state")
	}

	added, err := svc.AddCollider(ctx, id, engine.ColliderSpec{Body: "ramp", Offset: mgl64.Vec3{0, 0, 4}, HalfExtents: mgl64.Vec3{2, 0.5, 2}})
	if err != nil {
		t.Fatalf("AddCollider failed: %v", err)
	}
	if added.ColliderID == "" {
		t.Error("Expected generated collider ID")
	}

	if _, err := svc.AddCollider(ctx, id, engine.ColliderSpec{Body: "nowhere", Radius: 1}); !errors.Is(err, engine.ErrBodyNotFound) {
		t.Errorf("Expected ErrBodyNotFound, got %v", err)
	}

	if _, err := svc.RemoveCollider(ctx, id, added.ColliderID); err != nil {
		t.Fatalf("RemoveCollider failed: %v", err)
	}
	if _, err := svc.RemoveBody(ctx, id, "ramp"); err != nil {
		t.Fatalf("RemoveBody failed: %v", err)
	}
	if _, err := svc.RemoveBody(ctx, id, "ramp"); !errors.Is(err, engine.ErrBodyNotFound) {
		t.Errorf("Expected ErrBodyNotFound, got %v", err)
	}
}

func TestSimulationService_GetHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newTestService(t)

	for i := 0; i < 5; i++ {
		if _, err := svc.Spawn(ctx, id, engine.SpawnSpec{ID: fmt.Sprintf("extra-%d", i), Kind: engine.KindCarGuard, Position: mgl64.Vec3{float64(i), 5, 20}}); err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
	}

	all, err := svc.GetHistory(ctx, id, service.HistoryOptions{Limit: 100, Order: "asc"})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if all.TotalEvents == 0 {
		t.Fatal("Expected history")
	}
	for i := 1; i < len(all.Events); i++ {
		if all.Events[i].Seq <= all.Events[i-1].Seq {
			t.Fatalf("Expected ascending seq, got %d after %d", all.Events[i].Seq, all.Events[i-1].Seq)
		}
	}

	t.Run("pagination newest first", func(t *testing.T) {
		page, err := svc.GetHistory(ctx, id, service.HistoryOptions{Page: 1, Limit: 2})
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(page.Events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(page.Events))
		}
		if page.Events[0].Seq != all.Events[len(all.Events)-1].Seq {
			t.Errorf("Expected newest event first")
		}
		if !page.HasNext || page.HasPrevious {
			t.Errorf("Unexpected paging flags: %+v", page)
		}
	})

	t.Run("filter by type", func(t *testing.T) {
		spawns, err := svc.GetHistory(ctx, id, service.HistoryOptions{Type: string(engine.EventSpawn), Limit: 100})
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if spawns.TotalEvents != 7 {
			t.Errorf("Expected 7 spawn events, got %d", spawns.TotalEvents)
		}
	})

	t.Run("page past the end", func(t *testing.T) {
		page, err := svc.GetHistory(ctx, id, service.HistoryOptions{Page: 99, Limit: 10})
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(page.Events) != 0 || page.Events == nil {
			t.Errorf("Expected empty non-nil page, got %+v", page.Events)
		}
	})
}

func TestSimulationService_ResetAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, id := newTestService(t)

	if _, err := svc.Step(ctx, id, 5); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if _, err := svc.Despawn(ctx, id, "guard-1"); err != nil {
		t.Fatalf("Despawn failed: %v", err)
	}

	ws, err := svc.Reset(ctx, id)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if ws.Tick != 0 || len(ws.Entities) != 2 {
		t.Errorf("Expected fresh world with 2 entities, got tick=%d entities=%d", ws.Tick, len(ws.Entities))
	}

	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}
	if err := svc.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := svc.GetSession(ctx, id); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSimulationService_Scenarios(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	infos, err := svc.ListScenarios(ctx)
	if err != nil || len(infos) != 2 {
		t.Fatalf("Expected 2 scenarios, got %d (%v)", len(infos), err)
	}

	bad := engine.DefaultScenario()
	bad.Types = nil
	if err := svc.SaveScenario(ctx, "bad", bad); err == nil {
		t.Error("Expected validation error")
	}
	if err := svc.SaveScenario(ctx, "nil", nil); err == nil {
		t.Error("Expected error for nil scenario")
	}

	good := engine.DefaultScenario()
	good.Name = "Copy"
	if err := svc.SaveScenario(ctx, "copy", good); err != nil {
		t.Fatalf("SaveScenario failed: %v", err)
	}
	loaded, err := svc.LoadScenario(ctx, "copy")
	if err != nil || loaded.Name != "Copy" {
		t.Errorf("Expected saved scenario, got %v (%v)", loaded, err)
	}
}

func TestSimulationService_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewManager(zerolog.Nop(), nil)
	svc := service.NewSimulationService(sessions, NewMockScenarioManager(), zerolog.Nop())
	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8*50)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				var err error
				switch (g + i) % 5 {
				case 0:
					_, err = svc.GetSession(ctx, info.ID)
				case 1:
					_, err = svc.GetWorldState(ctx, info.ID)
				case 2:
					_, err = svc.ListSessions(ctx)
				case 3:
					_, err = svc.GetHistory(ctx, info.ID, service.HistoryOptions{})
				case 4:
					_, err = svc.Step(ctx, info.ID, 1)
				}
				if err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	got, err := svc.GetSession(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.LastAccessedAt.Before(info.CreatedAt) {
		t.Errorf("Expected access time after creation, got %v", got.LastAccessedAt)
	}
}
