package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
)

func testScenario(name string) *engine.Scenario {
	s := engine.DefaultScenario()
	s.Name = name
	return s
}

func writeScenarioFile(t *testing.T, dir, id string, s *engine.Scenario) {
	t.Helper()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal scenario: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
		t.Fatalf("Failed to write scenario file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		writeScenarioFile(t, dir, "default", testScenario("Default"))

		manager, err := NewManager(dir, zerolog.Nop())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Default" {
			t.Errorf("Expected default scenario 'Default', got %q", got)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path", zerolog.Nop()); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in", func(t *testing.T) {
		manager, err := NewManager(t.TempDir(), zerolog.Nop())
		if err != nil {
			t.Fatalf("NewManager should succeed without scenario files, got %v", err)
		}
		def := manager.GetDefault()
		if def == nil || def.Name != engine.DefaultScenario().Name {
			t.Errorf("Expected built-in default scenario, got %+v", def)
		}
	})

	t.Run("first valid file when default.json is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeScenarioFile(t, dir, "bridge", testScenario("Bridge"))
		writeScenarioFile(t, dir, "crossing", testScenario("Crossing"))

		manager, err := NewManager(dir, zerolog.Nop())
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Bridge" {
			t.Errorf("Expected 'Bridge' as default, got %q", got)
		}
	})
}

func TestManager_LoadScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "default", testScenario("Default"))
	writeScenarioFile(t, dir, "night", testScenario("Night"))
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name":"broken","fixed_step":0}`), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("existing scenario", func(t *testing.T) {
		s, err := manager.LoadScenario("night")
		if err != nil {
			t.Fatalf("Failed to load scenario: %v", err)
		}
		if s.Name != "Night" {
			t.Errorf("Expected 'Night', got %q", s.Name)
		}
		if len(s.Types) != 3 {
			t.Errorf("Expected 3 entity types, got %d", len(s.Types))
		}
	})

	t.Run("with .json extension", func(t *testing.T) {
		s, err := manager.LoadScenario("night.json")
		if err != nil {
			t.Fatalf("Failed to load scenario: %v", err)
		}
		if s.Name != "Night" {
			t.Errorf("Expected 'Night', got %q", s.Name)
		}
	})

	t.Run("from cache", func(t *testing.T) {
		a, _ := manager.LoadScenario("night")
		b, err := manager.LoadScenario("night")
		if err != nil {
			t.Fatalf("Failed to load scenario: %v", err)
		}
		if a != b {
			t.Error("Expected cached pointer")
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := manager.LoadScenario("missing")
		if !errors.Is(err, ErrScenarioNotFound) {
			t.Errorf("Expected ErrScenarioNotFound, got %v", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := manager.LoadScenario("../night")
		if !errors.Is(err, ErrScenarioNotFound) {
			t.Errorf("Expected ErrScenarioNotFound, got %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := manager.LoadScenario("broken")
		if !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("Expected ErrInvalidScenario, got %v", err)
		}
	})
}

func TestManager_ListScenarios(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "default", testScenario("Default"))
	writeScenarioFile(t, dir, "alpha", testScenario("Alpha"))
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	infos, err := manager.ListScenarios()
	if err != nil {
		t.Fatalf("ListScenarios failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 scenarios, got %d", len(infos))
	}
	if infos[0].ScenarioID != "alpha" || infos[1].ScenarioID != "default" {
		t.Errorf("Expected sorted IDs [alpha default], got [%s %s]", infos[0].ScenarioID, infos[1].ScenarioID)
	}
	info := infos[0]
	if info.Filename != "alpha.json" || info.Name != "Alpha" {
		t.Errorf("Unexpected info: %+v", info)
	}
	if len(info.Kinds) != 3 || info.Bodies != 3 || info.Spawns != 2 {
		t.Errorf("Unexpected counts: %+v", info)
	}
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "default", testScenario("Default"))
	writeScenarioFile(t, dir, "night", testScenario("Night"))

	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SetDefault("night"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if got := manager.GetDefault().Name; got != "Night" {
		t.Errorf("Expected 'Night', got %q", got)
	}
	if err := manager.SetDefault("missing"); !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("Expected ErrScenarioNotFound, got %v", err)
	}
	if got := manager.GetDefault().Name; got != "Night" {
		t.Errorf("Failed SetDefault changed the default to %q", got)
	}
}

func TestManager_SaveScenario(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("valid", func(t *testing.T) {
		if err := manager.SaveScenario("saved", testScenario("Saved")); err != nil {
			t.Fatalf("SaveScenario failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
			t.Fatalf("Expected file on disk: %v", err)
		}
		manager.RefreshCache()
		s, err := manager.LoadScenario("saved")
		if err != nil {
			t.Fatalf("Failed to reload saved scenario: %v", err)
		}
		if s.Name != "Saved" {
			t.Errorf("Expected 'Saved', got %q", s.Name)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		bad := testScenario("Bad")
		bad.FixedStep = 0
		if err := manager.SaveScenario("bad", bad); !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("Expected ErrInvalidScenario, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "bad.json")); !os.IsNotExist(err) {
			t.Error("Invalid scenario should not be written")
		}
	})

	t.Run("bad id", func(t *testing.T) {
		if err := manager.SaveScenario("../escape", testScenario("Escape")); !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("Expected ErrInvalidScenario, got %v", err)
		}
	})
}

func TestManager_RefreshCache(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "default", testScenario("Default"))

	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	writeScenarioFile(t, dir, "default", testScenario("Changed"))
	if got := manager.GetDefault().Name; got != "Default" {
		t.Errorf("Expected cached 'Default', got %q", got)
	}

	manager.RefreshCache()
	if got := manager.GetDefault().Name; got != "Changed" {
		t.Errorf("Expected 'Changed' after refresh, got %q", got)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"default", "a", "b", "c", "d"}
	for _, id := range ids {
		writeScenarioFile(t, dir, id, testScenario("Scenario "+id))
	}

	manager, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := manager.LoadScenario(ids[i%len(ids)]); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}
	if manager.Count() != len(ids) {
		t.Errorf("Expected %d cached scenarios, got %d", len(ids), manager.Count())
	}
}
