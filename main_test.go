package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/bridge-it-together/game/config"
	"github.com/wricardo/bridge-it-together/game/engine"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Bridge It Together Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func findCommand(app *cli.Command, name string) *cli.Command {
	for _, c := range app.Commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp(nil)

	if app.Action == nil {
		t.Error("Expected root action to run the server")
	}

	tests := []struct {
		name    string
		aliases []string
	}{
		{"server", []string{"http"}},
		{"stdio-mcp", []string{"mcp-stdio", "mcp"}},
		{"validate", nil},
	}
	for _, tt := range tests {
		cmd := findCommand(app, tt.name)
		if cmd == nil {
			t.Errorf("Expected command %s", tt.name)
			continue
		}
		if strings.Join(cmd.Aliases, ",") != strings.Join(tt.aliases, ",") {
			t.Errorf("Command %s: expected aliases %v, got %v", tt.name, tt.aliases, cmd.Aliases)
		}
	}
}

func TestLoadSettings_FlagOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	app := newApp(nil)
	var got *config.Settings
	findCommand(app, "server").Action = func(ctx context.Context, cmd *cli.Command) error {
		var err error
		got, err = loadSettings(cmd)
		return err
	}

	args := []string{"bridgeit",
		"--settings-dir", t.TempDir(),
		"--port", "9191",
		"--host", "127.0.0.1",
		"--store", "sqlite",
		"--scenarios", "testdata",
		"--debug",
		"server",
	}
	if err := app.Run(context.Background(), args); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got == nil {
		t.Fatal("Expected settings to be loaded")
	}
	if got.Server.Addr() != "127.0.0.1:9191" {
		t.Errorf("Expected 127.0.0.1:9191, got %s", got.Server.Addr())
	}
	if got.Sessions.Store != config.StoreSQLite {
		t.Errorf("Expected sqlite store, got %s", got.Sessions.Store)
	}
	if got.ScenariosDir != "testdata" {
		t.Errorf("Expected scenarios dir override, got %s", got.ScenariosDir)
	}
	if got.LogLevel != "debug" {
		t.Errorf("Expected debug log level, got %s", got.LogLevel)
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	app := newApp(nil)
	var got *config.Settings
	findCommand(app, "server").Action = func(ctx context.Context, cmd *cli.Command) error {
		var err error
		got, err = loadSettings(cmd)
		return err
	}

	if err := app.Run(context.Background(), []string{"bridgeit", "--settings-dir", t.TempDir(), "server"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got.Server.Port != 8080 || got.Sessions.Store != config.StoreFile || got.ScenariosDir != "configs" {
		t.Errorf("Unexpected defaults %+v", got)
	}
}

func testSettings(t *testing.T, store string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		ScenariosDir: t.TempDir(),
		LogLevel:     "info",
		Sessions: config.SessionSettings{
			Store:      store,
			Dir:        filepath.Join(dir, "sessions"),
			SQLitePath: filepath.Join(dir, "sessions.db"),
			Retention:  time.Hour,
		},
	}
}

func TestInitializeServices(t *testing.T) {
	for _, store := range []string{config.StoreFile, config.StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			settings := testSettings(t, store)

			svc, err := initializeServices(ctx, settings, zerolog.Nop(), nil)
			if err != nil {
				t.Fatalf("Failed to initialize services: %v", err)
			}

			info, err := svc.sim.CreateSession(ctx, "")
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			if _, err := svc.sim.Step(ctx, info.ID, 3); err != nil {
				t.Fatalf("Failed to step: %v", err)
			}
			svc.Close()

			// A second process sees the session through the store.
			again, err := initializeServices(ctx, settings, zerolog.Nop(), nil)
			if err != nil {
				t.Fatalf("Failed to reinitialize services: %v", err)
			}
			defer again.Close()

			if again.sessions.Count() != 1 {
				t.Fatalf("Expected 1 restored session, got %d", again.sessions.Count())
			}
			state, err := again.sim.GetWorldState(ctx, info.ID)
			if err != nil {
				t.Fatalf("Failed to get restored state: %v", err)
			}
			if state.Tick != 3 {
				t.Errorf("Expected restored tick 3, got %d", state.Tick)
			}
		})
	}
}

func TestInitializeServices_InvalidScenarioDir(t *testing.T) {
	settings := testSettings(t, config.StoreFile)
	settings.ScenariosDir = "/non/existent/path"

	if _, err := initializeServices(context.Background(), settings, zerolog.Nop(), nil); err == nil {
		t.Error("Expected error for non-existent scenario directory")
	}
}

func TestCleanupSessions_PurgesStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := initializeServices(ctx, testSettings(t, config.StoreSQLite), zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	info, err := svc.sim.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	// A negative retention puts the cutoff in the future: everything is stale.
	cleanupSessions(svc.sessions, svc.persistence, -time.Minute, zerolog.Nop())

	if svc.sessions.Count() != 0 {
		t.Errorf("Expected memory to be empty, got %d sessions", svc.sessions.Count())
	}
	if svc.persistence.Exists(info.ID) {
		t.Error("Expected stored session to be purged")
	}
}

func TestSyncWithStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := testSettings(t, config.StoreFile)
	svc, err := initializeServices(ctx, settings, zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	kept, _ := svc.sim.CreateSession(ctx, "")
	gone, _ := svc.sim.CreateSession(ctx, "")
	if err := svc.persistence.Delete(gone.ID); err != nil {
		t.Fatal(err)
	}

	if pruned := syncWithStore(svc.sessions, svc.persistence, zerolog.Nop()); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if _, err := svc.sim.GetSession(ctx, kept.ID); err != nil {
		t.Errorf("Expected %s to survive the sync: %v", kept.ID, err)
	}
	if _, err := svc.sim.GetSession(ctx, gone.ID); err == nil {
		t.Errorf("Expected %s to be gone", gone.ID)
	}
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, "http://localhost:8080"},
		{"0.0.0.0", 9090, "http://localhost:9090"},
		{"127.0.0.1", 80, "http://127.0.0.1:80"},
		{"example.com", 8080, "http://example.com:8080"},
	}
	for _, tt := range tests {
		if got := localURL(config.ServerSettings{Host: tt.host, Port: tt.port}); got != tt.want {
			t.Errorf("localURL(%q, %d) = %s, want %s", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestNewRouter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := initializeServices(ctx, testSettings(t, config.StoreFile), zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	router := newRouter(svc.sim, nil, "http://127.0.0.1:1", zerolog.Nop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", w.Code)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected MCP 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode MCP response: %v", err)
	}
	if _, ok := resp["result"]; !ok {
		t.Errorf("Expected JSON-RPC result, got %v", resp)
	}
}

func TestExternalAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !externalAPI(srv.URL) {
		t.Error("Expected running server to be detected")
	}
	if externalAPI("http://127.0.0.1:1") {
		t.Error("Expected unreachable server to be reported missing")
	}
}

func TestStartInternalServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := initializeServices(ctx, testSettings(t, config.StoreFile), zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	baseURL, httpServer, err := startInternalServer(ctx, svc.sim, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to start internal server: %v", err)
	}
	defer httpServer.Close()

	if !strings.HasPrefix(baseURL, "http://127.0.0.1:") {
		t.Errorf("Unexpected base URL %s", baseURL)
	}
	if !externalAPI(baseURL) {
		t.Error("Expected internal server to answer health checks")
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(engine.DefaultScenario())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "default.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := newApp(nil)
	app.Writer = &out
	if err := app.Run(context.Background(), []string{"bridgeit", "validate", dir}); err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "All scenarios are valid") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	app = newApp(nil)
	app.Writer = &out
	if err := app.Run(context.Background(), []string{"bridgeit", "validate", dir}); err == nil {
		t.Error("Expected validate to fail with a broken scenario")
	}
}
