// Command bridgeit starts the Bridge It Together simulation server.
//
// Commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate" – checks every scenario file in a directory
//
// Settings come from bridgeit.json (see game/config), BRIDGEIT_* environment
// variables and the flags below, flags winning.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/bridge-it-together/api"
	"github.com/wricardo/bridge-it-together/game/config"
	"github.com/wricardo/bridge-it-together/game/service"
	"github.com/wricardo/bridge-it-together/game/session"
	"github.com/wricardo/bridge-it-together/logging"
	"github.com/wricardo/bridge-it-together/telemetry"
	"github.com/wricardo/bridge-it-together/transport/mcp"
	"github.com/wricardo/bridge-it-together/transport/websocket"
	"github.com/wricardo/bridge-it-together/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Bridge It Together Server"
)

const (
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	if err := newApp(envErr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. envErr is the result of loading .env and is
// logged once a logger exists.
func newApp(envErr error) *cli.Command {
	return &cli.Command{
		Name:    "bridgeit",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings-dir",
				Value:   ".",
				Usage:   "directory containing " + config.SettingsFile,
				Sources: cli.EnvVars("BRIDGEIT_SETTINGS_DIR"),
			},
			&cli.StringFlag{
				Name:    "scenarios",
				Aliases: []string{"config-dir"},
				Usage:   "directory containing scenario files",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.StringFlag{Name: "store", Usage: "session store: file or sqlite"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "pretty", Usage: "human readable console logs"},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serverAction(ctx, cmd, envErr)
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return serverAction(ctx, cmd, envErr)
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return stdioAction(ctx, cmd, envErr)
				},
			},
			{
				Name:      "validate",
				Usage:     "Validate every scenario file in a directory",
				ArgsUsage: "[dir]",
				Action:    validateAction,
			},
		},
	}
}

// loadSettings reads the settings file and applies flag overrides.
func loadSettings(cmd *cli.Command) (*config.Settings, error) {
	settings, err := config.LoadSettings(cmd.String("settings-dir"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("scenarios") {
		settings.ScenariosDir = cmd.String("scenarios")
	}
	if cmd.IsSet("host") {
		settings.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		settings.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("store") {
		settings.Sessions.Store = cmd.String("store")
	}
	if cmd.IsSet("log-level") {
		settings.LogLevel = cmd.String("log-level")
	}
	if cmd.Bool("debug") {
		settings.LogLevel = "debug"
	}
	return settings, nil
}

// setup loads settings and builds the logger and metrics every mode shares.
// Logs and metric exports go to stderr so stdout stays free for the MCP stdio
// transport.
func setup(cmd *cli.Command, envErr error) (*config.Settings, zerolog.Logger, *telemetry.Provider, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	log := logging.New(settings.LogLevel, os.Stderr, cmd.Bool("pretty"))
	if envErr == nil {
		log.Debug().Msg("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("error loading .env file")
	}

	metrics, err := telemetry.NewProvider(telemetry.Config{
		Enabled:     settings.Metrics.Enabled,
		ServiceName: "bridgeit",
		Interval:    settings.Metrics.Interval,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if metrics.Enabled() {
		log.Info().Dur("interval", settings.Metrics.Interval).Msg("metrics export enabled")
	}
	return settings, log, metrics, nil
}

// shutdownMetrics flushes the last export before exit.
func shutdownMetrics(metrics *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metrics.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to flush metrics")
	}
}

func serverAction(ctx context.Context, cmd *cli.Command, envErr error) error {
	settings, log, metrics, err := setup(cmd, envErr)
	if err != nil {
		return err
	}
	defer shutdownMetrics(metrics, log)
	log.Info().Str("version", Version).Str("mode", "server").Msg("starting " + AppName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, settings, log, metrics.Metrics())
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runHTTPServer(ctx, settings, svc.sim, log, ngrokOptions{
		enabled: cmd.Bool("ngrok"),
		auth:    cmd.String("ngrok-auth"),
		domain:  cmd.String("ngrok-domain"),
	})
}

func stdioAction(ctx context.Context, cmd *cli.Command, envErr error) error {
	settings, log, metrics, err := setup(cmd, envErr)
	if err != nil {
		return err
	}
	defer shutdownMetrics(metrics, log)
	log.Info().Str("version", Version).Str("mode", "stdio-mcp").Msg("starting " + AppName)

	svc, err := initializeServices(ctx, settings, log, metrics.Metrics())
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runStdioMCPWithInternalServer(ctx, settings, svc.sim, log)
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "configs"
		if cmd.IsSet("scenarios") {
			dir = cmd.String("scenarios")
		}
	}

	results, err := validate.ValidateDir(dir)
	if err != nil {
		return err
	}
	if !validate.Report(cmd.Root().Writer, results) {
		return errors.New("some scenarios have errors")
	}
	return nil
}

// services holds what initializeServices wired together.
type services struct {
	sim         service.SimulationService
	sessions    *session.Manager
	persistence session.SessionPersistence
	closeStore  func() error
	log         zerolog.Logger
}

// Close saves every session and releases the store.
func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		s.log.Warn().Err(err).Msg("failed to save sessions on shutdown")
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close session store")
		}
	}
}

// initializeServices wires the scenario manager, the session store and the
// simulation service. Background routines stop when ctx is done.
func initializeServices(ctx context.Context, settings *config.Settings, log zerolog.Logger, metrics *telemetry.Metrics) (*services, error) {
	scenarios, err := config.NewManager(settings.ScenariosDir, logging.Component(log, "scenarios"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario manager: %w", err)
	}

	rebuilder := session.Rebuilder{
		Scenarios: scenarios,
		Log:       logging.Component(log, "engine"),
		Metrics:   metrics,
	}

	svc := &services{log: log}
	switch settings.Sessions.Store {
	case config.StoreSQLite:
		db, err := session.OpenSQLite(settings.Sessions.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := session.NewSQLitePersistence(db, rebuilder)
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
		svc.persistence = store
		svc.closeStore = store.Close
	default:
		store, err := session.NewFilePersistence(settings.Sessions.Dir, rebuilder)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		svc.persistence = store
	}

	svc.sessions = session.NewManagerWithPersistence(svc.persistence, logging.Component(log, "sessions"), metrics)
	if err := svc.sessions.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	svc.sim = service.NewSimulationService(svc.sessions, scenarios, logging.Component(log, "service"))

	go sessionCleanupRoutine(ctx, svc.sessions, svc.persistence, settings.Sessions.Retention, log)
	go storeSyncRoutine(ctx, svc.sessions, svc.persistence, log)

	return svc, nil
}

// purger is implemented by stores that can drop stale rows themselves.
type purger interface {
	PurgeBefore(cutoff time.Time) (int64, error)
}

// sessionCleanupRoutine periodically evicts sessions idle longer than retention
// and purges them from stores that support it.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, store session.SessionPersistence, retention time.Duration, log zerolog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupSessions(manager, store, retention, log)
		}
	}
}

func cleanupSessions(manager *session.Manager, store session.SessionPersistence, retention time.Duration, log zerolog.Logger) {
	manager.CleanupExpiredSessions(retention)

	p, ok := store.(purger)
	if !ok {
		return
	}
	purged, err := p.PurgeBefore(time.Now().Add(-retention))
	if err != nil {
		log.Warn().Err(err).Msg("failed to purge stored sessions")
		return
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Msg("purged expired sessions from store")
	}
}

// storeSyncRoutine periodically drops in-memory sessions whose stored copy
// was deleted out from under the server.
func storeSyncRoutine(ctx context.Context, manager *session.Manager, store session.SessionPersistence, log zerolog.Logger) {
	if store == nil {
		return
	}
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncWithStore(manager, store, log)
		}
	}
}

func syncWithStore(manager *session.Manager, store session.SessionPersistence, log zerolog.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if store.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug().Str("session", sess.ID).Msg("pruned session from memory (store copy deleted)")
		}
	}
	if pruned > 0 {
		log.Info().Int("pruned", pruned).Msg("store sync pruned orphaned sessions")
	}
	return pruned
}

// localURL is the base URL the MCP proxy uses to reach this process.
func localURL(s config.ServerSettings) string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(s.Port)))
}

// newRouter mounts the REST API and WebSocket at the root and the MCP proxy at /mcp.
func newRouter(sim service.SimulationService, hub *websocket.Hub, baseURL string, log zerolog.Logger) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(sim, hub, logging.Component(log, "api")))
	mainRouter.Handle("/mcp", mcp.NewClient(baseURL, logging.Component(log, "mcp")))
	return mainRouter
}

type ngrokOptions struct {
	enabled bool
	auth    string
	domain  string
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled it also
// provisions a public tunnel serving the same router.
func runHTTPServer(ctx context.Context, settings *config.Settings, sim service.SimulationService, log zerolog.Logger, tunnel ngrokOptions) error {
	hub := websocket.NewHub(logging.Component(log, "websocket"))
	go hub.Run(ctx)

	addr := settings.Server.Addr()
	mainRouter := newRouter(sim, hub, localURL(settings.Server), log)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("rest", fmt.Sprintf("http://%s/api", addr)).
			Str("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if tunnel.enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, tunnel, mainRouter, log)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
	return runErr
}

func runNgrok(ctx context.Context, opts ngrokOptions, handler http.Handler, log zerolog.Logger) {
	log = logging.Component(log, "ngrok")
	if opts.auth == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	var endpoint ngrokConfig.Tunnel
	if opts.domain != "" {
		endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.domain))
		log.Info().Str("domain", opts.domain).Msg("using custom ngrok domain")
	} else {
		endpoint = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(opts.auth))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	url := tun.URL()
	log.Info().
		Str("url", url).
		Str("rest", url+"/api").
		Str("websocket", url+"/ws?session=<session_id>").
		Str("mcp", url+"/mcp").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// externalAPI reports whether an API server already answers at baseURL.
func externalAPI(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// startInternalServer serves the API on a random loopback port and returns its base URL.
func startInternalServer(ctx context.Context, sim service.SimulationService, log zerolog.Logger) (string, *http.Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := fmt.Sprintf("http://%s", listener.Addr().String())

	hub := websocket.NewHub(logging.Component(log, "websocket"))
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(sim, hub, logging.Component(log, "api"))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("internal HTTP server error")
		}
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("internal HTTP server started for MCP stdio")
	return baseURL, httpServer, nil
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an API
// server already listening on the configured port, otherwise it starts an
// internal one on a random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, settings *config.Settings, sim service.SimulationService, log zerolog.Logger) error {
	baseURL := localURL(settings.Server)
	log.Info().Str("url", baseURL).Msg("checking for external API server")

	if externalAPI(baseURL) {
		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (using external HTTP server)")
	} else {
		internalURL, httpServer, err := startInternalServer(ctx, sim, log)
		if err != nil {
			return err
		}
		defer httpServer.Close()
		baseURL = internalURL
		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (using internal HTTP server)")
	}

	mcpClient := mcp.NewClient(baseURL, logging.Component(log, "mcp"))
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
