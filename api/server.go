package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/config"
	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/service"
	"github.com/wricardo/bridge-it-together/game/session"
	"github.com/wricardo/bridge-it-together/game/world"
	"github.com/wricardo/bridge-it-together/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.SimulationService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger
	started time.Time
}

// NewServer creates a new API server. hub may be nil.
func NewServer(sim service.SimulationService, hub *websocket.Hub, log zerolog.Logger) *Server {
	s := &Server{
		service: sim,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Simulation
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/step", s.handleStep).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Entities
	api.HandleFunc("/sessions/{id}/entities", s.handleSpawn).Methods("POST")
	api.HandleFunc("/sessions/{id}/entities/{eid}", s.handleDespawn).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/entities/{eid}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/entities/{eid}/kill", s.handleKill).Methods("POST")
	api.HandleFunc("/sessions/{id}/entities/{eid}/fire", s.handleFire).Methods("POST")

	// World
	api.HandleFunc("/sessions/{id}/bodies", s.handleAddBody).Methods("POST")
	api.HandleFunc("/sessions/{id}/bodies/{bid}", s.handleRemoveBody).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/colliders", s.handleAddCollider).Methods("POST")
	api.HandleFunc("/sessions/{id}/colliders/{cid}", s.handleRemoveCollider).Methods("DELETE")

	// Scenarios
	api.HandleFunc("/scenarios", s.handleListScenarios).Methods("GET")
	api.HandleFunc("/scenarios", s.handleSaveScenario).Methods("POST")
	api.HandleFunc("/scenarios/{name}", s.handleGetScenario).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message, "code": status})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, engine.ErrEntityNotFound),
		errors.Is(err, engine.ErrBodyNotFound),
		errors.Is(err, world.ErrBodyNotFound),
		errors.Is(err, world.ErrColliderNotFound),
		errors.Is(err, config.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionAlreadyExists),
		errors.Is(err, engine.ErrDuplicateEntity),
		errors.Is(err, world.ErrDuplicateID),
		errors.Is(err, engine.ErrEntityDead),
		errors.Is(err, engine.ErrLauncherBusy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidScenario),
		errors.Is(err, config.ErrInvalidScenario),
		errors.Is(err, engine.ErrUnknownKind),
		errors.Is(err, engine.ErrInvalidStep),
		errors.Is(err, engine.ErrNoLauncher),
		errors.Is(err, world.ErrInvalidShape),
		errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// broadcast pushes the outcome of a mutation to WebSocket subscribers.
func (s *Server) broadcast(sessionID string, state *engine.WorldState, events []engine.Event) {
	if s.hub == nil || state == nil {
		return
	}
	s.hub.BroadcastEvents(sessionID, events)
	s.hub.BroadcastState(sessionID, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(sessions),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.CreateSession(r.Context(), req.ScenarioID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Info().Str("session", info.ID).Str("scenario", info.ScenarioID).Msg("session created")
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}
	if scenario := query.Get("scenario"); scenario != "" {
		filtered := sessions[:0]
		for _, info := range sessions {
			if info.ScenarioID == scenario {
				filtered = append(filtered, info)
			}
		}
		sessions = filtered
	}

	sort.Slice(sessions, func(i, j int) bool {
		ti, tj := sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventSessionDeleted, map[string]string{"session_id": sessionID})
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Simulation Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetWorldState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	req := struct {
		Steps int `json:"steps"`
	}{Steps: 1}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Step(r.Context(), sessionID, req.Steps)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	s.log.Debug().
		Str("session", sessionID).
		Int("executed", result.Executed).
		Int("tick", result.Tick).
		Int("events", len(result.Events)).
		Bool("truncated", result.Truncated).
		Msg("step")
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.broadcast(sessionID, state, state.Events)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Simulation reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: service.DefaultHistoryLimit,
		Order: "desc",
	}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}
	opts.Type = query.Get("type")
	opts.Entity = query.Get("entity")

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Entity Handlers

// respondAction broadcasts and writes the result of an entity or world mutation.
func (s *Server) respondAction(w http.ResponseWriter, r *http.Request, sessionID string, result *service.ActionResult, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.broadcast(sessionID, result.State, result.Events)
	s.log.Debug().Str("session", sessionID).Int("events", len(result.Events)).Msg(result.Message)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var spec engine.SpawnSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if spec.Kind == "" {
		respondError(w, http.StatusBadRequest, "kind is required")
		return
	}

	result, err := s.service.Spawn(r.Context(), sessionID, spec)
	if err == nil {
		w.Header().Set("Location", fmt.Sprintf("/api/sessions/%s/entities/%s", sessionID, result.Entity.ID))
	}
	s.respondAction(w, r, sessionID, result, err)
}

func (s *Server) handleDespawn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.Despawn(r.Context(), vars["id"], vars["eid"])
	s.respondAction(w, r, vars["id"], result, err)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req service.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.MoveEntity(r.Context(), vars["id"], vars["eid"], req)
	s.respondAction(w, r, vars["id"], result, err)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Cause string `json:"cause,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Kill(r.Context(), vars["id"], vars["eid"], req.Cause)
	s.respondAction(w, r, vars["id"], result, err)
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.Fire(r.Context(), vars["id"], vars["eid"])
	s.respondAction(w, r, vars["id"], result, err)
}

// World Handlers

func (s *Server) handleAddBody(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var body engine.StaticBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	result, err := s.service.AddBody(r.Context(), sessionID, body)
	s.respondAction(w, r, sessionID, result, err)
}

func (s *Server) handleRemoveBody(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.RemoveBody(r.Context(), vars["id"], vars["bid"])
	s.respondAction(w, r, vars["id"], result, err)
}

func (s *Server) handleAddCollider(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var spec engine.ColliderSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if spec.Body == "" {
		respondError(w, http.StatusBadRequest, "body is required")
		return
	}

	result, err := s.service.AddCollider(r.Context(), sessionID, spec)
	s.respondAction(w, r, sessionID, result, err)
}

func (s *Server) handleRemoveCollider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.RemoveCollider(r.Context(), vars["id"], vars["cid"])
	s.respondAction(w, r, vars["id"], result, err)
}

// Scenario Handlers

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.service.ListScenarios(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scenarios)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")
	scenario, err := s.service.LoadScenario(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scenario)
}

func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
		engine.Scenario
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Scenario name is required")
		return
	}

	id := req.ScenarioID
	if id == "" {
		id = scenarioSlug(req.Name)
	}
	if err := s.service.SaveScenario(r.Context(), id, &req.Scenario); err != nil {
		s.fail(w, r, err)
		return
	}

	s.log.Info().Str("scenario", id).Msg("scenario saved")
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":     "Scenario saved successfully",
		"scenario_id": id,
	})
}

// scenarioSlug turns a display name into a file-safe identifier.
func scenarioSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, info.ID)
	s.hub.BroadcastState(info.ID, info.State)
}
