package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
	"github.com/wricardo/bridge-it-together/game/service"
)

// Client is a thin MCP server that proxies every tool to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	log        zerolog.Logger
}

// NewClient creates an MCP client that calls the REST API at baseURL
func NewClient(baseURL string, log zerolog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Bridge It Together",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Bridge It Together - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Vehicles (royal cars, car guards, guards) classify what they stand on every
fixed tick, map it to output signals and decide whether a death counts.

AVAILABLE TOOLS:
- create_session / list_sessions / get_session / delete_session
- world_state: entities with category, signals and launcher state
- step: advance the simulation by fixed ticks
- reset: rebuild the scenario's initial world
- history: paginated events, filterable by type and entity
- spawn / despawn / move_entity / kill / fire
- add_collider / remove_collider
- list_scenarios / get_scenario
- simulation_guide: how classification, signals and cooldowns work`),
	)

	c.registerTools()
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))
}

func entityParam() mcp.ToolOption {
	return mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity ID, e.g. royal-1"))
}

func vectorParams(prefix, what string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber(prefix+"x", mcp.Description(what+" X")),
		mcp.WithNumber(prefix+"y", mcp.Description(what+" Y (up)")),
		mcp.WithNumber(prefix+"z", mcp.Description(what+" Z (forward)")),
	}
}

func tool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

func (c *Client) registerTools() {
	// Sessions
	c.mcpServer.AddTool(tool("create_session", "Create a new simulation session",
		mcp.WithString("scenario_id", mcp.Description("Scenario to run (optional, default scenario otherwise)")),
	), c.handleCreateSession)
	c.mcpServer.AddTool(tool("list_sessions", "List all active sessions"), c.handleListSessions)
	c.mcpServer.AddTool(tool("get_session", "Get details of a specific session", sessionParam()), c.handleGetSession)
	c.mcpServer.AddTool(tool("delete_session", "Delete a session", sessionParam()), c.handleDeleteSession)

	// Simulation
	c.mcpServer.AddTool(tool("world_state", "Get the current world state", sessionParam()), c.handleWorldState)
	c.mcpServer.AddTool(tool("step", "Advance the simulation by fixed ticks",
		sessionParam(),
		mcp.WithNumber("steps", mcp.Description(fmt.Sprintf("Number of ticks (1-%d, default 1)", engine.MaxStepsPerCall))),
	), c.handleStep)
	c.mcpServer.AddTool(tool("reset", "Reset the session to the scenario's initial world", sessionParam()), c.handleReset)
	c.mcpServer.AddTool(tool("history", "View past events",
		sessionParam(),
		mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Events per page (default 20)")),
		mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Sort order (default desc)")),
		mcp.WithString("type", mcp.Description("Only events of this type, e.g. death or state_change")),
		mcp.WithString("entity", mcp.Description("Only events about this entity")),
	), c.handleHistory)

	// Entities
	spawn := []mcp.ToolOption{
		sessionParam(),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind declared by the scenario")),
		mcp.WithString("entity_id", mcp.Description("Entity ID (optional, generated otherwise)")),
		mcp.WithNumber("yaw", mcp.Description("Heading in degrees around +Y")),
	}
	c.mcpServer.AddTool(tool("spawn", "Spawn an entity", append(spawn, vectorParams("", "Position")...)...), c.handleSpawn)
	c.mcpServer.AddTool(tool("despawn", "Remove an entity", sessionParam(), entityParam()), c.handleDespawn)

	move := []mcp.ToolOption{
		sessionParam(),
		entityParam(),
		mcp.WithNumber("yaw", mcp.Description("Heading in degrees around +Y")),
		mcp.WithBoolean("relative", mcp.Description("Treat position as a delta and add yaw to the current heading")),
	}
	c.mcpServer.AddTool(tool("move_entity", "Teleport an entity; it is classified at the new place on the next step",
		append(move, vectorParams("", "Position")...)...), c.handleMoveEntity)
	c.mcpServer.AddTool(tool("kill", "Kill an entity and report whether the death counts",
		sessionParam(),
		entityParam(),
		mcp.WithString("cause", mcp.Description("Why it died (optional)")),
	), c.handleKill)
	c.mcpServer.AddTool(tool("fire", "Start a launcher cycle (launching, reloading, loaded)", sessionParam(), entityParam()), c.handleFire)

	// World
	collider := []mcp.ToolOption{
		sessionParam(),
		mcp.WithString("body", mcp.Required(), mcp.Description("Body (static body or entity ID) to attach to")),
		mcp.WithNumber("radius", mcp.Description("Sphere radius; leave 0 and set half extents for a box")),
		mcp.WithString("tags", mcp.Description("Comma separated tags, e.g. ground,bridge")),
	}
	collider = append(collider, vectorParams("offset_", "Offset")...)
	collider = append(collider, vectorParams("half_", "Box half extent")...)
	c.mcpServer.AddTool(tool("add_collider", "Attach a collider to a body", collider...), c.handleAddCollider)
	c.mcpServer.AddTool(tool("remove_collider", "Detach a collider",
		sessionParam(),
		mcp.WithString("collider_id", mcp.Required(), mcp.Description("Collider ID")),
	), c.handleRemoveCollider)

	// Scenarios
	c.mcpServer.AddTool(tool("list_scenarios", "List available scenarios"), c.handleListScenarios)
	c.mcpServer.AddTool(tool("get_scenario", "Show a scenario's kinds, bodies and spawns",
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario ID")),
	), c.handleGetScenario)

	c.mcpServer.AddTool(tool("simulation_guide", "Explain how the simulation works"), c.handleGuide)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message per POST.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.log.Error().Err(err).Msg("failed to encode MCP response")
	}
}

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api call")

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(request mcp.CallToolRequest, suffix string) (string, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return "", err
	}
	return "/api/sessions/" + url.PathEscape(id) + suffix, nil
}

func entityPath(request mcp.CallToolRequest, suffix string) (string, error) {
	base, err := sessionPath(request, "")
	if err != nil {
		return "", err
	}
	id, err := request.RequireString("entity_id")
	if err != nil {
		return "", err
	}
	return base + "/entities/" + url.PathEscape(id) + suffix, nil
}

func vector(request mcp.CallToolRequest, prefix string) mgl64.Vec3 {
	return mgl64.Vec3{
		request.GetFloat(prefix+"x", 0),
		request.GetFloat(prefix+"y", 0),
		request.GetFloat(prefix+"z", 0),
	}
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if id := request.GetString("scenario_id", ""); id != "" {
		body["scenario_id"] = id
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions (%d):\n", len(resp.Sessions))
	for _, s := range resp.Sessions {
		tick := 0
		if s.State != nil {
			tick = s.State.Tick
		}
		fmt.Fprintf(&b, "- %s scenario=%s tick=%d last_accessed=%s\n",
			s.ID, s.ScenarioID, tick, s.LastAccessedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "DELETE", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp.Message), nil
}

func (c *Client) handleWorldState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var ws engine.WorldState
	if err := c.apiCall(ctx, "GET", path, nil, &ws); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatWorldState(&ws)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/step")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := map[string]int{"steps": request.GetInt("steps", 1)}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/reset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp struct {
		Message string             `json:"message"`
		State   *engine.WorldState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp.Message + "\n\n" + formatWorldState(resp.State)), nil
}

func (c *Client) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/history")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	for _, key := range []string{"order", "type", "entity"} {
		if v := request.GetString(key, ""); v != "" {
			q.Set(key, v)
		}
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleSpawn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/entities")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	spec := engine.SpawnSpec{
		ID:       request.GetString("entity_id", ""),
		Kind:     kind,
		Position: vector(request, ""),
		Yaw:      request.GetFloat("yaw", 0),
	}
	return c.action(ctx, "POST", path, spec)
}

func (c *Client) handleDespawn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := entityPath(request, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.action(ctx, "DELETE", path, nil)
}

func (c *Client) handleMoveEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := entityPath(request, "/move")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := service.MoveRequest{
		Position: vector(request, ""),
		Yaw:      request.GetFloat("yaw", 0),
		Relative: request.GetBool("relative", false),
	}
	return c.action(ctx, "POST", path, req)
}

func (c *Client) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := entityPath(request, "/kill")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.action(ctx, "POST", path, map[string]string{"cause": request.GetString("cause", "")})
}

func (c *Client) handleFire(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := entityPath(request, "/fire")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.action(ctx, "POST", path, nil)
}

func (c *Client) handleAddCollider(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request, "/colliders")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	spec := engine.ColliderSpec{
		Body:        body,
		Offset:      vector(request, "offset_"),
		Radius:      request.GetFloat("radius", 0),
		HalfExtents: vector(request, "half_"),
	}
	for _, tag := range strings.Split(request.GetString("tags", ""), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			spec.Tags = append(spec.Tags, tag)
		}
	}
	return c.action(ctx, "POST", path, spec)
}

func (c *Client) handleRemoveCollider(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("collider_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := sessionPath(request, "/colliders/"+url.PathEscape(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.action(ctx, "DELETE", path, nil)
}

// action performs an entity or world mutation and formats its ActionResult.
func (c *Client) action(ctx context.Context, method, path string, body any) (*mcp.CallToolResult, error) {
	var result service.ActionResult
	if err := c.apiCall(ctx, method, path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []*service.ScenarioInfo
	if err := c.apiCall(ctx, "GET", "/api/scenarios", nil, &infos); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available scenarios (%d):\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(&b, "- %s: %s (kinds: %s, bodies: %d, spawns: %d)\n",
			info.ScenarioID, info.Name, strings.Join(info.Kinds, ", "), info.Bodies, info.Spawns)
		if info.Description != "" {
			fmt.Fprintf(&b, "  %s\n", info.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("scenario_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var s engine.Scenario
	if err := c.apiCall(ctx, "GET", "/api/scenarios/"+url.PathEscape(id), nil, &s); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatScenario(&s)), nil
}

func (c *Client) handleGuide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(guide), nil
}

const guide = `Bridge It Together - Simulation Guide

EVERY FIXED TICK, FOR EACH LIVE ENTITY:
1. Classify: each detection point tests a sphere below the vehicle. A point
   matches when an overlapping collider (not its own) carries one of its tags.
   Matched categories are resolved by the kind's precedence list: a guard on
   a carriage prefers "carrier" over "ground", a car guard prefers "ground".
   Nothing matched means "none" (airborne).
2. Map: the category sets output flags. The first declared flag for the
   category is on, every other flag is off.
3. Death rule: a boolean expression over the flags ("grounded || flying")
   decides whether a death at this moment counts.
4. Interactions: each interaction point fires at most once per interval
   against colliders whose owner has one of its target capabilities
   (bridge_collision_handler, player_collision_handler).
5. Launcher: fire starts launching, then reloading, then loaded again.

COLLISION FILTER:
The first time a vehicle sees an object with the ignored_by_vehicles
capability (or an ignore tag), every collider pair between the two
hierarchies is ignored for good.

TIPS:
- spawn then step once before reading categories; a teleport is classified
  on the next step.
- history with type=death shows whether each death counted.`

func formatSessionInfo(s *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nScenario: %s\nCreated: %s\n", s.ID, s.ScenarioID, s.CreatedAt.Format(time.RFC3339))
	if s.State != nil {
		b.WriteString("\n")
		b.WriteString(formatWorldState(s.State))
	}
	return b.String()
}

func onFlags(m map[string]bool) string {
	var on []string
	for k, v := range m {
		if v {
			on = append(on, k)
		}
	}
	if len(on) == 0 {
		return "-"
	}
	sort.Strings(on)
	return strings.Join(on, ",")
}

func formatWorldState(ws *engine.WorldState) string {
	if ws == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s  Tick: %d  Time: %.2fs  Ignored pairs: %d\n",
		ws.Scenario, ws.Tick, ws.Time, ws.IgnoredPairs)

	if len(ws.Entities) == 0 {
		b.WriteString("No entities\n")
	}
	for _, e := range ws.Entities {
		status := "alive"
		if e.Dead {
			status = "DEAD"
		}
		fmt.Fprintf(&b, "- %s (%s) at (%.2f, %.2f, %.2f) %s category=%s",
			e.ID, e.Kind, e.Position.X(), e.Position.Y(), e.Position.Z(), status, e.Category)
		if e.Point != "" {
			fmt.Fprintf(&b, " via %s", e.Point)
		}
		fmt.Fprintf(&b, " signals=%s death_counts=%t", onFlags(e.Signals), e.DeathCounts)
		if e.Launcher != "" {
			fmt.Fprintf(&b, " launcher=%s", e.Launcher)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatEvent(ev engine.Event) string {
	line := fmt.Sprintf("#%d t=%d %s %s", ev.Seq, ev.Tick, ev.Type, ev.Entity)
	switch ev.Type {
	case engine.EventStateChange:
		line += fmt.Sprintf(" %s -> %s", ev.From, ev.To)
	case engine.EventDeath:
		if ev.Counts {
			line += " (counts)"
		} else {
			line += " (not counted)"
		}
	case engine.EventBridgeHit, engine.EventPlayerHit, engine.EventContact:
		line += fmt.Sprintf(" %s hit %s", ev.Point, ev.Other)
	case engine.EventIgnoreApplied:
		line += fmt.Sprintf(" ignores %s (%d pairs)", ev.Other, ev.Count)
	}
	if ev.Message != "" {
		line += ": " + ev.Message
	}
	return line
}

func formatEvents(events []engine.Event) string {
	if len(events) == 0 {
		return "No events\n"
	}
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(formatEvent(ev))
		b.WriteString("\n")
	}
	return b.String()
}

func formatStepResult(r *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stepped %d tick(s) -> tick %d (%.2fs)\n", r.Executed, r.Tick, r.Time)
	if r.Truncated {
		fmt.Fprintf(&b, "Requested %d, truncated to the limit of %d\n", r.Requested, r.Limit)
	}
	b.WriteString("\nEvents:\n")
	b.WriteString(formatEvents(r.Events))
	if r.State != nil {
		b.WriteString("\n")
		b.WriteString(formatWorldState(r.State))
	}
	return b.String()
}

func formatActionResult(r *service.ActionResult) string {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString("\n")
	if r.ColliderID != "" {
		fmt.Fprintf(&b, "Collider: %s\n", r.ColliderID)
	}
	if len(r.Events) > 0 {
		b.WriteString("\nEvents:\n")
		b.WriteString(formatEvents(r.Events))
	}
	if r.State != nil {
		b.WriteString("\n")
		b.WriteString(formatWorldState(r.State))
	}
	return b.String()
}

func formatHistory(h *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event History (Page %d/%d) - Total: %d\n\n", h.Page, h.TotalPages, h.TotalEvents)
	b.WriteString(formatEvents(h.Events))
	return b.String()
}

func formatScenario(s *engine.Scenario) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\nFixed step: %gs\n\nKinds:\n", s.Name, s.Description, s.FixedStep)
	for _, t := range s.Types {
		names := make([]string, 0, len(t.Points))
		for _, p := range t.Points {
			names = append(names, fmt.Sprintf("%s=%s", p.Name, p.Category))
		}
		fmt.Fprintf(&b, "- %s: points [%s] precedence %v flags %v death rule %q\n",
			t.Kind, strings.Join(names, " "), t.Precedence, t.Flags, t.DeathRule)
	}
	b.WriteString("\nBodies:\n")
	for _, body := range s.Bodies {
		fmt.Fprintf(&b, "- %s (%d colliders) tags %v\n", body.ID, len(body.Colliders), body.Tags)
	}
	b.WriteString("\nSpawns:\n")
	for _, sp := range s.Spawns {
		fmt.Fprintf(&b, "- %s %s at (%.2f, %.2f, %.2f)\n", sp.ID, sp.Kind, sp.Position.X(), sp.Position.Y(), sp.Position.Z())
	}
	return b.String()
}
