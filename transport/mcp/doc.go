// Package mcp exposes the simulation to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running API server, and the JSON answer is rendered as plain text.
//
// Tools:
//   - create_session, list_sessions, get_session, delete_session
//   - world_state, step, reset, history
//   - spawn, despawn, move_entity, kill, fire
//   - add_collider, remove_collider
//   - list_scenarios, get_scenario
//   - simulation_guide
//
// Transport modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: mount the Client itself, it answers one JSON-RPC message per POST
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", log)
//	router.Handle("/mcp", client)
package mcp
