// Package api provides the HTTP REST API of the Bridge It Together server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session {"scenario_id": "bridge_crossing"}
//   - GET /api/sessions - List sessions (sort=created|accessed, order, limit, scenario)
//   - GET /api/sessions/{id} - Get one session with its world state
//   - DELETE /api/sessions/{id} - Delete a session
//
// Simulation:
//   - GET /api/sessions/{id}/state - Current world state
//   - POST /api/sessions/{id}/step - Advance {"steps": n} fixed ticks (default 1)
//   - POST /api/sessions/{id}/reset - Rebuild the scenario's initial world
//   - GET /api/sessions/{id}/history - Paginated events (page, limit, order, type, entity)
//
// Entities:
//   - POST /api/sessions/{id}/entities - Spawn {"kind", "id", "position", "yaw"}
//   - DELETE /api/sessions/{id}/entities/{eid} - Despawn
//   - POST /api/sessions/{id}/entities/{eid}/move - Teleport {"position", "yaw", "relative"}
//   - POST /api/sessions/{id}/entities/{eid}/kill - Kill {"cause"}
//   - POST /api/sessions/{id}/entities/{eid}/fire - Start a launcher cycle
//
// World:
//   - POST /api/sessions/{id}/bodies - Add a static body
//   - DELETE /api/sessions/{id}/bodies/{bid} - Remove a static body
//   - POST /api/sessions/{id}/colliders - Attach a collider to a body
//   - DELETE /api/sessions/{id}/colliders/{cid} - Detach a collider
//
// Scenarios:
//   - GET /api/scenarios - List scenario files
//   - GET /api/scenarios/{name} - Load one scenario
//   - POST /api/scenarios - Validate and save a scenario
//
// Other:
//   - GET /api/health - Liveness with session count
//   - GET /ws?session={id} - WebSocket subscription to a session
//
// Every mutation is broadcast to the session's WebSocket clients.
//
// Errors are JSON with a status derived from the domain error:
//
//	{"error": "session not found", "code": 404}
//
// Missing sessions, entities, bodies, colliders and scenarios give 404;
// duplicates, dead entities and busy launchers give 409; invalid input gives 400.
package api
