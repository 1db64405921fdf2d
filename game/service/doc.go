// Package service is the layer between the transports (HTTP, WebSocket, MCP)
// and the simulation engine.
//
// SimulationService owns session isolation: every session runs its own
// engine.Engine built from a scenario. Mutations take the service lock, touch
// the session's last-accessed time and persist the session afterwards.
// Reads take the read lock.
//
//	sessions := session.NewManager(log, metrics)
//	scenarios, _ := config.NewManager("configs", log)
//	svc := service.NewSimulationService(sessions, scenarios, log)
//
//	info, err := svc.CreateSession(ctx, "bridge_crossing")
//	res, err := svc.Step(ctx, info.ID, 50)
//	for _, ev := range res.Events {
//		fmt.Println(ev.Type, ev.Entity)
//	}
//
// Event history is paginated newest first and can be filtered by event type
// or entity.
package service
