// Package websocket pushes simulation updates to browser and tool clients.
//
// A Hub keeps the connections of each session. After every mutation the API
// calls BroadcastEvents with the events it produced and BroadcastState with the
// resulting world state; clients of other sessions see nothing.
//
// Outgoing frames are JSON Message values:
//
//	{"session_id":"a1b2","event":"state_update","state":{...}}
//	{"session_id":"a1b2","event":"events","events":[{"type":"death",...}]}
//
// Incoming frames are read and discarded; the connection only exists to
// receive updates.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// Broadcasts never block the caller. When the queue is full the message is
// dropped, and a client whose send buffer is full is disconnected.
package websocket
