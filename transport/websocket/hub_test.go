package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/bridge-it-together/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, engine.WebSocketBufferSize),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels must be initialised")
	}
	if cap(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected broadcast buffer %d, got %d", engine.WebSocketBufferSize, cap(hub.broadcast))
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Empty session should be removed")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister is a no-op.
	hub.unregisterClient(client)
}

func TestHubMultipleClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a1 := newTestClient(hub, "a")
	a2 := newTestClient(hub, "a")
	b1 := newTestClient(hub, "b")
	for _, c := range []*Client{a1, a2, b1} {
		hub.registerClient(c)
	}

	if hub.ClientCount("a") != 2 || hub.ClientCount("b") != 1 {
		t.Fatalf("Unexpected counts a=%d b=%d", hub.ClientCount("a"), hub.ClientCount("b"))
	}

	hub.unregisterClient(a1)
	if hub.ClientCount("a") != 1 {
		t.Errorf("Expected 1 client left in a, got %d", hub.ClientCount("a"))
	}
}

func TestHubBroadcastState(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	inSession := newTestClient(hub, "s1")
	otherSession := newTestClient(hub, "s2")
	hub.registerClient(inSession)
	hub.registerClient(otherSession)

	state := &engine.WorldState{Scenario: "Bridge", Tick: 7, FixedStep: 0.02}
	hub.BroadcastState("S1", state)
	hub.broadcastMessage(<-hub.broadcast)

	select {
	case data := <-inSession.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if msg.Event != EventStateUpdate {
			t.Errorf("Expected event %s, got %s", EventStateUpdate, msg.Event)
		}
		if msg.State == nil || msg.State.Tick != 7 {
			t.Errorf("Unexpected state %+v", msg.State)
		}
	default:
		t.Fatal("Client in session did not receive the update")
	}

	select {
	case <-otherSession.send:
		t.Error("Client in another session should not receive the update")
	default:
	}
}

func TestHubBroadcastEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, "s1")
	hub.registerClient(client)

	hub.BroadcastEvents("s1", nil)
	if len(hub.broadcast) != 0 {
		t.Fatal("Empty event batches should not be queued")
	}

	hub.BroadcastEvents("s1", []engine.Event{{Seq: 1, Type: engine.EventDeath, Entity: "royal-1", Counts: true}})
	hub.broadcastMessage(<-hub.broadcast)

	var msg Message
	if err := json.Unmarshal(<-client.send, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Event != EventSimulation || len(msg.Events) != 1 || msg.Events[0].Type != engine.EventDeath {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, "s1")
	hub.registerClient(client)

	hub.BroadcastEvent("s1", "session_deleted", map[string]string{"id": "s1"})
	hub.broadcastMessage(<-hub.broadcast)

	var msg Message
	if err := json.Unmarshal(<-client.send, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Event != "session_deleted" {
		t.Errorf("Expected session_deleted, got %s", msg.Event)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := &Client{hub: hub, sessionID: "s1", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.BroadcastState("s1", &engine.WorldState{})
	hub.broadcastMessage(<-hub.broadcast)

	if hub.ClientCount("s1") != 0 {
		t.Error("Slow client should be unregistered")
	}
}

func TestHubEnqueueNeverBlocks(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < engine.WebSocketBufferSize+10; i++ {
			hub.BroadcastState("s1", &engine.WorldState{Tick: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	if len(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected full queue of %d, got %d", engine.WebSocketBufferSize, len(hub.broadcast))
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=Abc1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount("abc1") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.BroadcastState("abc1", &engine.WorldState{Scenario: "Bridge", Tick: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msg.State == nil || msg.State.Scenario != "Bridge" || msg.State.Tick != 3 {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := newTestClient(hub, "s1")
	hub.register <- client
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount("s1") != 0 {
		t.Error("Clients should be removed on shutdown")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed on shutdown")
	}
}

func TestServeWSAfterShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	served := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "late")
		served <- struct{}{}
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeWS blocked after the hub stopped")
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the late connection to be closed")
	}
	if hub.ClientCount("late") != 0 {
		t.Error("Late client should not be registered")
	}
}

func TestReadPumpExitsAfterShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	close(hub.done)

	returned := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Client{hub: hub, conn: conn, send: make(chan []byte, 1), sessionID: "s1"}
		c.readPump()
		close(returned)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	conn.Close()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("readPump blocked on unregister after the hub stopped")
	}
}
