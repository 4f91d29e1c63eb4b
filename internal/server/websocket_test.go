package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simforge/simforge/internal/core/actions"
	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/gameplay"
	"github.com/simforge/simforge/internal/core/observability/log"
)

func newTestGateway(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.Config{
		TickRate:          1,
		MinActionInterval: time.Nanosecond,
		Logger:            log.NewNop(),
	})
	if err := e.InstallPlugin(gameplay.Plugin(gameplay.DefaultTunables())); err != nil {
		t.Fatalf("could not install gameplay bundle: %v", err)
	}
	t.Cleanup(e.Close)
	return NewServer(e, Config{Logger: log.NewNop()}), e
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	srv, _ := newTestGateway(t)
	s := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http")
	_, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake to fail without a user parameter")
	}
}

func TestWebSocketActionRoundTrip(t *testing.T) {
	srv, e := newTestGateway(t)
	s := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?user=alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	defer conn.Close()

	var welcome struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err = conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("could not read welcome: %v", err)
	}
	if welcome.Type != TypeWelcome {
		t.Fatalf("expected welcome envelope, got %q", welcome.Type)
	}
	playerID, _ := welcome.Data["playerId"].(string)
	if playerID == "" {
		t.Fatalf("welcome envelope missing player id")
	}
	if _, ok := e.Entity(entity.ID(playerID)); !ok {
		t.Fatalf("player entity was not spawned")
	}

	if err = conn.WriteJSON(Envelope{
		Type: gameplay.ActionMove,
		Data: map[string]any{"direction": "forward", "distance": float64(2)},
	}); err != nil {
		t.Fatalf("could not send action: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
		Data struct {
			Success bool   `json:"success"`
			Code    string `json:"code"`
		} `json:"data"`
	}
	if err = conn.ReadJSON(&reply); err != nil {
		t.Fatalf("could not read result: %v", err)
	}
	if reply.Type != TypeResult || !reply.Data.Success {
		t.Fatalf("expected successful result, got %+v", reply)
	}

	player, _ := e.Entity(entity.ID(playerID))
	if player.Position.Z() != 2 {
		t.Fatalf("expected move applied, position %v", player.Position)
	}
}

func TestWebSocketAsyncEnqueue(t *testing.T) {
	srv, e := newTestGateway(t)
	s := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?user=bob"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	defer conn.Close()

	var welcome map[string]any
	if err = conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("could not read welcome: %v", err)
	}

	if err = conn.WriteJSON(Envelope{
		Type:  gameplay.ActionMove,
		Data:  map[string]any{"direction": "forward"},
		Async: true,
	}); err != nil {
		t.Fatalf("could not send action: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
	}
	if err = conn.ReadJSON(&reply); err != nil {
		t.Fatalf("could not read ack: %v", err)
	}
	if reply.Type != TypeQueued {
		t.Fatalf("expected queued ack, got %q", reply.Type)
	}
	if got := e.Stats().QueuedActions; got != 1 {
		t.Fatalf("expected 1 staged action, got %d", got)
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	srv, e := newTestGateway(t)
	s := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?user=carol"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	var welcome map[string]any
	if err = conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("could not read welcome: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.SessionCount() == 0 && len(e.EntitiesByKind(entity.KindPlayer)) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session or player entity survived disconnect")
}

func TestSessionOverflowDisconnects(t *testing.T) {
	block := make(chan struct{})
	closed := make(chan struct{})
	sess := newSession("dave", "", false, "websocket")
	sess.writeFn = func(any) error { <-block; return nil }
	sess.closeFn = func() { close(closed) }
	go sess.writeLoop(log.NewNop())
	defer close(block)

	var overflowed bool
	for i := 0; i < 2*sessionQueueSize+2; i++ {
		if err := sess.send(outbound{Type: TypeResult}); err != nil {
			if err != ErrSessionBacklogged {
				t.Fatalf("expected backlog error, got %v", err)
			}
			overflowed = true
			break
		}
	}
	if !overflowed {
		t.Fatal("queue never overflowed against a blocked writer")
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("overflowing session was not closed")
	}
	if err := sess.send(outbound{Type: TypeResult}); err != ErrSessionClosed {
		t.Fatalf("expected closed error after disconnect, got %v", err)
	}
}

func TestBroadcastOutpacesStalledClient(t *testing.T) {
	srv, e := newTestGateway(t)
	s := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	defer s.Close()

	sub := e.On(events.TypeActionProcessed, srv.broadcastEngineEvent)
	defer e.Off(sub)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?user=sleepy"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("could not connect: %v", err)
	}
	defer conn.Close()
	// the client never reads; its socket and queue must fill without
	// ever blocking the action pipeline

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50_000; i++ {
			e.ProcessAction(context.Background(), gameplay.ActionMove,
				map[string]any{"direction": "forward", "distance": float64(0)},
				actions.Context{UserID: "runner", At: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("action processing stalled behind a non-reading client")
	}
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	srv, _ := newTestGateway(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	rec = httptest.NewRecorder()
	srv.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats engine.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats response is not JSON: %v", err)
	}
	if len(stats.Plugins) != 1 || stats.Plugins[0] != gameplay.PluginName {
		t.Fatalf("expected gameplay bundle in stats, got %v", stats.Plugins)
	}
}
