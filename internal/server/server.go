// Package server is the network gateway: it terminates websocket and QUIC
// clients and forwards their envelopes into the engine's action pipeline.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/pkg/concurrent"
	"github.com/simforge/simforge/pkg/sequence"
)

// Config holds gateway configuration.
type Config struct {
	// Addr is the HTTP/websocket listen address.
	Addr string

	// QUICAddr enables the QUIC frontend when non-empty.
	QUICAddr string

	Logger log.Log
}

// Server is the gateway. It owns the client sessions; all simulation state
// stays behind the engine facade.
type Server struct {
	engine *engine.Engine
	config Config
	logger log.Log

	httpServer *http.Server
	quic       *quicFrontend

	sessions     sync.Map // session id -> *session
	sessionCount int64    // atomic

	subs []*events.Subscription

	running int32 // atomic bool
	closed  int32 // atomic bool
}

func NewServer(e *engine.Engine, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.LevelInfo)
	}
	return &Server{
		engine: e,
		config: cfg,
		logger: cfg.Logger.With(log.String("component", "gateway")),
	}
}

// Handler returns the HTTP surface: the websocket endpoint plus health and
// stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start brings up the frontends. It does not block.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP listener failed", log.Error(err))
		}
	}()

	if s.config.QUICAddr != "" {
		q, err := newQUICFrontend(s, s.config.QUICAddr, s.logger)
		if err != nil {
			atomic.StoreInt32(&s.running, 0)
			return err
		}
		s.quic = q
		go s.quic.acceptLoop(ctx)
	}

	// world membership, scene transitions and action outcomes fan out to
	// every connected client
	s.subs = append(s.subs,
		s.engine.On(events.TypeEntityAdded, s.broadcastEngineEvent),
		s.engine.On(events.TypeEntityRemoved, s.broadcastEngineEvent),
		s.engine.On(events.TypeSceneLoaded, s.broadcastEngineEvent),
		s.engine.On(events.TypeSceneUnloaded, s.broadcastEngineEvent),
		s.engine.On(events.TypeActionProcessed, s.broadcastEngineEvent),
	)

	s.logger.Info("Gateway started",
		log.String("addr", s.config.Addr),
		log.String("quic_addr", s.config.QUICAddr))
	return nil
}

// Stop shuts the frontends down and closes every session.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	for _, sub := range s.subs {
		s.engine.Off(sub)
	}
	s.subs = nil

	s.sessions.Range(func(_, v any) bool {
		v.(*session).close()
		return true
	})

	if s.quic != nil {
		s.quic.close()
	}
	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("Gateway stopped")
	return err
}

func (s *Server) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// SessionCount reports the number of live sessions across frontends.
func (s *Server) SessionCount() int {
	return int(atomic.LoadInt64(&s.sessionCount))
}

func (s *Server) addSession(sess *session) {
	s.sessions.Store(sess.id, sess)
	atomic.AddInt64(&s.sessionCount, 1)
	s.logger.Info("Client connected",
		log.String("session_id", sess.id),
		log.String("user_id", sess.userID),
		log.String("transport", sess.transport))
}

// dropSession tears down a session's world presence: per-user rate-limit
// state and the player entity go with it.
func (s *Server) dropSession(sess *session) {
	if _, loaded := s.sessions.LoadAndDelete(sess.id); !loaded {
		return
	}
	atomic.AddInt64(&s.sessionCount, -1)
	s.engine.ForgetUser(sess.userID)
	if sess.playerID != "" {
		s.engine.RemoveEntity(sess.playerID)
	}
	s.logger.Info("Client disconnected",
		log.String("session_id", sess.id),
		log.String("user_id", sess.userID))
}

// dispatch routes one inbound envelope and returns the reply.
func (s *Server) dispatch(ctx context.Context, sess *session, env Envelope) outbound {
	if env.Type == "" {
		return errorEnvelope(ErrInvalidEnvelope.Error())
	}

	if env.Async {
		if err := s.engine.Enqueue(sess.request(env)); err != nil {
			return errorEnvelope(err.Error())
		}
		return outbound{Type: TypeQueued, Data: map[string]any{"action": env.Type}}
	}

	res := s.engine.ProcessAction(ctx, env.Type, env.Data, sess.actionContext())
	return outbound{Type: TypeResult, Data: res}
}

func (s *Server) broadcastEngineEvent(ev events.Event) error {
	var payload outbound
	switch e := ev.(type) {
	case events.EntityAdded:
		payload = outbound{Type: string(events.TypeEntityAdded), Data: map[string]any{
			"id":   string(e.Entity.ID),
			"kind": string(e.Entity.Kind),
		}}
	case events.EntityRemoved:
		payload = outbound{Type: string(events.TypeEntityRemoved), Data: map[string]any{
			"id":   string(e.Entity.ID),
			"kind": string(e.Entity.Kind),
		}}
	case events.SceneLoaded:
		payload = outbound{Type: string(events.TypeSceneLoaded), Data: map[string]any{
			"id":   e.SceneID,
			"name": e.Name,
		}}
	case events.SceneUnloaded:
		payload = outbound{Type: string(events.TypeSceneUnloaded), Data: map[string]any{
			"id": e.SceneID,
		}}
	case events.ActionProcessed:
		payload = outbound{Type: string(events.TypeActionProcessed), Data: map[string]any{
			"action":  e.Action,
			"userId":  e.UserID,
			"success": e.Success,
			"code":    e.Code,
		}}
	default:
		return nil
	}
	s.broadcast(payload)
	return nil
}

// broadcast fans an envelope out to every session. Sends only queue, never
// block: a session that cannot drain its backlog disconnects itself, so a
// dead client cannot stall the publisher.
func (s *Server) broadcast(payload outbound) {
	var targets []*session
	s.sessions.Range(func(_, v any) bool {
		targets = append(targets, v.(*session))
		return true
	})
	if len(targets) == 0 {
		return
	}
	concurrent.ParallelMute(sequence.From(targets), func(sess *session) error {
		return sess.send(payload)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"running":  s.engine.IsRunning(),
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.engine.Stats())
}
