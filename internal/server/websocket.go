package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/simforge/simforge/internal/core/actions"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/gameplay"
	"github.com/simforge/simforge/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// sessionQueueSize bounds the per-session outbound backlog. A client
	// that falls this far behind gets disconnected.
	sessionQueueSize = 64

	sessionWriteTimeout = 10 * time.Second
)

// session is one connected client, websocket or QUIC. All writes go through
// a bounded queue drained by writeLoop, so a slow or dead peer can never
// block the caller.
type session struct {
	id        string
	userID    string
	role      string
	guest     bool
	transport string

	playerID entity.ID

	out  chan outbound
	done chan struct{}
	once sync.Once

	writeFn    func(v any) error
	deadlineFn func(time.Time) error
	closeFn    func()
}

func newSession(userID, role string, guest bool, transport string) *session {
	return &session{
		id:        uuid.NewString(),
		userID:    userID,
		role:      role,
		guest:     guest,
		transport: transport,
		out:       make(chan outbound, sessionQueueSize),
		done:      make(chan struct{}),
	}
}

// send queues a payload without blocking. A full queue means the consumer
// cannot keep up; it gets disconnected instead of stalling the engine.
func (s *session) send(payload outbound) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- payload:
		return nil
	default:
		s.close()
		return ErrSessionBacklogged
	}
}

// writeLoop owns the connection writes. Every write carries a deadline so a
// dead peer cannot hold the goroutine past sessionWriteTimeout.
func (s *session) writeLoop(logger log.Log) {
	for {
		select {
		case payload := <-s.out:
			if s.deadlineFn != nil {
				_ = s.deadlineFn(time.Now().Add(sessionWriteTimeout))
			}
			if err := s.writeFn(payload); err != nil {
				logger.Warn("Session write failed",
					log.String("session_id", s.id),
					log.Error(err))
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeFn()
		}
	})
}

func (s *session) actionContext() actions.Context {
	return actions.Context{
		UserID: s.userID,
		Role:   s.role,
		Guest:  s.guest,
		At:     time.Now(),
	}
}

func (s *session) request(env Envelope) actions.Request {
	return actions.Request{Type: env.Type, Data: env.Data, Ctx: s.actionContext()}
}

// identityFromQuery reads the client identity off the handshake URL. The
// user parameter is mandatory; role and guest are optional claims.
func identityFromQuery(r *http.Request) (userID, role string, guest bool, err error) {
	q := r.URL.Query()
	userID = q.Get("user")
	if userID == "" {
		return "", "", false, ErrIdentityRequired
	}
	role = q.Get("role")
	guest = q.Get("guest") == "true"
	return userID, role, guest, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, role, guest, err := identityFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	sess := newSession(userID, role, guest, "websocket")
	sess.writeFn = conn.WriteJSON
	sess.deadlineFn = conn.SetWriteDeadline
	sess.closeFn = func() { _ = conn.Close() }

	player, err := gameplay.SpawnPlayer(s.engine, userID, mgl64.Vec3{})
	if err != nil {
		s.logger.Error("Player spawn failed", log.String("user_id", userID), log.Error(err))
		_ = conn.WriteJSON(errorEnvelope("world is full"))
		_ = conn.Close()
		return
	}
	sess.playerID = player.ID

	go sess.writeLoop(s.logger)

	s.addSession(sess)
	defer func() {
		s.dropSession(sess)
		sess.close()
	}()

	_ = sess.send(outbound{Type: TypeWelcome, Data: map[string]any{
		"sessionId": sess.id,
		"playerId":  string(player.ID),
	}})

	for {
		var env Envelope
		if err = conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Websocket read failed", log.String("session_id", sess.id), log.Error(err))
			}
			return
		}
		if err = sess.send(s.dispatch(r.Context(), sess, env)); err != nil {
			s.logger.Warn("Websocket write failed", log.String("session_id", sess.id), log.Error(err))
			return
		}
	}
}
