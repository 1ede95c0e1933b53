package realtime

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rdemo143/RenTO/internal/observability"
)

const (
	SendQueueSize = 128
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 16 << 10
	closeOverflow = websocket.CloseTryAgainLater
)

// Session is one websocket connection. A user may hold several.
type Session struct {
	ID     string
	UserID string

	Conn      *websocket.Conn
	SendQueue chan []byte
	done      chan struct{}
	closed    atomic.Int32

	limiter *rate.Limiter
}

func NewSession(id, userID string, conn *websocket.Conn, limiter *rate.Limiter) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Conn:      conn,
		SendQueue: make(chan []byte, SendQueueSize),
		done:      make(chan struct{}),
		limiter:   limiter,
	}
}

func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) IsClosed() bool {
	return s.closed.Load() == 1
}

// Allow reports whether the session may process another inbound frame.
func (s *Session) Allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// TrySend queues a frame without blocking. A full queue means the client
// cannot keep up; the session is closed rather than buffering without bound.
func (s *Session) TrySend(msg []byte) bool {
	if s.IsClosed() {
		return false
	}
	select {
	case s.SendQueue <- msg:
		return true
	default:
		observability.RealtimeRejectedTotal.WithLabelValues("overflow").Inc()
		observability.Log.Warn("session: backpressure overflow, dropping connection",
			zap.String("user_id", s.UserID),
			zap.String("session_id", s.ID),
		)
		s.CloseWithReason(closeOverflow, "backpressure overflow")
		return false
	}
}

func (s *Session) Close() {
	s.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (s *Session) CloseWithReason(code int, reason string) {
	if !s.closed.CompareAndSwap(0, 1) {
		return
	}

	observability.Log.Debug("session: closing",
		zap.String("user_id", s.UserID),
		zap.String("session_id", s.ID),
		zap.Int("code", code),
		zap.String("reason", reason),
	)
	close(s.done)

	if s.Conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.Conn.Close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.SendQueue:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				observability.Log.Debug("session: write error", zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				observability.Log.Debug("session: ping error", zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}
