package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/identity"
	"github.com/Rdemo143/RenTO/internal/observability"
)

type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type ParticipantChecker interface {
	CheckParticipant(ctx context.Context, userID, conversationID string) error
}

type PresenceTracker interface {
	Register(ctx context.Context, userID, sessionID string) error
	Unregister(ctx context.Context, userID, sessionID string) error
	Heartbeat(userID, sessionID string, done <-chan struct{})
}

type HandlerConfig struct {
	FrameRate  float64
	FrameBurst int
}

type Handler struct {
	hub       *Hub
	verifier  TokenVerifier
	access    ParticipantChecker
	presence  PresenceTracker
	publisher *Publisher
	cfg       HandlerConfig
}

// NewHandler wires websocket admission. presence may be nil.
func NewHandler(
	hub *Hub,
	verifier TokenVerifier,
	access ParticipantChecker,
	presence PresenceTracker,
	publisher *Publisher,
	cfg HandlerConfig,
) *Handler {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 5
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = 20
	}
	return &Handler{
		hub:       hub,
		verifier:  verifier,
		access:    access,
		presence:  presence,
		publisher: publisher,
		cfg:       cfg,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}

// ServeHTTP authenticates before upgrading; a rejected client never gets a
// socket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())

	id, err := h.verifier.Verify(identity.TokenFromRequest(r))
	if err != nil {
		observability.RealtimeRejectedTotal.WithLabelValues("unauthorized").Inc()
		msg := "invalid token"
		if errors.Is(err, domain.ErrMissingToken) {
			msg = "missing token"
		}
		writeUnauthorized(w, msg)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade error", zap.Error(err))
		return
	}

	session := NewSession(
		uuid.NewString(),
		id.UserID,
		conn,
		rate.NewLimiter(rate.Limit(h.cfg.FrameRate), h.cfg.FrameBurst),
	)
	h.hub.Join(session, domain.UserRoom(id.UserID))

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.presence.Register(ctx, session.UserID, session.ID); err != nil {
			log.Error("error setting presence online", zap.Error(err))
		}
		cancel()
		h.presence.Heartbeat(session.UserID, session.ID, session.Done())
	}

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	session.Start()
	log.Info("connected", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))

	go h.readLoop(session)
}

func (h *Handler) readLoop(s *Session) {
	defer func() {
		h.hub.Remove(s)
		s.Close()
		if h.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := h.presence.Unregister(ctx, s.UserID, s.ID); err != nil {
				observability.Log.Error("presence: fail to unregister", zap.String("user_id", s.UserID), zap.Error(err))
			}
			cancel()
		}
		observability.Log.Info("disconnected", zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
	}()

	for {
		_, msg, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				observability.Log.Debug("read loop error", zap.String("user_id", s.UserID), zap.Error(err))
			}
			return
		}
		// Any inbound traffic proves liveness.
		_ = s.Conn.SetReadDeadline(time.Now().Add(pongWait))

		if !s.Allow() {
			observability.RealtimeRejectedTotal.WithLabelValues("rate_limited").Inc()
			s.TrySend(errorFrame("rate_limited", "too many frames"))
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.TrySend(errorFrame("bad_frame", "frames must be JSON objects"))
			continue
		}
		h.handleFrame(s, frame)
	}
}

func (h *Handler) handleFrame(s *Session, f ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	propertyID := strings.TrimSpace(f.PropertyID)
	convID := strings.TrimSpace(f.ConversationID)

	switch f.Type {
	case FrameJoinProperty:
		if propertyID == "" {
			s.TrySend(errorFrame("bad_frame", "propertyId is required"))
			return
		}
		h.hub.Join(s, domain.PropertyRoom(propertyID))

	case FrameLeaveProperty:
		h.hub.Leave(s, domain.PropertyRoom(propertyID))

	case FrameJoinConversation:
		if convID == "" {
			s.TrySend(errorFrame("bad_frame", "conversationId is required"))
			return
		}
		if err := h.access.CheckParticipant(ctx, s.UserID, convID); err != nil {
			code := "forbidden"
			if errors.Is(err, domain.ErrNotFound) {
				code = "not_found"
			} else if !errors.Is(err, domain.ErrForbidden) {
				code = "internal"
				observability.Log.Error("participant check failed", zap.String("conversation_id", convID), zap.Error(err))
			}
			observability.RealtimeRejectedTotal.WithLabelValues(code).Inc()
			s.TrySend(errorFrame(code, "cannot join conversation"))
			return
		}
		h.hub.Join(s, domain.ConversationRoom(convID))

	case FrameLeaveConversation:
		h.hub.Leave(s, domain.ConversationRoom(convID))

	case FramePropertyMessage:
		h.propertyMessage(ctx, s, propertyID, f.Content)

	default:
		s.TrySend(errorFrame("unknown_type", "unsupported frame type"))
	}
}

// propertyMessage broadcasts an ephemeral message to everyone watching a
// property. It is not persisted.
func (h *Handler) propertyMessage(ctx context.Context, s *Session, propertyID, content string) {
	room := domain.PropertyRoom(propertyID)
	if propertyID == "" || !h.hub.InRoom(s, room) {
		s.TrySend(errorFrame("forbidden", "join the property chat first"))
		return
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > domain.MaxMessageSize {
		s.TrySend(errorFrame("bad_frame", "content must be 1 to 5000 bytes"))
		return
	}

	err := h.publisher.Publish(ctx, room, domain.EventPropertyMessage, "", PropertyMessage{
		PropertyID: propertyID,
		SenderID:   s.UserID,
		Content:    content,
		SentAt:     time.Now().UTC(),
	})
	if err != nil {
		observability.Log.Warn("property message publish failed", zap.String("room", room), zap.Error(err))
	}
}
