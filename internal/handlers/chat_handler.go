package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/application"
	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/middleware"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/transport"
)

const (
	errInvalidBody = "invalid_body"
	msgInvalidJSON = "invalid json"
	maxBodyBytes   = 1 << 20
)

// ChatService is the application surface the HTTP handlers drive.
type ChatService interface {
	GetOrCreateConversation(ctx context.Context, cmd application.GetOrCreateConversationCommand) (*domain.ConversationView, error)
	ListConversations(ctx context.Context, userID string) ([]*domain.ConversationView, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]*domain.MessageView, error)
	SendMessage(ctx context.Context, cmd application.SendMessageCommand) (*domain.MessageView, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	SoftDelete(ctx context.Context, userID string, ids []string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		transport.WriteError(w, http.StatusBadRequest, errInvalidBody, msgInvalidJSON)
		return false
	}
	return true
}

// CreateConversation POST /conversations
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID string `json:"recipientId"`
		PropertyID  string `json:"propertyId"`
	}
	if !decode(w, r, &req) {
		return
	}

	view, err := h.svc.GetOrCreateConversation(r.Context(), application.GetOrCreateConversationCommand{
		SenderID:    middleware.UserID(r.Context()),
		RecipientID: req.RecipientID,
		PropertyID:  req.PropertyID,
	})
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, view)
}

// ListConversations GET /conversations
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListConversations(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, views)
}

// ListMessages GET /conversations/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListMessages(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, views)
}

// SendMessage POST /messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID  string              `json:"conversationId"`
		Content         string              `json:"content"`
		Attachments     []domain.Attachment `json:"attachments"`
		ClientMessageID string              `json:"clientMessageId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ClientMessageID == "" {
		req.ClientMessageID = r.Header.Get("Idempotency-Key")
	}

	view, err := h.svc.SendMessage(r.Context(), application.SendMessageCommand{
		SenderID:        middleware.UserID(r.Context()),
		ConversationID:  req.ConversationID,
		Content:         req.Content,
		Attachments:     req.Attachments,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, view)
}

type messageIDsRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// decodeIDs is lenient: a missing or unparsable body is an empty id list,
// so bulk read/delete always answers 200.
func decodeIDs(w http.ResponseWriter, r *http.Request) []string {
	var req messageIDsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			observability.GetLogger(r.Context()).Debug("ignoring unparsable id list", zap.Error(err))
		}
		return []string{}
	}
	if req.MessageIDs == nil {
		return []string{}
	}
	return req.MessageIDs
}

// MarkRead PUT /messages/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ids := decodeIDs(w, r)
	n, err := h.svc.MarkRead(r.Context(), middleware.UserID(r.Context()), ids)
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Messages marked as read",
		"updated": n,
	})
}

// DeleteMessages DELETE /messages
func (h *ChatHandler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	ids := decodeIDs(w, r)
	n, err := h.svc.SoftDelete(r.Context(), middleware.UserID(r.Context()), ids)
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Messages deleted successfully",
		"updated": n,
	})
}

// UnreadCount GET /messages/unread-count
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		transport.Error(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]int{"unreadCount": n})
}
