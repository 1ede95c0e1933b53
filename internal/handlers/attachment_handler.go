package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/blob"
	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/middleware"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/transport"
)

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (*blob.Object, error)
}

type AttachmentHandler struct {
	store    BlobStore
	maxBytes int64
}

func NewAttachmentHandler(store BlobStore, maxUploadMB int64) *AttachmentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &AttachmentHandler{store: store, maxBytes: maxUploadMB << 20}
}

// Upload POST /attachments (multipart field "file")
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		transport.WriteError(w, http.StatusServiceUnavailable, "unavailable", "attachment storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			transport.WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds the upload limit")
			return
		}
		transport.WriteError(w, http.StatusBadRequest, errInvalidBody, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		transport.WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds the upload limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	userID := middleware.UserID(r.Context())
	key := blob.ObjectKey(userID, header.Filename)
	obj, err := h.store.Put(r.Context(), key, contentType, file)
	if err != nil {
		observability.GetLogger(r.Context()).Error("attachment upload failed", zap.String("key", key), zap.Error(err))
		transport.WriteError(w, http.StatusBadGateway, "upload_failed", "could not store attachment")
		return
	}

	transport.WriteJSON(w, http.StatusCreated, domain.Attachment{
		Kind:        domain.KindForContentType(contentType),
		URL:         obj.URL,
		StorageID:   obj.Key,
		DisplayName: filepath.Base(header.Filename),
	})
}
