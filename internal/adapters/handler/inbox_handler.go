package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

type InboxHandler struct {
	inbox  ports.InboxService
	logger *zap.Logger
}

func NewInboxHandler(inbox ports.InboxService, logger *zap.Logger) *InboxHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxHandler{inbox: inbox, logger: logger}
}

type listResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_limit", "")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_offset", "")
		return
	}

	items, err := h.inbox.List(r.Context(), actor.UserID, limit, offset)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, listResponse{Notifications: items, Limit: limit, Offset: offset})
}

func (h *InboxHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	n, err := h.inbox.UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]int{"count": n})
}

func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	err := h.inbox.MarkRead(r.Context(), actor.UserID, chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotificationNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "notification_not_found", "")
		return
	}
	if err != nil {
		h.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InboxHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())

	n, err := h.inbox.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]int64{"updated": n})
}

func (h *InboxHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotificationStoreUnavailable) {
		writeError(w, h.logger, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}
	h.logger.Error("inbox request failed", zap.Error(err))
	writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "")
}
