package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

const maxEventBody = 64 << 10

// EventHandler accepts domain events from other backends and hands them to
// the fan-out engine without waiting for delivery.
type EventHandler struct {
	dispatcher ports.EventDispatcher
	logger     *zap.Logger
}

func NewEventHandler(dispatcher ports.EventDispatcher, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{dispatcher: dispatcher, logger: logger}
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var evt domain.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err := dec.Decode(&evt); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if evt.Kind == "" || evt.SubjectID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_event", "kind and subject_id are required")
		return
	}
	if want := evt.Kind.SubjectType(); want != "" {
		if evt.SubjectType != "" && evt.SubjectType != want {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_event",
				fmt.Sprintf("subject_type for %s must be %s", evt.Kind, want))
			return
		}
		evt.SubjectType = want
	}

	err := h.dispatcher.Dispatch(r.Context(), evt)
	if errors.Is(err, domain.ErrUnknownEvent) {
		writeError(w, h.logger, http.StatusBadRequest, "unknown_event", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("event dispatch failed", zap.String("event", string(evt.Kind)), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{"status": "accepted"})
}
