package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

type ProfileHandler struct {
	identity ports.IdentityService
	logger   *zap.Logger
}

func NewProfileHandler(identity ports.IdentityService, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{identity: identity, logger: logger}
}

// Me resolves the caller's profile the way the login flow does, repairing a
// broken link on the way. A student that cannot be repaired has no usable
// session.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	profile, err := h.identity.ResolveForLogin(r.Context(), actor.UserID)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, profile)
	case errors.Is(err, domain.ErrStudentWithoutSchool):
		writeError(w, h.logger, http.StatusUnauthorized, "session_invalid",
			"student account has no school affiliation; contact your school administrator")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, h.logger, http.StatusUnauthorized, "session_invalid", "account no longer exists")
	default:
		h.logger.Error("profile resolution failed", zap.String("user_id", actor.UserID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "")
	}
}

// Profile returns a user's profile without attempting repair.
func (h *ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := h.identity.ResolveProfile(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, profile)
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, h.logger, http.StatusNotFound, "user_not_found", "")
	case errors.Is(err, domain.ErrProfileNotFound):
		writeError(w, h.logger, http.StatusNotFound, "profile_not_found", err.Error())
	default:
		h.logger.Error("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "")
	}
}

// Repair re-links a user to a role profile. An unrepairable account is a
// normal 200 result carrying the reason.
func (h *ProfileHandler) Repair(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := h.identity.RepairLinkedID(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, result)
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, h.logger, http.StatusNotFound, "user_not_found", "")
	default:
		h.logger.Error("profile repair failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "")
	}
}
