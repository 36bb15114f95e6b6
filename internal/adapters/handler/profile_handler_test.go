package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

func TestProfileHandler_Me(t *testing.T) {
	tests := []struct {
		name       string
		loginErr   error
		profile    *domain.Profile
		wantStatus int
		wantCode   string
	}{
		{
			name:       "resolved_profile",
			profile:    &domain.Profile{ID: "student-1", UserID: "u1", Role: domain.RoleStudent},
			wantStatus: http.StatusOK,
		},
		{
			name:       "minimal_profile_is_served",
			profile:    &domain.Profile{ID: "u1", UserID: "u1", Role: domain.RoleViewer, Minimal: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "student_without_school_has_no_session",
			loginErr:   domain.ErrStudentWithoutSchool,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "session_invalid",
		},
		{
			name:       "deleted_account_has_no_session",
			loginErr:   domain.ErrUserNotFound,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "session_invalid",
		},
		{
			name:       "storage_failure",
			loginErr:   errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			s := newTestServer(t)
			s.identity.loginFn = func(ctx context.Context, userID string) (*domain.Profile, error) {
				if userID != "u1" {
					t.Errorf("expected caller u1, got %s", userID)
				}
				return tt.profile, tt.loginErr
			}

			// ACT
			rec := s.do(t, http.MethodGet, "/me/profile", "", "u1", domain.RoleStudent)

			// ASSERT
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode error: %v", err)
				}
				if body["error"] != tt.wantCode {
					t.Errorf("expected error %q, got %q", tt.wantCode, body["error"])
				}
				return
			}
			var got domain.Profile
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode profile: %v", err)
			}
			if got.ID != tt.profile.ID || got.Minimal != tt.profile.Minimal {
				t.Errorf("unexpected profile %+v", got)
			}
		})
	}
}

func TestProfileHandler_Me_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/me/profile", "", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestProfileHandler_Repair(t *testing.T) {
	tests := []struct {
		name        string
		role        domain.Role
		result      ports.RepairResult
		repairErr   error
		wantStatus  int
		wantOutcome ports.RepairOutcome
	}{
		{
			name:        "adopted",
			role:        domain.RoleSystemAdmin,
			result:      ports.RepairResult{Outcome: ports.RepairAdopted, ProfileID: "school_admin-3"},
			wantStatus:  http.StatusOK,
			wantOutcome: ports.RepairAdopted,
		},
		{
			name:        "unrepairable_is_not_an_error",
			role:        domain.RoleSystemAdmin,
			result:      ports.RepairResult{Outcome: ports.RepairUnrepairable, Reason: "no school affiliation"},
			wantStatus:  http.StatusOK,
			wantOutcome: ports.RepairUnrepairable,
		},
		{
			name:       "unknown_user",
			role:       domain.RoleSystemAdmin,
			repairErr:  domain.ErrUserNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "storage_failure",
			role:       domain.RoleSystemAdmin,
			repairErr:  errors.New("timeout"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "non_admin_forbidden",
			role:       domain.RoleSchoolAdmin,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			s := newTestServer(t)
			var gotUser string
			s.identity.repairFn = func(ctx context.Context, userID string) (ports.RepairResult, error) {
				gotUser = userID
				return tt.result, tt.repairErr
			}

			// ACT
			rec := s.do(t, http.MethodPost, "/admin/users/u42/repair", "", "admin-1", tt.role)

			// ASSERT
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantOutcome == "" {
				return
			}
			if gotUser != "u42" {
				t.Errorf("expected repair of u42, got %q", gotUser)
			}
			var got ports.RepairResult
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode result: %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("expected outcome %s, got %s", tt.wantOutcome, got.Outcome)
			}
		})
	}
}

func TestProfileHandler_Profile(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "user_not_found", err: domain.ErrUserNotFound, wantStatus: http.StatusNotFound},
		{name: "profile_not_found", err: domain.ErrProfileNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.identity.resolveFn = func(ctx context.Context, userID string) (*domain.Profile, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &domain.Profile{ID: "viewer-1", UserID: userID}, nil
			}

			rec := s.do(t, http.MethodGet, "/admin/users/u7/profile", "", "admin-1", domain.RoleSystemAdmin)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
