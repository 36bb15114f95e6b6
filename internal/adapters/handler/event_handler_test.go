package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

func TestEventHandler_Publish(t *testing.T) {
	valid := `{"kind":"school_created","subject_type":"school","subject_id":"s1","payload":{"name":"Ridgeview High"}}`
	untyped := `{"kind":"school_created","subject_id":"s1","payload":{"name":"Ridgeview High"}}`

	tests := []struct {
		name        string
		role        domain.Role
		body        string
		dispatchErr error
		wantStatus  int
		wantEvents  int
	}{
		{name: "system_admin_accepted", role: domain.RoleSystemAdmin, body: valid, wantStatus: http.StatusAccepted, wantEvents: 1},
		{name: "service_accepted", role: middleware.RoleService, body: valid, wantStatus: http.StatusAccepted, wantEvents: 1},
		{name: "viewer_forbidden", role: domain.RoleViewer, body: valid, wantStatus: http.StatusForbidden},
		{name: "malformed_json", role: domain.RoleSystemAdmin, body: `{"kind":`, wantStatus: http.StatusBadRequest},
		{name: "missing_subject", role: domain.RoleSystemAdmin, body: `{"kind":"school_created"}`, wantStatus: http.StatusBadRequest},
		{name: "subject_type_filled_from_kind", role: domain.RoleSystemAdmin, body: untyped, wantStatus: http.StatusAccepted, wantEvents: 1},
		{
			name:       "mismatched_subject_type",
			role:       domain.RoleSystemAdmin,
			body:       `{"kind":"school_created","subject_type":"user","subject_id":"s1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "unknown_kind",
			role:        domain.RoleSystemAdmin,
			body:        `{"kind":"party_started","subject_id":"x"}`,
			dispatchErr: fmt.Errorf("%w: %q", domain.ErrUnknownEvent, "party_started"),
			wantStatus:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			s := newTestServer(t)
			s.dispatcher.err = tt.dispatchErr

			// ACT
			rec := s.do(t, http.MethodPost, "/internal/events", tt.body, "caller-1", tt.role)

			// ASSERT
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if len(s.dispatcher.events) != tt.wantEvents {
				t.Fatalf("expected %d dispatched events, got %d", tt.wantEvents, len(s.dispatcher.events))
			}
			if tt.wantEvents > 0 {
				evt := s.dispatcher.events[0]
				if evt.Kind != domain.EventSchoolCreated || evt.SubjectID != "s1" || evt.Payload.Name != "Ridgeview High" {
					t.Errorf("unexpected event %+v", evt)
				}
				if evt.SubjectType != domain.SubjectSchool {
					t.Errorf("expected subject type %s, got %q", domain.SubjectSchool, evt.SubjectType)
				}
			}
		})
	}
}
