package mocks

import (
	"time"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

func Ptr[T any](v T) *T { return &v }

// CreateTestUser builds a user with an optional school and linked profile.
func CreateTestUser(id string, role domain.Role, schoolID, linkedID string) *domain.User {
	u := &domain.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "User " + id,
		Role:      role,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if schoolID != "" {
		u.SchoolID = Ptr(schoolID)
	}
	if linkedID != "" {
		u.LinkedID = Ptr(linkedID)
	}
	return u
}

// CreateTestEvent builds an event with a fixed timestamp.
func CreateTestEvent(kind domain.EventKind, subject domain.SubjectType, subjectID, actorID string) domain.Event {
	return domain.Event{
		Kind:        kind,
		SubjectType: subject,
		SubjectID:   subjectID,
		ActorID:     actorID,
		OccurredAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
