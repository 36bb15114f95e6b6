package services

import (
	"context"
	"fmt"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

// recipientSource computes one slice of an event's audience.
type recipientSource func(ctx context.Context, s *FanoutService, evt *domain.Event) ([]string, error)

type message struct {
	title    string
	body     string
	metadata map[string]any
}

// leg produces one notification kind for one audience.
type leg struct {
	kind    domain.NotificationKind
	sources []recipientSource
	// excludeActor drops the event's actor from the audience.
	excludeActor bool
	// perActor stores the actor as relatedActorId, making the actor part of
	// the dedup key.
	perActor bool
	render   func(evt *domain.Event, recipientID string) message
}

type rule struct {
	// skip short-circuits events that must not notify anyone.
	skip   func(evt *domain.Event) bool
	enrich func(ctx context.Context, s *FanoutService, evt *domain.Event) error
	legs   []leg
}

var scouts = []domain.Role{domain.RoleScoutAdmin, domain.RoleXenScout}

var catalog = map[domain.EventKind]rule{
	domain.EventPostPublished: {
		legs: []leg{{
			kind:         domain.KindPostPublished,
			sources:      []recipientSource{followersOfActor},
			excludeActor: true,
			render:       renderPostPublished,
		}},
	},
	domain.EventSubmissionCreated: {
		legs: []leg{
			{
				kind:    domain.KindSubmissionCreated,
				sources: []recipientSource{usersByRoles(scouts...)},
				render:  renderSubmissionCreated,
			},
			{
				kind:    domain.KindSubmissionReceived,
				sources: []recipientSource{actor},
				render:  renderSubmissionReceived,
			},
		},
	},
	domain.EventReviewSubmitted: {
		skip:   func(evt *domain.Event) bool { return !evt.Payload.IsFinal },
		enrich: loadSubmission,
		legs: []leg{{
			kind:         domain.KindReviewSubmitted,
			sources:      []recipientSource{usersByRoles(scouts...)},
			excludeActor: true,
			perActor:     true,
			render:       renderReviewSubmitted,
		}},
	},
	domain.EventSubmissionFinalized: {
		enrich: loadSubmission,
		legs: []leg{
			{
				kind:    domain.KindSubmissionFinalized,
				sources: []recipientSource{usersByRoles(scouts...)},
				render:  renderSubmissionFinalized,
			},
			{
				kind:    domain.KindSubmissionFeedbackReady,
				sources: []recipientSource{submissionOwner},
				render:  renderFeedbackReady,
			},
		},
	},
	domain.EventScoutCreated: {
		legs: []leg{{
			kind:         domain.KindScoutCreated,
			sources:      []recipientSource{usersByRoles(domain.RoleScoutAdmin)},
			excludeActor: true,
			render:       renderScoutCreated,
		}},
	},
	domain.EventSchoolCreated: {
		legs: []leg{{
			kind:    domain.KindSchoolCreated,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin)},
			render:  renderSchoolCreated,
		}},
	},
	domain.EventSchoolAdminCreated: {
		enrich: loadSchoolName,
		legs: []leg{{
			kind:    domain.KindSchoolAdminCreated,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin)},
			render:  renderSchoolAdminCreated,
		}},
	},
	domain.EventXenScoutCreated: {
		legs: []leg{{
			kind:    domain.KindXenScoutCreated,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin)},
			render:  renderStaffCreated("New XEN scout", "XEN scout"),
		}},
	},
	domain.EventScoutAdminCreated: {
		legs: []leg{{
			kind:    domain.KindScoutAdminCreated,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin)},
			render:  renderStaffCreated("New scout admin", "scout admin"),
		}},
	},
	domain.EventSchoolPaymentRecorded: {
		enrich: loadSchoolName,
		legs: []leg{{
			kind:    domain.KindSchoolPaymentRecorded,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin), schoolAdmins},
			render:  renderPaymentRecorded,
		}},
	},
	domain.EventFormCreated: {
		legs: []leg{{
			kind: domain.KindFormCreated,
			sources: []recipientSource{
				usersByRoles(domain.RoleSystemAdmin, domain.RoleScoutAdmin, domain.RoleXenScout),
			},
			excludeActor: true,
			render:       renderFormCreated,
		}},
	},
	domain.EventFormSubmitted: {
		legs: []leg{{
			kind: domain.KindFormSubmitted,
			sources: []recipientSource{
				usersByRoles(domain.RoleSystemAdmin, domain.RoleScoutAdmin),
				scoutActor,
			},
			render: renderFormSubmitted,
		}},
	},
	domain.EventSubscriptionExpiring: {
		enrich: loadSchoolName,
		legs: []leg{{
			kind:    domain.KindSubscriptionExpiring,
			sources: []recipientSource{usersByRoles(domain.RoleSystemAdmin), schoolAdmins},
			render:  renderSubscriptionExpiring,
		}},
	},
}

// Known reports whether kind has a fan-out rule.
func Known(kind domain.EventKind) bool {
	_, ok := catalog[kind]
	return ok
}

func usersByRoles(roles ...domain.Role) recipientSource {
	return func(ctx context.Context, s *FanoutService, _ *domain.Event) ([]string, error) {
		return s.recipients.UserIDsByRoles(ctx, roles...)
	}
}

func followersOfActor(ctx context.Context, s *FanoutService, evt *domain.Event) ([]string, error) {
	if evt.ActorID == "" {
		return nil, nil
	}
	return s.recipients.FollowerIDs(ctx, evt.ActorID)
}

func actor(_ context.Context, _ *FanoutService, evt *domain.Event) ([]string, error) {
	if evt.ActorID == "" {
		return nil, nil
	}
	return []string{evt.ActorID}, nil
}

func scoutActor(ctx context.Context, s *FanoutService, evt *domain.Event) ([]string, error) {
	if !evt.Payload.ActorRole.IsScout() {
		return nil, nil
	}
	return actor(ctx, s, evt)
}

func submissionOwner(_ context.Context, _ *FanoutService, evt *domain.Event) ([]string, error) {
	if evt.Payload.OwnerID == "" {
		return nil, nil
	}
	return []string{evt.Payload.OwnerID}, nil
}

func schoolAdmins(ctx context.Context, s *FanoutService, evt *domain.Event) ([]string, error) {
	if evt.Payload.SchoolID == "" {
		return nil, nil
	}
	return s.recipients.SchoolAdminIDs(ctx, evt.Payload.SchoolID)
}

func loadSubmission(ctx context.Context, s *FanoutService, evt *domain.Event) error {
	sum, err := s.recipients.SubmissionSummary(ctx, evt.SubjectID)
	if err != nil {
		return fmt.Errorf("load submission %s: %w", evt.SubjectID, err)
	}
	if sum == nil {
		return nil
	}
	evt.Payload.OwnerID = sum.OwnerID
	if evt.Payload.StudentName == "" {
		evt.Payload.StudentName = sum.StudentName
	}
	if evt.Payload.Rating == nil {
		evt.Payload.Rating = sum.Rating
	}
	return nil
}

func loadSchoolName(ctx context.Context, s *FanoutService, evt *domain.Event) error {
	if evt.Payload.SchoolName != "" || evt.Payload.SchoolID == "" {
		return nil
	}
	name, err := s.recipients.SchoolName(ctx, evt.Payload.SchoolID)
	if err != nil {
		return fmt.Errorf("load school %s: %w", evt.Payload.SchoolID, err)
	}
	evt.Payload.SchoolName = name
	return nil
}
