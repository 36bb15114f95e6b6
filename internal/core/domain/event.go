package domain

import "time"

type EventKind string

const (
	EventPostPublished         EventKind = "post_published"
	EventSubmissionCreated     EventKind = "submission_created"
	EventReviewSubmitted       EventKind = "review_submitted"
	EventSubmissionFinalized   EventKind = "submission_finalized"
	EventScoutCreated          EventKind = "scout_created"
	EventSchoolCreated         EventKind = "school_created"
	EventSchoolAdminCreated    EventKind = "school_admin_created"
	EventXenScoutCreated       EventKind = "xen_scout_created"
	EventScoutAdminCreated     EventKind = "scout_admin_created"
	EventSchoolPaymentRecorded EventKind = "school_payment_recorded"
	EventFormCreated           EventKind = "form_created"
	EventFormSubmitted         EventKind = "form_submitted"
	EventSubscriptionExpiring  EventKind = "subscription_expiring"
)

var eventSubjects = map[EventKind]SubjectType{
	EventPostPublished:         SubjectPost,
	EventSubmissionCreated:     SubjectSubmission,
	EventReviewSubmitted:       SubjectSubmission,
	EventSubmissionFinalized:   SubjectSubmission,
	EventScoutCreated:          SubjectUser,
	EventSchoolCreated:         SubjectSchool,
	EventSchoolAdminCreated:    SubjectUser,
	EventXenScoutCreated:       SubjectUser,
	EventScoutAdminCreated:     SubjectUser,
	EventSchoolPaymentRecorded: SubjectSchoolPayment,
	EventFormCreated:           SubjectEvaluationForm,
	EventFormSubmitted:         SubjectFormSubmission,
	EventSubscriptionExpiring:  SubjectSubscription,
}

// SubjectType returns the entity type events of this kind are about, or ""
// for an unknown kind.
func (k EventKind) SubjectType() SubjectType {
	return eventSubjects[k]
}

// Event is the ephemeral description of a committed state change handed to
// the fan-out engine. It is never persisted except as an outbox payload.
type Event struct {
	ID          string       `json:"id,omitempty"`
	Kind        EventKind    `json:"kind"`
	SubjectType SubjectType  `json:"subject_type"`
	SubjectID   string       `json:"subject_id"`
	ActorID     string       `json:"actor_id,omitempty"`
	Payload     EventPayload `json:"payload"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

type EventPayload struct {
	Name        string `json:"name,omitempty"`
	ActorName   string `json:"actor_name,omitempty"`
	ActorRole   Role   `json:"actor_role,omitempty"`
	SchoolID    string `json:"school_id,omitempty"`
	SchoolName  string `json:"school_name,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	FormID      string `json:"form_id,omitempty"`
	IsFinal     bool   `json:"is_final,omitempty"`

	// Filled from the submission row before recipients are computed.
	OwnerID string   `json:"owner_id,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`

	Amount       float64          `json:"amount,omitempty"`
	Frequency    BillingFrequency `json:"frequency,omitempty"`
	PaymentType  PaymentType      `json:"payment_type,omitempty"`
	BeforeLimit  *int             `json:"before_limit,omitempty"`
	AfterLimit   *int             `json:"after_limit,omitempty"`
	OldFrequency BillingFrequency `json:"old_frequency,omitempty"`
	NewFrequency BillingFrequency `json:"new_frequency,omitempty"`

	SubscriptionID string     `json:"subscription_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type SubmissionSummary struct {
	ID          string
	OwnerID     string
	StudentName string
	Rating      *float64
}
