package domain

import "time"

type NotificationKind string

const (
	KindPostPublished           NotificationKind = "post_published"
	KindSubmissionCreated       NotificationKind = "submission_created"
	KindSubmissionReceived      NotificationKind = "submission_received"
	KindReviewSubmitted         NotificationKind = "review_submitted"
	KindSubmissionFinalized     NotificationKind = "submission_finalized"
	KindSubmissionFeedbackReady NotificationKind = "submission_feedback_ready"
	KindScoutCreated            NotificationKind = "scout_created"
	KindSchoolCreated           NotificationKind = "school_created"
	KindSchoolAdminCreated      NotificationKind = "school_admin_created"
	KindXenScoutCreated         NotificationKind = "xen_scout_created"
	KindScoutAdminCreated       NotificationKind = "scout_admin_created"
	KindSchoolPaymentRecorded   NotificationKind = "school_payment_recorded"
	KindFormCreated             NotificationKind = "form_created"
	KindFormSubmitted           NotificationKind = "form_submitted"
	KindSubscriptionExpiring    NotificationKind = "subscription_expiring"
)

type SubjectType string

const (
	SubjectPost           SubjectType = "post"
	SubjectSubmission     SubjectType = "submission"
	SubjectUser           SubjectType = "user"
	SubjectSchool         SubjectType = "school"
	SubjectSchoolPayment  SubjectType = "school_payment"
	SubjectEvaluationForm SubjectType = "evaluation_form"
	SubjectFormSubmission SubjectType = "form_submission"
	SubjectSubscription   SubjectType = "school_subscription"
)

type Notification struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	Kind           NotificationKind `json:"kind"`
	SubjectType    SubjectType      `json:"subject_type"`
	SubjectID      string           `json:"subject_id"`
	RelatedActorID *string          `json:"related_actor_id,omitempty"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	IsRead         bool             `json:"is_read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DedupKey is the natural key of a notification. A nil RelatedActorID matches
// rows with any related actor.
type DedupKey struct {
	RecipientID    string
	SubjectType    SubjectType
	SubjectID      string
	Kind           NotificationKind
	RelatedActorID *string
}

func (n *Notification) Key() DedupKey {
	return DedupKey{
		RecipientID:    n.RecipientID,
		SubjectType:    n.SubjectType,
		SubjectID:      n.SubjectID,
		Kind:           n.Kind,
		RelatedActorID: n.RelatedActorID,
	}
}

// Matches reports whether n falls under key k.
func (k DedupKey) Matches(n *Notification) bool {
	if n.RecipientID != k.RecipientID || n.SubjectType != k.SubjectType ||
		n.SubjectID != k.SubjectID || n.Kind != k.Kind {
		return false
	}
	if k.RelatedActorID == nil {
		return true
	}
	return n.RelatedActorID != nil && *n.RelatedActorID == *k.RelatedActorID
}
