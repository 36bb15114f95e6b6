package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

var plain = bluemonday.StrictPolicy()

// clean strips markup from user-supplied text before it is interpolated.
func clean(s, fallback string) string {
	out := strings.TrimSpace(html.UnescapeString(plain.Sanitize(s)))
	if out == "" {
		return fallback
	}
	return out
}

func actorName(evt *domain.Event) string {
	return clean(evt.Payload.ActorName, "Someone")
}

func schoolName(evt *domain.Event) string {
	return clean(evt.Payload.SchoolName, "A school")
}

func money(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func renderPostPublished(evt *domain.Event, _ string) message {
	return message{
		title: "New post",
		body:  fmt.Sprintf("%s shared a new post.", actorName(evt)),
	}
}

func renderSubmissionCreated(evt *domain.Event, _ string) message {
	return message{
		title: "New XEN Watch submission",
		body:  fmt.Sprintf("%s submitted a new video for review.", actorName(evt)),
	}
}

func renderSubmissionReceived(_ *domain.Event, _ string) message {
	return message{
		title: "Submission received",
		body:  "Your video submission has been received and is awaiting review.",
	}
}

func renderReviewSubmitted(evt *domain.Event, _ string) message {
	body := fmt.Sprintf("%s submitted a review.", actorName(evt))
	if evt.Payload.StudentName != "" {
		body = fmt.Sprintf("%s submitted a review for %s.", actorName(evt), clean(evt.Payload.StudentName, "a student"))
	}
	return message{title: "Review submitted", body: body}
}

func renderSubmissionFinalized(evt *domain.Event, _ string) message {
	body := "A XEN Watch submission has been finalized."
	if evt.Payload.StudentName != "" {
		body = fmt.Sprintf("The submission from %s has been finalized.", clean(evt.Payload.StudentName, "a student"))
	}
	return message{title: "Submission finalized", body: body}
}

func renderFeedbackReady(evt *domain.Event, _ string) message {
	m := message{
		title: "Your feedback is ready",
		body:  "Your XEN Watch submission has been reviewed.",
	}
	if r := evt.Payload.Rating; r != nil {
		rating := strconv.FormatFloat(*r, 'f', -1, 64)
		m.body = fmt.Sprintf("Your XEN Watch submission has been reviewed. Final rating: %s.", rating)
		m.metadata = map[string]any{"rating": *r}
	}
	return m
}

func renderScoutCreated(evt *domain.Event, _ string) message {
	return message{
		title: "New scout added",
		body:  fmt.Sprintf("%s has joined as a scout.", clean(evt.Payload.Name, "A new scout")),
	}
}

func renderSchoolCreated(evt *domain.Event, _ string) message {
	return message{
		title: "New school registered",
		body:  fmt.Sprintf("%s has been added to the platform.", clean(evt.Payload.Name, "A new school")),
	}
}

func renderSchoolAdminCreated(evt *domain.Event, _ string) message {
	name := clean(evt.Payload.Name, "A new user")
	body := fmt.Sprintf("%s is now a school administrator.", name)
	if evt.Payload.SchoolName != "" {
		body = fmt.Sprintf("%s is now an administrator for %s.", name, schoolName(evt))
	}
	return message{title: "New school admin", body: body}
}

func renderStaffCreated(title, label string) func(*domain.Event, string) message {
	return func(evt *domain.Event, _ string) message {
		return message{
			title: title,
			body:  fmt.Sprintf("%s has been added as a %s.", clean(evt.Payload.Name, "A new user"), label),
		}
	}
}

func renderPaymentRecorded(evt *domain.Event, _ string) message {
	p := evt.Payload
	school := schoolName(evt)
	meta := map[string]any{
		"school_id":    p.SchoolID,
		"payment_type": string(p.PaymentType),
		"amount":       p.Amount,
		"frequency":    string(p.Frequency),
	}

	var m message
	switch p.PaymentType {
	case domain.PaymentInitial:
		m.title = "New subscription payment"
		m.body = fmt.Sprintf("%s paid %s for a %s subscription.", school, money(p.Amount), p.Frequency)
	case domain.PaymentRenewal:
		m.title = "Subscription renewed"
		m.body = fmt.Sprintf("%s renewed its %s subscription for %s.", school, p.Frequency, money(p.Amount))
	case domain.PaymentStudentLimitIncrease, domain.PaymentStudentLimitDecrease:
		verb, title := "raised", "Student limit increased"
		if p.PaymentType == domain.PaymentStudentLimitDecrease {
			verb, title = "lowered", "Student limit decreased"
		}
		m.title = title
		m.body = fmt.Sprintf("%s %s its student limit", school, verb)
		if p.BeforeLimit != nil && p.AfterLimit != nil {
			m.body += fmt.Sprintf(" from %d to %d", *p.BeforeLimit, *p.AfterLimit)
		}
		m.body += fmt.Sprintf(" (%s).", money(p.Amount))
	case domain.PaymentFrequencyChange:
		m.title = "Billing frequency changed"
		m.body = fmt.Sprintf("%s switched billing from %s to %s (%s).",
			school, p.OldFrequency, p.NewFrequency, money(p.Amount))
	default:
		m.title = "Payment recorded"
		m.body = fmt.Sprintf("%s recorded a payment of %s.", school, money(p.Amount))
	}

	if p.BeforeLimit != nil {
		meta["before_limit"] = *p.BeforeLimit
	}
	if p.AfterLimit != nil {
		meta["after_limit"] = *p.AfterLimit
	}
	if p.OldFrequency != "" {
		meta["old_frequency"] = string(p.OldFrequency)
	}
	if p.NewFrequency != "" {
		meta["new_frequency"] = string(p.NewFrequency)
	}
	m.metadata = meta
	return m
}

func renderFormCreated(evt *domain.Event, _ string) message {
	return message{
		title:    "New evaluation form",
		body:     fmt.Sprintf("%s created the evaluation form \"%s\".", actorName(evt), clean(evt.Payload.Name, "Untitled")),
		metadata: map[string]any{"form_id": evt.SubjectID},
	}
}

func renderFormSubmitted(evt *domain.Event, recipientID string) message {
	form := clean(evt.Payload.Name, "an evaluation form")
	target := ""
	if evt.Payload.StudentName != "" {
		target = " for " + clean(evt.Payload.StudentName, "a student")
	}

	m := message{
		title:    "Evaluation form submitted",
		metadata: map[string]any{"form_id": evt.Payload.FormID},
	}
	if recipientID == evt.ActorID {
		m.title = "Evaluation submitted"
		m.body = fmt.Sprintf("You submitted \"%s\"%s.", form, target)
	} else {
		m.body = fmt.Sprintf("%s submitted \"%s\"%s.", actorName(evt), form, target)
	}
	return m
}

func renderSubscriptionExpiring(evt *domain.Event, _ string) message {
	p := evt.Payload
	m := message{
		title: "Subscription expiring soon",
		metadata: map[string]any{
			"school_id": p.SchoolID,
			"frequency": string(p.Frequency),
		},
	}
	if p.SubscriptionID != "" {
		m.metadata["subscription_id"] = p.SubscriptionID
	}
	if p.ExpiresAt == nil {
		m.body = fmt.Sprintf("The %s subscription for %s is about to expire.", p.Frequency, schoolName(evt))
		return m
	}
	days := int(p.ExpiresAt.Sub(evt.OccurredAt).Hours() / 24)
	m.body = fmt.Sprintf("The %s subscription for %s expires on %s (%d days left).",
		p.Frequency, schoolName(evt), p.ExpiresAt.Format(time.DateOnly), days)
	m.metadata["expires_at"] = p.ExpiresAt.UTC().Format(time.RFC3339)
	return m
}
