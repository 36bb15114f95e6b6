package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
	"github.com/xenwatch/identity-notify-service/internal/detach"
	"github.com/xenwatch/identity-notify-service/internal/metrics"
)

const defaultFanoutConcurrency = 8

// Report summarises one handled event.
type Report struct {
	Event domain.EventKind `json:"event"`
	// Ignored is set when the event is a no-op, such as a draft review.
	Ignored    bool `json:"ignored,omitempty"`
	Recipients int  `json:"recipients"`
	Excluded   int  `json:"excluded"`
	Created    int  `json:"created"`
	Duplicates int  `json:"duplicates"`
	Failed     int  `json:"failed"`
}

// FanoutService turns domain events into per-recipient notifications using
// the rules in catalog.
type FanoutService struct {
	recipients ports.RecipientRepository
	users      ports.UserRepository
	dedup      *Deduplicator
	publisher  ports.NotificationPublisher
	runner     *detach.Runner
	limit      int
	logger     *zap.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

var _ ports.EventDispatcher = (*FanoutService)(nil)

// NewFanoutService wires the engine. publisher may be nil.
func NewFanoutService(
	recipients ports.RecipientRepository,
	users ports.UserRepository,
	dedup *Deduplicator,
	publisher ports.NotificationPublisher,
	runner *detach.Runner,
	concurrency int,
	logger *zap.Logger,
	m *metrics.Collector,
) *FanoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = detach.NewRunner(logger, m)
	}
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	return &FanoutService{
		recipients: recipients,
		users:      users,
		dedup:      dedup,
		publisher:  publisher,
		runner:     runner,
		limit:      concurrency,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Dispatch hands evt to a detached task and returns immediately. The only
// error is for an event kind without a rule.
func (s *FanoutService) Dispatch(ctx context.Context, evt domain.Event) error {
	if !Known(evt.Kind) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, evt.Kind)
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now().UTC()
	}
	s.runner.Go(ctx, "fanout."+string(evt.Kind), func(ctx context.Context) error {
		_, err := s.Handle(ctx, evt)
		return err
	})
	return nil
}

// Handle processes evt synchronously. Per-recipient failures are counted in
// the report and never abort the remaining recipients; the returned error
// covers unknown kinds and audiences that could not be computed.
func (s *FanoutService) Handle(ctx context.Context, evt domain.Event) (Report, error) {
	report := Report{Event: evt.Kind}
	r, ok := catalog[evt.Kind]
	if !ok {
		return report, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, evt.Kind)
	}
	// The subject type is part of the dedup key and always comes from the kind.
	evt.SubjectType = evt.Kind.SubjectType()
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now().UTC()
	}
	s.metrics.FanoutEvent(string(evt.Kind))

	if r.skip != nil && r.skip(&evt) {
		report.Ignored = true
		return report, nil
	}

	s.enrichActor(ctx, &evt)
	if r.enrich != nil {
		if err := r.enrich(ctx, s, &evt); err != nil {
			return report, err
		}
	}

	var errs []error
	for _, l := range r.legs {
		if err := s.runLeg(ctx, &evt, l, &report); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("event fanned out",
		zap.String("event", string(evt.Kind)),
		zap.String("subject_id", evt.SubjectID),
		zap.Int("recipients", report.Recipients),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report, errors.Join(errs...)
}

func (s *FanoutService) runLeg(ctx context.Context, evt *domain.Event, l leg, report *Report) error {
	ids, err := s.audience(ctx, evt, l)
	if err != nil {
		s.logger.Error("failed to compute recipients",
			zap.String("event", string(evt.Kind)),
			zap.String("kind", string(l.kind)),
			zap.Error(err),
		)
		return fmt.Errorf("recipients for %s: %w", l.kind, err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.limit)
	for _, id := range ids {
		if l.excludeActor && id == evt.ActorID {
			report.Excluded++
			continue
		}
		report.Recipients++
		g.Go(func() error {
			outcome, err := s.deliver(ctx, evt, l, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
			case outcome == Created:
				report.Created++
			default:
				report.Duplicates++
			}
			return nil
		})
	}
	return g.Wait()
}

// audience is the de-duplicated union of every source of l.
func (s *FanoutService) audience(ctx context.Context, evt *domain.Event, l leg) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, src := range l.sources {
		found, err := src(ctx, s, evt)
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *FanoutService) deliver(ctx context.Context, evt *domain.Event, l leg, recipientID string) (CreateOutcome, error) {
	msg := l.render(evt, recipientID)
	n := &domain.Notification{
		RecipientID: recipientID,
		Kind:        l.kind,
		SubjectType: evt.SubjectType,
		SubjectID:   evt.SubjectID,
		Title:       msg.title,
		Message:     msg.body,
		Metadata:    msg.metadata,
	}
	if l.perActor && evt.ActorID != "" {
		actorID := evt.ActorID
		n.RelatedActorID = &actorID
	}

	outcome, err := s.dedup.CreateIfAbsent(ctx, n)
	if err != nil {
		s.metrics.NotificationFailed(string(l.kind))
		s.logger.Warn("failed to create notification",
			zap.String("kind", string(l.kind)),
			zap.String("recipient_id", recipientID),
			zap.String("subject_id", evt.SubjectID),
			zap.Error(err),
		)
		return outcome, err
	}
	if outcome == SkippedDuplicate {
		s.metrics.NotificationSkipped(string(l.kind))
		return outcome, nil
	}

	s.metrics.NotificationCreated(string(l.kind))
	s.publish(ctx, n)
	return outcome, nil
}

func (s *FanoutService) publish(ctx context.Context, n *domain.Notification) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishNotificationCreated(ctx, ports.NotificationCreatedEvent{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Kind:           string(n.Kind),
		SubjectType:    string(n.SubjectType),
		SubjectID:      n.SubjectID,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to publish notification",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

// enrichActor fills the actor's name and role when the trigger did not
// supply them. Lookup failures only cost message quality.
func (s *FanoutService) enrichActor(ctx context.Context, evt *domain.Event) {
	if evt.ActorID == "" || s.users == nil {
		return
	}
	if evt.Payload.ActorName != "" && evt.Payload.ActorRole != "" {
		return
	}
	u, err := s.users.GetUser(ctx, evt.ActorID)
	if err != nil {
		s.logger.Debug("actor lookup failed", zap.String("actor_id", evt.ActorID), zap.Error(err))
		return
	}
	if u == nil {
		return
	}
	if evt.Payload.ActorName == "" {
		evt.Payload.ActorName = u.Name
	}
	if evt.Payload.ActorRole == "" {
		evt.Payload.ActorRole = u.Role
	}
}

// Event triggers. Each returns immediately; delivery happens in a detached
// task.

func (s *FanoutService) PostPublished(ctx context.Context, postID, studentID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventPostPublished,
		SubjectType: domain.SubjectPost,
		SubjectID:   postID,
		ActorID:     studentID,
	})
}

func (s *FanoutService) SubmissionCreated(ctx context.Context, submissionID, studentID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventSubmissionCreated,
		SubjectType: domain.SubjectSubmission,
		SubjectID:   submissionID,
		ActorID:     studentID,
	})
}

func (s *FanoutService) ReviewSubmitted(ctx context.Context, submissionID, reviewerID string, isFinal bool) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventReviewSubmitted,
		SubjectType: domain.SubjectSubmission,
		SubjectID:   submissionID,
		ActorID:     reviewerID,
		Payload:     domain.EventPayload{IsFinal: isFinal},
	})
}

func (s *FanoutService) SubmissionFinalized(ctx context.Context, submissionID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventSubmissionFinalized,
		SubjectType: domain.SubjectSubmission,
		SubjectID:   submissionID,
	})
}

// ScoutCreated notifies scout admins. creatorID is excluded from the audience
// and may be empty.
func (s *FanoutService) ScoutCreated(ctx context.Context, scoutUserID, name, creatorID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventScoutCreated,
		SubjectType: domain.SubjectUser,
		SubjectID:   scoutUserID,
		ActorID:     creatorID,
		Payload:     domain.EventPayload{Name: name},
	})
}

func (s *FanoutService) SchoolCreated(ctx context.Context, schoolID, name string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventSchoolCreated,
		SubjectType: domain.SubjectSchool,
		SubjectID:   schoolID,
		Payload:     domain.EventPayload{Name: name, SchoolID: schoolID},
	})
}

func (s *FanoutService) SchoolAdminCreated(ctx context.Context, adminUserID, name, schoolID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventSchoolAdminCreated,
		SubjectType: domain.SubjectUser,
		SubjectID:   adminUserID,
		Payload:     domain.EventPayload{Name: name, SchoolID: schoolID},
	})
}

func (s *FanoutService) XenScoutCreated(ctx context.Context, userID, name string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventXenScoutCreated,
		SubjectType: domain.SubjectUser,
		SubjectID:   userID,
		Payload:     domain.EventPayload{Name: name},
	})
}

func (s *FanoutService) ScoutAdminCreated(ctx context.Context, userID, name string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventScoutAdminCreated,
		SubjectType: domain.SubjectUser,
		SubjectID:   userID,
		Payload:     domain.EventPayload{Name: name},
	})
}

// SchoolPayment describes a recorded payment. The limit and frequency pairs
// are only set for the payment types that change them.
type SchoolPayment struct {
	PaymentRecordID string
	SchoolID        string
	Amount          float64
	Frequency       domain.BillingFrequency
	PaymentType     domain.PaymentType
	BeforeLimit     *int
	AfterLimit      *int
	OldFrequency    domain.BillingFrequency
	NewFrequency    domain.BillingFrequency
}

func (s *FanoutService) SchoolPaymentRecorded(ctx context.Context, p SchoolPayment) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventSchoolPaymentRecorded,
		SubjectType: domain.SubjectSchoolPayment,
		SubjectID:   p.PaymentRecordID,
		Payload: domain.EventPayload{
			SchoolID:     p.SchoolID,
			Amount:       p.Amount,
			Frequency:    p.Frequency,
			PaymentType:  p.PaymentType,
			BeforeLimit:  p.BeforeLimit,
			AfterLimit:   p.AfterLimit,
			OldFrequency: p.OldFrequency,
			NewFrequency: p.NewFrequency,
		},
	})
}

func (s *FanoutService) FormCreated(ctx context.Context, formID, name, creatorID string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventFormCreated,
		SubjectType: domain.SubjectEvaluationForm,
		SubjectID:   formID,
		ActorID:     creatorID,
		Payload:     domain.EventPayload{Name: name, FormID: formID},
	})
}

// FormSubmitted notifies admins of a submitted evaluation. studentName may be
// empty.
func (s *FanoutService) FormSubmitted(ctx context.Context, submissionID, formID, name, submitterID, submitterName, studentName string) {
	s.trigger(ctx, domain.Event{
		Kind:        domain.EventFormSubmitted,
		SubjectType: domain.SubjectFormSubmission,
		SubjectID:   submissionID,
		ActorID:     submitterID,
		Payload: domain.EventPayload{
			Name:        name,
			FormID:      formID,
			ActorName:   submitterName,
			StudentName: studentName,
		},
	})
}

// ExpiringEvent builds the subscription_expiring event for sub. The subject
// is the billing period, so a renewed subscription warns again.
func ExpiringEvent(sub domain.SchoolSubscription, now time.Time) domain.Event {
	expiresAt := sub.ExpiresAt
	return domain.Event{
		Kind:        domain.EventSubscriptionExpiring,
		SubjectType: domain.SubjectSubscription,
		SubjectID:   sub.PeriodKey(),
		OccurredAt:  now,
		Payload: domain.EventPayload{
			SchoolID:       sub.SchoolID,
			SchoolName:     sub.SchoolName,
			Frequency:      sub.Frequency,
			SubscriptionID: sub.ID,
			ExpiresAt:      &expiresAt,
		},
	}
}

func (s *FanoutService) SubscriptionExpiring(ctx context.Context, sub domain.SchoolSubscription) {
	s.trigger(ctx, ExpiringEvent(sub, s.now().UTC()))
}

func (s *FanoutService) trigger(ctx context.Context, evt domain.Event) {
	if err := s.Dispatch(ctx, evt); err != nil {
		s.logger.Error("failed to dispatch event", zap.String("event", string(evt.Kind)), zap.Error(err))
	}
}
