// Package mocks provides in-memory implementations of the core ports for
// service and handler tests.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// MockUserRepository implements ports.UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Call tracking for verification
	GetUserCalls        []string
	UpdateLinkedIDCalls []string

	// Error injection
	GetUserError        error
	UpdateLinkedIDError error
}

var _ ports.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// SeedUser stores a copy of user.
func (m *MockUserRepository) SeedUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[u.ID] = &u
}

func (m *MockUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetUserCalls = append(m.GetUserCalls, id)
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) UpdateLinkedID(ctx context.Context, userID, linkedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateLinkedIDCalls = append(m.UpdateLinkedIDCalls, userID)
	if m.UpdateLinkedIDError != nil {
		return m.UpdateLinkedIDError
	}
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	id := linkedID
	u.LinkedID = &id
	return nil
}

// LinkedID returns the stored pointer for assertions.
func (m *MockUserRepository) LinkedID(userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[userID]; ok && u.LinkedID != nil {
		return *u.LinkedID
	}
	return ""
}

// MockProfileTable implements ports.ProfileTable. Natural keys match on email
// when the profile carries one, on owner and school when KeyedByOwner is set,
// otherwise on display name within the school.
type MockProfileTable struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	nextID   int
	prefix   string

	// Immutable makes Create fail with domain.ErrRepairImpossible, like the
	// admin directory.
	Immutable bool
	// KeyedByOwner matches profiles by user id and school, like student rows.
	KeyedByOwner bool

	LoadCalls   []string
	CreateCalls []string

	LoadError   error
	FindError   error
	CreateError error
}

var _ ports.ProfileTable = (*MockProfileTable)(nil)

func NewMockProfileTable(prefix string) *MockProfileTable {
	return &MockProfileTable{profiles: make(map[string]*domain.Profile), prefix: prefix}
}

func (m *MockProfileTable) SeedProfile(p *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[cp.ID] = &cp
}

func (m *MockProfileTable) DeleteProfile(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
}

func (m *MockProfileTable) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

func (m *MockProfileTable) Load(ctx context.Context, linkedID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls = append(m.LoadCalls, linkedID)
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	p, ok := m.profiles[linkedID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MockProfileTable) FindByNaturalKey(ctx context.Context, user *domain.User) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	for _, p := range m.profiles {
		if m.matches(p, user) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockProfileTable) Create(ctx context.Context, user *domain.User) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, user.ID)
	if m.Immutable {
		return nil, domain.ErrRepairImpossible
	}
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.nextID++
	p := &domain.Profile{
		ID:          fmt.Sprintf("%s-%d", m.prefix, m.nextID),
		UserID:      user.ID,
		DisplayName: user.Name,
		SchoolID:    user.SchoolID,
	}
	m.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MockProfileTable) matches(p *domain.Profile, u *domain.User) bool {
	if p.Email != "" {
		return p.Email == u.Email
	}
	if m.KeyedByOwner {
		return p.UserID == u.ID && p.SchoolID != nil && u.SchoolID != nil && *p.SchoolID == *u.SchoolID
	}
	if p.DisplayName != u.Name {
		return false
	}
	if p.SchoolID == nil || u.SchoolID == nil {
		return p.SchoolID == nil && u.SchoolID == nil
	}
	return *p.SchoolID == *u.SchoolID
}

// MockNotificationStore implements ports.NotificationRepository and enforces
// the natural-key unique index the real table has.
type MockNotificationStore struct {
	mu   sync.RWMutex
	rows []domain.Notification

	// HideExisting makes FindMatching report no rows, forcing the insert
	// path to hit the unique index.
	HideExisting bool

	InsertCalls int

	FindError   error
	InsertError error
	// FailFor injects an insert error for a single recipient.
	FailFor map[string]error
}

var _ ports.NotificationRepository = (*MockNotificationStore)(nil)

func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{FailFor: make(map[string]error)}
}

func (m *MockNotificationStore) FindMatching(ctx context.Context, key domain.DedupKey) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	if m.HideExisting {
		return nil, nil
	}
	var out []domain.Notification
	for i := range m.rows {
		if key.Matches(&m.rows[i]) {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *MockNotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return m.InsertError
	}
	if err, ok := m.FailFor[n.RecipientID]; ok {
		return err
	}
	for i := range m.rows {
		if sameKey(&m.rows[i], n) {
			return domain.ErrDuplicateNotification
		}
	}
	m.rows = append(m.rows, *n)
	return nil
}

func sameKey(a, b *domain.Notification) bool {
	actor := func(n *domain.Notification) string {
		if n.RelatedActorID == nil {
			return ""
		}
		return *n.RelatedActorID
	}
	return a.RecipientID == b.RecipientID && a.SubjectType == b.SubjectType &&
		a.SubjectID == b.SubjectID && a.Kind == b.Kind && actor(a) == actor(b)
}

func (m *MockNotificationStore) ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return nil, m.FindError
	}
	var mine []domain.Notification
	for _, n := range m.rows {
		if n.RecipientID == recipientID {
			mine = append(mine, n)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}

func (m *MockNotificationStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindError != nil {
		return 0, m.FindError
	}
	count := 0
	for _, n := range m.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == notificationID && m.rows[i].RecipientID == recipientID {
			m.rows[i].IsRead = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (m *MockNotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].RecipientID == recipientID && !m.rows[i].IsRead {
			m.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored notification.
func (m *MockNotificationStore) All() []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Notification, len(m.rows))
	copy(out, m.rows)
	return out
}

// For returns the stored notifications of one recipient, optionally filtered
// by kind.
func (m *MockNotificationStore) For(recipientID string, kind domain.NotificationKind) []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.RecipientID == recipientID && (kind == "" || n.Kind == kind) {
			out = append(out, n)
		}
	}
	return out
}

// MockRecipientRepository implements ports.RecipientRepository over seeded
// users, follows, school admins and submissions.
type MockRecipientRepository struct {
	mu          sync.RWMutex
	roles       map[string]domain.Role
	order       []string
	followers   map[string][]string
	schoolAdmin map[string][]string
	submissions map[string]*domain.SubmissionSummary
	schools     map[string]string

	RolesError error
}

var _ ports.RecipientRepository = (*MockRecipientRepository)(nil)

func NewMockRecipientRepository() *MockRecipientRepository {
	return &MockRecipientRepository{
		roles:       make(map[string]domain.Role),
		followers:   make(map[string][]string),
		schoolAdmin: make(map[string][]string),
		submissions: make(map[string]*domain.SubmissionSummary),
		schools:     make(map[string]string),
	}
}

func (m *MockRecipientRepository) AddUser(id string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		m.order = append(m.order, id)
	}
	m.roles[id] = role
}

func (m *MockRecipientRepository) AddFollower(studentID, followerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followers[studentID] = append(m.followers[studentID], followerID)
}

func (m *MockRecipientRepository) AddSchoolAdmin(schoolID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schoolAdmin[schoolID] = append(m.schoolAdmin[schoolID], userID)
}

func (m *MockRecipientRepository) AddSubmission(s domain.SubmissionSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = &s
}

func (m *MockRecipientRepository) AddSchool(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[id] = name
}

func (m *MockRecipientRepository) UserIDsByRoles(ctx context.Context, roles ...domain.Role) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.RolesError != nil {
		return nil, m.RolesError
	}
	var out []string
	for _, id := range m.order {
		for _, r := range roles {
			if m.roles[id] == r {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (m *MockRecipientRepository) SchoolAdminIDs(ctx context.Context, schoolID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.schoolAdmin[schoolID]...), nil
}

func (m *MockRecipientRepository) FollowerIDs(ctx context.Context, studentUserID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.followers[studentUserID]...), nil
}

func (m *MockRecipientRepository) SubmissionSummary(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MockRecipientRepository) SchoolName(ctx context.Context, schoolID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schools[schoolID], nil
}

// MockSubscriptionRepository implements ports.SubscriptionRepository.
type MockSubscriptionRepository struct {
	Subscriptions []domain.SchoolSubscription
	Error         error
}

var _ ports.SubscriptionRepository = (*MockSubscriptionRepository)(nil)

func (m *MockSubscriptionRepository) ActiveSubscriptions(ctx context.Context) ([]domain.SchoolSubscription, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Subscriptions, nil
}
