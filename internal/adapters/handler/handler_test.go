package handler_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xenwatch/identity-notify-service/internal/adapters/handler"
	"github.com/xenwatch/identity-notify-service/internal/adapters/middleware"
	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// --- fakes ---

type fakeIdentity struct {
	resolveFn func(ctx context.Context, userID string) (*domain.Profile, error)
	repairFn  func(ctx context.Context, userID string) (ports.RepairResult, error)
	loginFn   func(ctx context.Context, userID string) (*domain.Profile, error)
}

func (f *fakeIdentity) ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, userID)
	}
	return &domain.Profile{ID: "p-" + userID, UserID: userID}, nil
}

func (f *fakeIdentity) RepairLinkedID(ctx context.Context, userID string) (ports.RepairResult, error) {
	if f.repairFn != nil {
		return f.repairFn(ctx, userID)
	}
	return ports.RepairResult{Outcome: ports.RepairAlreadyValid, ProfileID: "p-" + userID}, nil
}

func (f *fakeIdentity) ResolveForLogin(ctx context.Context, userID string) (*domain.Profile, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, userID)
	}
	return &domain.Profile{ID: "p-" + userID, UserID: userID}, nil
}

type fakeDispatcher struct {
	events []domain.Event
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, evt domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

type fakeInbox struct {
	items        []domain.Notification
	gotLimit     int
	gotOffset    int
	gotReadID    string
	gotRecipient string
	err          error
}

func (f *fakeInbox) List(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	f.gotRecipient, f.gotLimit, f.gotOffset = recipientID, limit, offset
	return f.items, f.err
}

func (f *fakeInbox) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	f.gotRecipient = recipientID
	return len(f.items), f.err
}

func (f *fakeInbox) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	f.gotRecipient, f.gotReadID = recipientID, notificationID
	return f.err
}

func (f *fakeInbox) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	f.gotRecipient = recipientID
	return int64(len(f.items)), f.err
}

// --- helpers ---

type testServer struct {
	key        *rsa.PrivateKey
	identity   *fakeIdentity
	inbox      *fakeInbox
	dispatcher *fakeDispatcher
	router     http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	s := &testServer{
		key:        key,
		identity:   &fakeIdentity{},
		inbox:      &fakeInbox{},
		dispatcher: &fakeDispatcher{},
	}
	s.router = handler.NewRouter(handler.RouterDeps{
		Auth:           middleware.NewAuthMiddleware(&key.PublicKey, nil),
		AllowedOrigins: []string{"*"},
		Health:         handler.NewHealthHandler(nil, nil, "test", nil),
		Profile:        handler.NewProfileHandler(s.identity, nil),
		Inbox:          handler.NewInboxHandler(s.inbox, nil),
		Events:         handler.NewEventHandler(s.dispatcher, nil),
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path, body, userID string, role domain.Role) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"sub":  userID,
			"role": string(role),
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(s.key)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
