package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, nil)
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
		if userID != "" {
			req = req.WithContext(WithActor(req.Context(), Actor{UserID: userID, Role: "viewer"}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := call("u1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := call("u1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", code)
	}
	if code := call("u2"); code != http.StatusOK {
		t.Errorf("other actors keep their own budget, got %d", code)
	}
	if code := call(""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without actor, got %d", code)
	}

	if rl.Len() != 2 {
		t.Fatalf("expected 2 tracked actors, got %d", rl.Len())
	}
	rl.evictIdle(time.Now().Add(2 * limiterIdleTTL))
	if rl.Len() != 0 {
		t.Errorf("expected idle entries evicted, got %d", rl.Len())
	}
}
