package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/auth"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
)

func echoUser(t *testing.T, want string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := domain.UserIDFromContext(r.Context())
		if !ok || got != want {
			t.Fatalf("expected user %q in context, got %q (%v)", want, got, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestUserResolverHeaderMode(t *testing.T) {
	resolver := NewUserResolver(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req.Header.Set(UserIDHeader, "player-1")
	rr := httptest.NewRecorder()
	resolver.Require(echoUser(t, "player-1")).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?user_id=player-2", nil)
	rr = httptest.NewRecorder()
	resolver.Require(echoUser(t, "player-2")).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected query fallback to resolve, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	resolver.Require(echoUser(t, "")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rr.Code)
	}
}

func TestUserResolverTokenMode(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	manager := auth.NewJWTManager("secret", time.Minute)
	resolver := NewUserResolver(manager, m)

	token, err := manager.Generate("player-9")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	resolver.Require(echoUser(t, "player-9")).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rr = httptest.NewRecorder()
	resolver.Require(echoUser(t, "player-9")).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected token query parameter to resolve, got %d", rr.Code)
	}

	// The header is ignored once tokens are required.
	req = httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req.Header.Set(UserIDHeader, "player-9")
	rr = httptest.NewRecorder()
	resolver.Require(echoUser(t, "")).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	resolver.Require(echoUser(t, "")).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("missing token")); got != 1 {
		t.Fatalf("expected one missing-token failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("invalid token")); got != 1 {
		t.Fatalf("expected one invalid-token failure, got %v", got)
	}
}
