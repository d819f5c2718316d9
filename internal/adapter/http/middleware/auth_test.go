package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/infrastructure/auth"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour)
	valid, err := manager.Generate(domain.Session{UserID: "ana", Name: "Ana"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	expired, err := auth.NewJWTManager("secret", -time.Minute).Generate(domain.Session{UserID: "ana"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
		reason string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "missing_header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "bad_format"},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "expired_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "auth_failures"}, []string{"reason"})

			var got domain.Session
			h := AuthMiddleware(manager, failures)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = SessionFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			if tt.status == http.StatusOK && (got.UserID != "ana" || got.Name != "Ana") {
				t.Fatalf("unexpected session %+v", got)
			}
			if tt.reason != "" {
				if n := testutil.ToFloat64(failures.WithLabelValues(tt.reason)); n != 1 {
					t.Fatalf("expected one %s failure, got %v", tt.reason, n)
				}
			}
		})
	}
}

func TestHeaderAuth(t *testing.T) {
	var got domain.Session
	h := HeaderAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contexts", nil)
	req.Header.Set(UserIDHeader, "bea")
	req.Header.Set(UserNameHeader, "Bea")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || got.UserID != "bea" || got.Name != "Bea" {
		t.Fatalf("unexpected result %d %+v", rr.Code, got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/contexts", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rr.Code)
	}
}
