package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mechanicbuddy/control-plane/internal/auth"
	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/server/middleware"
)

const testSecret = "middleware-test-secret-at-least-32ch"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuth(t *testing.T) {
	t.Parallel()

	operatorID := uuid.New()

	t.Run("valid access token passes with context populated", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueAccessToken(testSecret, operatorID, "ops@mechanicbuddy.app", middleware.RoleAdmin, 5*time.Minute)
		require.NoError(t, err)

		var gotID uuid.UUID
		var gotEmail, gotRole string
		handler := middleware.Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID, _ = middleware.OperatorIDFromContext(r.Context())
			gotEmail, _ = middleware.OperatorEmailFromContext(r.Context())
			gotRole, _ = middleware.RoleFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, operatorID, gotID)
		assert.Equal(t, "ops@mechanicbuddy.app", gotEmail)
		assert.Equal(t, middleware.RoleAdmin, gotRole)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		t.Parallel()

		handler := middleware.Auth(testSecret)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token rejected for API calls", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueRefreshToken(testSecret, operatorID, "ops@mechanicbuddy.app", middleware.RoleAdmin, time.Hour)
		require.NoError(t, err)

		handler := middleware.Auth(testSecret)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with another secret rejected", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueAccessToken("some-other-secret-32-chars-long!!", operatorID, "x@y.z", middleware.RoleAdmin, 5*time.Minute)
		require.NoError(t, err)

		handler := middleware.Auth(testSecret)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// ---------------------------------------------------------------------------
// RequireRole
// ---------------------------------------------------------------------------

func TestRequireRole(t *testing.T) {
	t.Parallel()

	withRole := func(role string, req *http.Request) *http.Request {
		ctx := context.WithValue(req.Context(), middleware.ContextKeyOperatorRole, role)
		return req.WithContext(ctx)
	}

	t.Run("admin passes admin gate", func(t *testing.T) {
		t.Parallel()

		handler := middleware.RequireAdmin()(okHandler())
		req := withRole(middleware.RoleAdmin, httptest.NewRequest(http.MethodPost, "/api/v1/tenants/x/suspend", nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("read-only operator blocked from admin gate", func(t *testing.T) {
		t.Parallel()

		handler := middleware.RequireAdmin()(okHandler())
		req := withRole(middleware.RoleOperator, httptest.NewRequest(http.MethodPost, "/api/v1/tenants/x/suspend", nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no role in context is unauthorized", func(t *testing.T) {
		t.Parallel()

		handler := middleware.RequireAdmin()(okHandler())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

type mockRecorder struct {
	entries []*domain.AuditLog
	err     error
}

func (m *mockRecorder) Record(_ context.Context, e *domain.AuditLog) error {
	m.entries = append(m.entries, e)
	return m.err
}

func TestAudit(t *testing.T) {
	t.Parallel()

	t.Run("mutating request recorded and response flushed", func(t *testing.T) {
		t.Parallel()

		rec := &mockRecorder{}
		handler := middleware.Audit(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"created":true}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/joes-garage/suspend", strings.NewReader("{}"))
		ctx := context.WithValue(req.Context(), middleware.ContextKeyOperatorEmail, "ops@mechanicbuddy.app")
		ctx = context.WithValue(ctx, middleware.ContextKeyOperatorRole, middleware.RoleAdmin)
		req = req.WithContext(ctx)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"created":true}`, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		require.Len(t, rec.entries, 1)
		entry := rec.entries[0]
		assert.Equal(t, "POST", entry.HTTPMethod)
		assert.Equal(t, "/api/v1/tenants/joes-garage/suspend", entry.Endpoint)
		assert.Equal(t, "ops@mechanicbuddy.app", entry.AdminEmail)
		assert.Equal(t, "tenants", entry.ResourceType)
		assert.Equal(t, "joes-garage", entry.ResourceID)
		assert.Equal(t, "joes-garage", entry.TenantID)
		assert.Equal(t, http.StatusCreated, entry.StatusCode)
	})

	t.Run("audit insert failure fails the request closed", func(t *testing.T) {
		t.Parallel()

		rec := &mockRecorder{err: errors.New("db down")}
		handler := middleware.Audit(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"secret":"leaked"}`))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/joes-garage", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "leaked", "buffered response must be discarded")
	})

	t.Run("reads are not audited", func(t *testing.T) {
		t.Parallel()

		rec := &mockRecorder{}
		handler := middleware.Audit(rec)(okHandler())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, rec.entries)
	})

	t.Run("auth mutation audited without operator identity", func(t *testing.T) {
		t.Parallel()

		rec := &mockRecorder{}
		handler := middleware.Audit(rec)(okHandler())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{}")))

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, rec.entries, 1)
		entry := rec.entries[0]
		assert.Equal(t, "/api/v1/auth/login", entry.Endpoint)
		assert.Equal(t, "auth", entry.ResourceType)
		assert.Empty(t, entry.AdminEmail)
		assert.Equal(t, uuid.Nil, entry.AdminID)
	})

	t.Run("handler failure still audited", func(t *testing.T) {
		t.Parallel()

		rec := &mockRecorder{}
		handler := middleware.Audit(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/provision", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, http.StatusConflict, rec.entries[0].StatusCode)
	})
}

// ---------------------------------------------------------------------------
// RateLimitByIP
// ---------------------------------------------------------------------------

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimitByIP(ctx, 1, 2)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:4444"

	// Burst of 2 allowed, third rejected.
	for i := range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if i < 2 {
			assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}

	// A different IP has its own budget.
	other := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	other.RemoteAddr = "198.51.100.9:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---------------------------------------------------------------------------
// RateLimit (per operator)
// ---------------------------------------------------------------------------

func TestRateLimit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 1, 2)(okHandler())

	asOperator := func(id uuid.UUID) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
		return req.WithContext(context.WithValue(req.Context(), middleware.ContextKeyOperatorID, id))
	}

	busy := uuid.New()

	// Burst of 2 allowed, third rejected.
	for i := range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, asOperator(busy))
		if i < 2 {
			assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}

	// A different operator has its own budget.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, asOperator(uuid.New()))
	assert.Equal(t, http.StatusOK, w.Code)

	// No identity in context passes through untouched.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
