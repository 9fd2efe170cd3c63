package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// AuditRecorder persists one audit entry. Implemented by audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditLog) error
}

// bufferingWriter holds the response until the audit row is durable.
type bufferingWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferingWriter() *bufferingWriter {
	return &bufferingWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferingWriter) Header() http.Header { return b.header }

func (b *bufferingWriter) WriteHeader(status int) { b.status = status }

func (b *bufferingWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

// Audit records every mutating request to the audit trail before the
// response is released. The write is fail-closed: if the audit insert
// fails, the client gets a 500 and the buffered response is discarded —
// an unauditable action must not appear to succeed.
//
// Reads (GET, HEAD, OPTIONS) are not audited.
func Audit(recorder AuditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			buf := newBufferingWriter()
			next.ServeHTTP(buf, r)

			entry := buildEntry(r, buf.status, time.Since(start))
			if err := recorder.Record(r.Context(), entry); err != nil {
				log.Error().Err(err).
					Str("method", r.Method).
					Str("endpoint", r.URL.Path).
					Msg("audit: insert failed, rejecting request")
				http.Error(w, `{"title":"Internal Server Error","status":500,"detail":"audit trail unavailable"}`, http.StatusInternalServerError)
				return
			}

			// Flush the buffered response.
			for k, vals := range buf.header {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(buf.status)
			_, _ = w.Write(buf.body.Bytes())
		})
	}
}

func buildEntry(r *http.Request, status int, took time.Duration) *domain.AuditLog {
	entry := &domain.AuditLog{
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		HTTPMethod: r.Method,
		Endpoint:   r.URL.Path,
		Timestamp:  time.Now(),
		DurationMs: took.Milliseconds(),
		StatusCode: status,
	}

	if id, ok := OperatorIDFromContext(r.Context()); ok {
		entry.AdminID = id
	}
	if email, ok := OperatorEmailFromContext(r.Context()); ok {
		entry.AdminEmail = email
	}
	if role, ok := RoleFromContext(r.Context()); ok {
		entry.AdminRole = role
	}

	entry.ResourceType, entry.ResourceID, entry.TenantID = parseResource(r.URL.Path)

	return entry
}

// parseResource extracts resource type, id, and tenant slug from API paths
// of the shape /api/v1/<resource>/<id>[/...]. Tenant-scoped resources carry
// the slug as the id.
func parseResource(path string) (resourceType, resourceID, tenantID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// Expect ["api", "v1", resource, id?, ...].
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return "", "", ""
	}

	resourceType = parts[2]
	if len(parts) > 3 {
		resourceID = parts[3]
	}

	if resourceType == "tenants" || resourceType == "provision" {
		tenantID = resourceID
	}

	return resourceType, resourceID, tenantID
}
