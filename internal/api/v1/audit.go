package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

type QueryAuditInput struct {
	Search   string    `query:"search" maxLength:"255" doc:"Match against admin email, endpoint, resource id"`
	Action   string    `query:"action" enum:"POST,PUT,PATCH,DELETE" required:"false" doc:"Filter by HTTP method"`
	TenantID string    `query:"tenant" maxLength:"30" doc:"Filter by tenant slug"`
	From     time.Time `query:"from" required:"false" doc:"Earliest timestamp (RFC 3339)"`
	To       time.Time `query:"to" required:"false" doc:"Latest timestamp (RFC 3339)"`
	Limit    int       `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
	Offset   int       `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type QueryAuditOutput struct {
	Body []*domain.AuditLog
}

type AuditStatsInput struct {
	WindowDays int `query:"window_days" minimum:"1" maximum:"90" default:"7" doc:"Trailing window in days"`
}

type AuditStatsOutput struct {
	Body *domain.AuditLogStats
}

// RegisterAuditRoutes wires the audit trail read endpoints. The trail is
// append-only; there are no mutation routes.
func RegisterAuditRoutes(api huma.API, auditor AuditReader) {
	huma.Register(api, huma.Operation{
		OperationID: "query-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Query the audit trail",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *QueryAuditInput) (*QueryAuditOutput, error) {
		filter := domain.AuditFilter{
			SearchText: input.Search,
			ActionType: input.Action,
			TenantID:   input.TenantID,
			From:       input.From,
			To:         input.To,
		}

		entries, err := auditor.Query(ctx, filter, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to query audit log", err)
		}

		return &QueryAuditOutput{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-log-stats",
		Method:      http.MethodGet,
		Path:        "/audit/stats",
		Summary:     "Aggregate audit statistics over a trailing window",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *AuditStatsInput) (*AuditStatsOutput, error) {
		stats, err := auditor.Stats(ctx, input.WindowDays)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to compute audit stats", err)
		}

		return &AuditStatsOutput{Body: stats}, nil
	})
}
