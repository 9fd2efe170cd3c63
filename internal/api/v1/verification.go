package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mechanicbuddy/control-plane/internal/domain"
	"github.com/mechanicbuddy/control-plane/internal/verify"
)

type RequestVerificationInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
	Body struct {
		Domain string `json:"domain" minLength:"4" maxLength:"255" doc:"Domain to prove ownership of"`
		Method string `json:"method" enum:"dns,file" doc:"Challenge method: DNS TXT record or well-known file"`
	}
}

type RequestVerificationOutput struct {
	Body *domain.DomainVerification
}

type CheckVerificationInput struct {
	Slug string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
	Body struct {
		Domain string `json:"domain" minLength:"4" maxLength:"255" doc:"Domain under verification"`
	}
}

type CheckVerificationOutput struct {
	Body *verify.CheckResult
}

type GetVerificationInput struct {
	Slug   string `path:"slug" maxLength:"30" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Tenant slug"`
	Domain string `query:"domain" minLength:"4" maxLength:"255" doc:"Domain under verification"`
}

// RegisterVerificationRoutes wires the custom-domain ownership challenge:
// issuing a token, inspecting its state, and checking it on demand. Issuing
// also starts a background poll so most verifications complete without a
// manual check.
func RegisterVerificationRoutes(api huma.API, store DataStore, verifier Verifier, poller VerifyPoller) {
	huma.Register(api, huma.Operation{
		OperationID: "request-domain-verification",
		Method:      http.MethodPost,
		Path:        "/tenants/{slug}/domain-verification",
		Summary:     "Start a domain ownership challenge",
		Tags:        []string{"Verification"},
	}, func(ctx context.Context, input *RequestVerificationInput) (*RequestVerificationOutput, error) {
		v, err := verifier.RequestVerification(ctx, input.Slug, input.Body.Domain, domain.VerificationMethod(input.Body.Method))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("tenant not found")
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to create verification", err)
		}

		// The poll outlives this request.
		if poller != nil {
			poller.Start(context.WithoutCancel(ctx), input.Slug, v.Domain)
		}

		return &RequestVerificationOutput{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-domain-verification",
		Method:      http.MethodGet,
		Path:        "/tenants/{slug}/domain-verification",
		Summary:     "Get the state of a domain ownership challenge",
		Tags:        []string{"Verification"},
	}, func(ctx context.Context, input *GetVerificationInput) (*RequestVerificationOutput, error) {
		v, err := store.Verifications().Get(ctx, input.Slug, input.Domain)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no verification for this domain")
			}
			return nil, huma.Error500InternalServerError("failed to look up verification", err)
		}

		return &RequestVerificationOutput{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-domain-verification",
		Method:      http.MethodPost,
		Path:        "/tenants/{slug}/domain-verification/check",
		Summary:     "Check a pending domain ownership challenge now",
		Tags:        []string{"Verification"},
	}, func(ctx context.Context, input *CheckVerificationInput) (*CheckVerificationOutput, error) {
		result, err := verifier.Check(ctx, input.Slug, input.Body.Domain)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("no verification pending for this domain")
			case verify.IsExpired(err):
				return nil, huma.Error410Gone("verification token expired; request a new challenge")
			}
			return nil, huma.Error500InternalServerError("verification check failed", err)
		}

		return &CheckVerificationOutput{Body: result}, nil
	})
}
