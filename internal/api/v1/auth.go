package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mechanicbuddy/control-plane/internal/auth"
)

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"Operator email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
	}
}

type OAuthURLInput struct {
	Provider string `path:"provider" enum:"google,github" doc:"Identity provider"`
	State    string `query:"state" minLength:"8" maxLength:"255" doc:"Opaque CSRF state echoed back on callback"`
}

type OAuthURLOutput struct {
	Body struct {
		URL string `json:"url"`
	}
}

type OAuthCallbackInput struct {
	Provider string `path:"provider" enum:"google,github" doc:"Identity provider"`
	Body     struct {
		Code string `json:"code" minLength:"1" doc:"Authorization code from the provider"`
	}
}

// RegisterAuthRoutes wires operator login, token refresh, and SSO endpoints.
// These routes live on the unauthenticated API group.
func RegisterAuthRoutes(api huma.API, authSvc AuthService, providers map[string]*auth.OAuthProvider) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		accessToken, refreshToken, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}

		out := &LoginOutput{}
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = accessToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-url",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/{provider}/url",
		Summary:     "Get the OAuth authorization URL for a provider",
		Tags:        []string{"Auth"},
	}, func(_ context.Context, input *OAuthURLInput) (*OAuthURLOutput, error) {
		provider, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound("provider not configured")
		}

		out := &OAuthURLOutput{}
		out.Body.URL = provider.AuthorizationURL(input.State)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodPost,
		Path:        "/auth/oauth/{provider}/callback",
		Summary:     "Exchange an OAuth authorization code for tokens",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthCallbackInput) (*LoginOutput, error) {
		provider, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound("provider not configured")
		}

		providerID, email, name, err := provider.ExchangeCode(ctx, input.Body.Code)
		if err != nil {
			return nil, huma.Error401Unauthorized("authorization code exchange failed")
		}

		accessToken, refreshToken, err := authSvc.LoginWithProvider(ctx, input.Provider, providerID, email, name)
		if err != nil {
			return nil, huma.Error500InternalServerError("sso login failed", err)
		}

		out := &LoginOutput{}
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})
}
