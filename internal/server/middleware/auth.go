package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	OperatorID string `json:"uid"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TokenType  string `json:"typ"`
}

// Auth authenticates operator requests via Bearer JWT access tokens.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := extractBearer(r); tok != "" {
				ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ctx, false
	}

	// Refresh tokens never authenticate API calls.
	if claims.TokenType != "access" {
		return ctx, false
	}

	operatorID, err := uuid.Parse(claims.OperatorID)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyOperatorID, operatorID)
	ctx = context.WithValue(ctx, ContextKeyOperatorEmail, claims.Email)
	ctx = context.WithValue(ctx, ContextKeyOperatorRole, claims.Role)
	return ctx, true
}
