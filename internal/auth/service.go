package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials    = errors.New("auth: invalid credentials")
	ErrOperatorAlreadyExists = errors.New("auth: operator already exists")
	ErrOperatorNotFound      = errors.New("auth: operator not found")
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Service provides authentication for management-portal operators.
type Service struct {
	operatorRepo domain.OperatorRepository
	jwtSecret    string
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewService creates a new auth service.
func NewService(operatorRepo domain.OperatorRepository, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		operatorRepo: operatorRepo,
		jwtSecret:    jwtSecret,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

// Register creates a new operator with email/password. Returns the created
// operator. The password is hashed with argon2id before storage.
func (s *Service) Register(ctx context.Context, email, password, name, role string) (*domain.Operator, error) {
	existing, err := s.operatorRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("auth.Register: %w", ErrOperatorAlreadyExists)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	now := time.Now()
	op := &domain.Operator{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.operatorRepo.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	return op, nil
}

// Login validates email/password and returns access + refresh JWT tokens.
func (s *Service) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	op, err := s.operatorRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if !VerifyPassword(password, op.PasswordHash) {
		return "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	accessToken, err = IssueAccessToken(s.jwtSecret, op.ID, op.Email, op.Role, s.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", err)
	}

	refreshToken, err = IssueRefreshToken(s.jwtSecret, op.ID, op.Email, op.Role, s.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshToken validates a refresh token and issues a new access token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrInvalidToken)
	}

	operatorID, err := uuid.Parse(claims.OperatorID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: invalid operator id: %w", err)
	}

	// Verify the operator still exists and fetch current role.
	op, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrOperatorNotFound)
	}

	newAccess, err := IssueAccessToken(s.jwtSecret, op.ID, op.Email, op.Role, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	return newAccess, nil
}

// LoginWithProvider finds or creates an operator from an OAuth identity and
// issues tokens. SSO-created operators default to the read-only role;
// promoting them to admin is a manual step.
func (s *Service) LoginWithProvider(ctx context.Context, provider, providerID, email, name string) (accessToken, refreshToken string, err error) {
	op, err := s.operatorRepo.GetByProvider(ctx, provider, providerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return "", "", fmt.Errorf("auth.LoginWithProvider: %w", err)
		}

		now := time.Now()
		op = &domain.Operator{
			ID:         uuid.New(),
			Email:      email,
			Name:       name,
			Role:       domain.OperatorRoleReadOnly,
			Provider:   provider,
			ProviderID: providerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.operatorRepo.Create(ctx, op); err != nil {
			return "", "", fmt.Errorf("auth.LoginWithProvider: %w", err)
		}
	}

	accessToken, err = IssueAccessToken(s.jwtSecret, op.ID, op.Email, op.Role, s.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.LoginWithProvider: %w", err)
	}

	refreshToken, err = IssueRefreshToken(s.jwtSecret, op.ID, op.Email, op.Role, s.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.LoginWithProvider: %w", err)
	}

	return accessToken, refreshToken, nil
}

// EnsureAdmin guarantees that an operator exists for the given email,
// creating it with the admin role when missing. Run at startup so a fresh
// deployment has a login before any SSO operator is promoted. An existing
// operator is left untouched, whatever its role or password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) error {
	existing, err := s.operatorRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("auth.EnsureAdmin: %w", err)
	}
	if existing != nil {
		return nil
	}

	if _, err := s.Register(ctx, email, password, name, domain.OperatorRoleAdmin); err != nil {
		return fmt.Errorf("auth.EnsureAdmin: %w", err)
	}

	return nil
}

// HashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// VerifyPassword checks a password against an argon2id hash.
func VerifyPassword(password, encoded string) bool {
	// Split salt$hash
	var saltHex, hashHex string
	for i := range len(encoded) {
		if encoded[i] == '$' {
			saltHex = encoded[:i]
			hashHex = encoded[i+1:]
			break
		}
	}

	if saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expectedHash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	// Constant-time comparison to prevent timing attacks.
	if len(computed) != len(expectedHash) {
		return false
	}

	var diff byte
	for i := range computed {
		diff |= computed[i] ^ expectedHash[i]
	}

	return diff == 0
}
