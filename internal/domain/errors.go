package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound            = errors.New("domain: not found")
	ErrDuplicateTenantID   = errors.New("domain: tenant id already taken")
	ErrInvalidTransition   = errors.New("domain: invalid status transition")
	ErrTierMismatch        = errors.New("domain: resource overrides require enterprise tier")
	ErrValidation          = errors.New("domain: validation failed")
	ErrVerificationExpired = errors.New("domain: verification token expired")
)
