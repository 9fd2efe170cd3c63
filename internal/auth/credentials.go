package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Character classes for generated tenant admin passwords. Ambiguous
// characters (0/O, 1/l/I) are excluded because the password is shown once
// and often retyped by hand.
const (
	passwordLength = 20

	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	symbolChars  = "!@#$%^&*-_=+"
	allPassChars = lowerChars + upperChars + digitChars + symbolChars
)

// GeneratePassword returns a random password containing at least one
// character from each class. Used for the initial tenant admin account.
func GeneratePassword() (string, error) {
	chars := make([]byte, passwordLength)

	// Guarantee one character per class, fill the rest from the full set.
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	for i, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		chars[i] = c
	}

	for i := len(classes); i < passwordLength; i++ {
		c, err := randomChar(allPassChars)
		if err != nil {
			return "", err
		}
		chars[i] = c
	}

	if err := shuffle(chars); err != nil {
		return "", err
	}

	return string(chars), nil
}

// ValidPassword reports whether a password meets the complexity policy:
// at least 12 characters with a lowercase letter, an uppercase letter,
// and a digit.
func ValidPassword(password string) bool {
	if len(password) < 12 {
		return false
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}

	return hasLower && hasUpper && hasDigit
}

// AdminEmail derives the initial tenant admin login from the owner email.
// If the owner email is empty, a per-tenant fallback is used.
func AdminEmail(ownerEmail, slug string) string {
	if strings.TrimSpace(ownerEmail) != "" {
		return strings.ToLower(strings.TrimSpace(ownerEmail))
	}
	return fmt.Sprintf("admin@%s.mechanicbuddy.app", slug)
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("auth.randomChar: %w", err)
	}
	return set[n.Int64()], nil
}

func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("auth.shuffle: %w", err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
