package verify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

// TXT record prefix and well-known path used by the two challenge methods.
const (
	txtRecordPrefix = "_mechanicbuddy-verify."
	wellKnownPath   = "/.well-known/mechanicbuddy-verify.txt"

	tokenBytes = 16
)

// TXTResolver looks up DNS TXT records. *net.Resolver satisfies it.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// CheckResult is the outcome of one verification attempt. A token mismatch
// is a normal negative result, not an error.
type CheckResult struct {
	Verified bool   `json:"verified"`
	Detail   string `json:"detail,omitempty"`
}

// Engine issues domain ownership challenges and checks them via DNS TXT
// records or well-known file fetches.
type Engine struct {
	verifications domain.VerificationRepository
	tenants       domain.TenantRepository
	resolver      TXTResolver
	httpClient    *http.Client
	tokenTTL      time.Duration
}

func NewEngine(verifications domain.VerificationRepository, tenants domain.TenantRepository, tokenTTL time.Duration) *Engine {
	return &Engine{
		verifications: verifications,
		tenants:       tenants,
		resolver:      net.DefaultResolver,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		tokenTTL:      tokenTTL,
	}
}

// WithResolver swaps the DNS resolver (for tests).
func (e *Engine) WithResolver(r TXTResolver) *Engine {
	e.resolver = r
	return e
}

// WithHTTPClient swaps the HTTP client used for file checks (for tests).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	e.httpClient = c
	return e
}

// RequestVerification issues a fresh challenge for a (tenant, domain) pair.
// Any prior unverified challenge for the pair is replaced; its token stops
// working immediately.
func (e *Engine) RequestVerification(ctx context.Context, tenantSlug, domainName string, method domain.VerificationMethod) (*domain.DomainVerification, error) {
	if method != domain.VerificationMethodDNS && method != domain.VerificationMethodFile {
		return nil, fmt.Errorf("verify.RequestVerification: unknown method %q: %w", method, domain.ErrValidation)
	}

	domainName = normalizeDomain(domainName)
	if domainName == "" {
		return nil, fmt.Errorf("verify.RequestVerification: empty domain: %w", domain.ErrValidation)
	}

	// The tenant must exist and not be deleted.
	tenant, err := e.tenants.GetBySlug(ctx, tenantSlug)
	if err != nil {
		return nil, fmt.Errorf("verify.RequestVerification: %w", err)
	}
	if tenant.Status == domain.TenantStatusDeleted {
		return nil, fmt.Errorf("verify.RequestVerification: tenant %s is deleted: %w", tenantSlug, domain.ErrNotFound)
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("verify.RequestVerification: token: %w", err)
	}

	now := time.Now()
	v := &domain.DomainVerification{
		ID:                uuid.New(),
		TenantID:          tenantSlug,
		Domain:            domainName,
		VerificationToken: "mb-verify-" + hex.EncodeToString(buf),
		Method:            method,
		ExpiresAt:         now.Add(e.tokenTTL),
		CreatedAt:         now,
	}

	if err := e.verifications.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("verify.RequestVerification: %w", err)
	}

	return v, nil
}

// Check runs one verification attempt for the pair's current challenge.
// Already-verified records short-circuit to success. Expired records return
// ErrVerificationExpired; the caller must request a fresh challenge.
func (e *Engine) Check(ctx context.Context, tenantSlug, domainName string) (*CheckResult, error) {
	domainName = normalizeDomain(domainName)

	v, err := e.verifications.Get(ctx, tenantSlug, domainName)
	if err != nil {
		return nil, fmt.Errorf("verify.Check: %w", err)
	}

	if v.IsVerified {
		return &CheckResult{Verified: true, Detail: "already verified"}, nil
	}

	if v.Expired(time.Now()) {
		return nil, fmt.Errorf("verify.Check: challenge for %s expired: %w", domainName, domain.ErrVerificationExpired)
	}

	var found bool
	var detail string
	switch v.Method {
	case domain.VerificationMethodDNS:
		found, detail = e.checkDNS(ctx, v)
	case domain.VerificationMethodFile:
		found, detail = e.checkFile(ctx, v)
	default:
		return nil, fmt.Errorf("verify.Check: unknown method %q: %w", v.Method, domain.ErrValidation)
	}

	if !found {
		return &CheckResult{Verified: false, Detail: detail}, nil
	}

	now := time.Now()
	if err := e.verifications.MarkVerified(ctx, v.ID, now); err != nil {
		return nil, fmt.Errorf("verify.Check: %w", err)
	}
	if err := e.tenants.SetDomainVerified(ctx, tenantSlug, domainName); err != nil {
		return nil, fmt.Errorf("verify.Check: %w", err)
	}

	log.Info().Str("tenant", tenantSlug).Str("domain", domainName).Msg("verify: domain verified")

	return &CheckResult{Verified: true}, nil
}

// checkDNS looks for the token in TXT records at the challenge subdomain.
// Comparison is case-insensitive; DNS providers may fold case.
func (e *Engine) checkDNS(ctx context.Context, v *domain.DomainVerification) (bool, string) {
	name := txtRecordPrefix + v.Domain

	records, err := e.resolver.LookupTXT(ctx, name)
	if err != nil {
		return false, fmt.Sprintf("TXT lookup for %s failed: %v", name, err)
	}

	for _, r := range records {
		if strings.EqualFold(strings.TrimSpace(r), v.VerificationToken) {
			return true, ""
		}
	}

	return false, fmt.Sprintf("no TXT record at %s matches the verification token", name)
}

// checkFile fetches the well-known file over HTTPS and compares its content
// to the token.
func (e *Engine) checkFile(ctx context.Context, v *domain.DomainVerification) (bool, string) {
	url := "https://" + v.Domain + wellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Sprintf("building request for %s: %v", url, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("fetching %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("%s returned %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, fmt.Sprintf("reading %s: %v", url, err)
	}

	if strings.TrimSpace(string(body)) == v.VerificationToken {
		return true, ""
	}

	return false, fmt.Sprintf("%s content does not match the verification token", url)
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	return d
}

// Sentinel check helper for callers distinguishing expiry from transport
// failures.
func IsExpired(err error) bool {
	return errors.Is(err, domain.ErrVerificationExpired)
}
