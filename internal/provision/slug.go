package provision

import (
	"strconv"
	"strings"

	"github.com/mechanicbuddy/control-plane/internal/domain"
)

const maxSlugLen = 30

// Slugify derives a tenant slug from a company name: lowercase, alphanumeric
// runs joined by single hyphens, truncated to the slug length limit.
// "Joe's Garage" becomes "joes-garage".
func Slugify(companyName string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen

	for _, r := range strings.ToLower(companyName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		// Everything else (apostrophes, punctuation) is dropped entirely.
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}

	if !domain.ValidSlug(slug) {
		return "tenant"
	}

	return slug
}

// WithSuffix appends a numeric collision suffix, shortening the base so the
// result stays within the slug length limit.
func WithSuffix(slug string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	if len(slug)+len(suffix) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen-len(suffix)], "-")
	}
	return slug + suffix
}
