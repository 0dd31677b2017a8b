// Package market defines the public contract for marketplace affiliate
// converters. External tools can import this package to implement a
// converter for a new marketplace without forking the project.
package market

import (
	"context"
	"time"
)

// Marketplace identifiers. These are stable lowercase tokens used as
// registry keys and in log records; converters and callers must agree
// on this vocabulary.
const (
	Amazon       = "amazon"
	MercadoLivre = "mercadolivre"
	Shopee       = "shopee"

	// NotDetected is reported when no marketplace matches the URL.
	NotDetected = "marketplace_not_detected"
)

// Conversion statuses.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
)

// Result is the outcome of a conversion dispatched through the Manager.
// Link is always non-empty: on failure it equals the original input.
// Error is set iff Status is StatusFallback.
type Result struct {
	Link        string `json:"link"`
	Status      string `json:"status"`
	Marketplace string `json:"marketplace"`
	Error       string `json:"error,omitempty"`
}

// Cookie is a single browser cookie as stored in a credential file.
// Expires is a Unix timestamp in seconds; zero means session cookie.
type Cookie struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Domain  string  `json:"domain,omitempty"`
	Path    string  `json:"path,omitempty"`
	Expires float64 `json:"expires,omitempty"`
}

// CredentialBundle holds the durable credentials for one marketplace:
// an ordered cookie sequence plus issuance metadata. Bundles are loaded
// lazily on first use and replaced wholesale when regenerated; they are
// never mutated in place.
type CredentialBundle struct {
	Cookies      []Cookie `json:"cookies"`
	AssociateTag string   `json:"associate_tag,omitempty"`
	GeneratedAt  string   `json:"generated_at,omitempty"`
	ExpiresAt    string   `json:"expires_at,omitempty"`

	// IssuedAt is the credential file's modification time, not part of
	// the JSON payload.
	IssuedAt time.Time `json:"-"`
}

// Cookie returns the named cookie and whether it is present.
func (b *CredentialBundle) Cookie(name string) (Cookie, bool) {
	for _, c := range b.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

// Empty reports whether the bundle carries no cookies.
func (b *CredentialBundle) Empty() bool {
	return b == nil || len(b.Cookies) == 0
}

// Converter is the capability set every marketplace integration must
// satisfy. Implementations are registered with the Manager under their
// marketplace identifier.
type Converter interface {
	// Marketplace returns the identifier this converter serves.
	Marketplace() string

	// ConvertLink converts a raw product URL into an affiliate-tracked
	// URL. It returns ErrInvalidLink for URLs outside the converter's
	// marketplace or failing the shared URL-shape check, and a more
	// specific error for marketplace failures. Every call, success or
	// failure, emits exactly one structured conversion log record.
	ConvertLink(ctx context.Context, original string) (string, error)

	// LoadCredentials reads the durable credential store. Marketplaces
	// whose credentials are optional return an empty bundle when the
	// store is absent; the others return ErrCredentialsMissing.
	LoadCredentials(ctx context.Context) (*CredentialBundle, error)

	// ValidateCredentials reports whether credentials are either
	// unnecessary, or present, unexpired, and complete for the
	// marketplace's API.
	ValidateCredentials(ctx context.Context) (bool, error)
}
