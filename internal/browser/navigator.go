// Package browser provides ephemeral headless-browser sessions behind a
// narrow capability interface, so converters depend on an abstraction
// rather than a concrete automation library.
package browser

import (
	"context"
	"time"

	"github.com/promozone/afflink/pkg/market"
)

// Page is the observable outcome of one navigation.
type Page struct {
	// URL is the final URL after redirects.
	URL string
	// StatusCode is the HTTP status of the main document (0 if the
	// browser did not surface one).
	StatusCode int
	// HTML is the rendered document.
	HTML string
}

// Session is a single scoped browser context. Sessions are acquired per
// operation and must be closed on every exit path.
type Session interface {
	// Navigate loads the URL and returns the rendered page.
	Navigate(ctx context.Context, url string) (*Page, error)
	// Close releases the underlying browser process.
	Close() error
}

// Navigator opens ephemeral sessions. Cookies, when given, are loaded
// into the fresh browser context before any navigation.
type Navigator interface {
	Open(ctx context.Context, cookies []market.Cookie) (Session, error)
}

// Config holds browser launch and navigation settings.
type Config struct {
	Headless    bool
	NoSandbox   bool
	UserAgent   string
	NavTimeout  time.Duration // per-navigation budget
	SettleDelay time.Duration // extra wait for late JS-inserted nodes
}

// DefaultConfig returns settings suitable for server environments.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		NoSandbox:   true,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		NavTimeout:  15 * time.Second,
		SettleDelay: 2 * time.Second,
	}
}
