package market

import (
	"fmt"
	"regexp"
)

// urlShape is the single shared URL-shape check applied by every
// converter before marketplace-specific work: http/https scheme, a
// valid hostname, localhost, or an IPv4 address, an optional port and
// an optional path.
var urlShape = regexp.MustCompile(
	`(?i)^https?://` +
		`(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,6}\.?` +
		`|localhost` +
		`|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`(?::\d+)?` +
		`(?:/?|[/?]\S+)$`,
)

// ValidateURLShape returns ErrInvalidLink when the link does not look
// like a plausible product URL.
func ValidateURLShape(link string) error {
	if !urlShape.MatchString(link) {
		return fmt.Errorf("%w: malformed URL: %s", ErrInvalidLink, link)
	}
	return nil
}
