package market

import "errors"

// Error taxonomy for affiliate conversion. Converters wrap these
// sentinels with detail (fmt.Errorf("%w: ...")); callers match with
// errors.Is.
var (
	// ErrInvalidLink marks a malformed URL or one belonging to a
	// different marketplace than the converter handling it.
	ErrInvalidLink = errors.New("invalid link")

	// ErrConversion marks a generic marketplace-specific failure, e.g.
	// product-ID extraction or page-structure changes.
	ErrConversion = errors.New("conversion failed")

	// ErrCredentialsMissing marks an absent credential store for a
	// marketplace that requires one.
	ErrCredentialsMissing = errors.New("credentials missing")

	// ErrInvalidSession marks expired or incomplete credentials.
	ErrInvalidSession = errors.New("invalid session")

	// ErrRateLimited marks marketplace throttling.
	ErrRateLimited = errors.New("rate limited")

	// ErrProductNotFound marks a product the marketplace does not know.
	ErrProductNotFound = errors.New("product not found")

	// ErrAPI marks an unexpected upstream response shape or status.
	ErrAPI = errors.New("marketplace api error")

	// ErrMarketplaceNotSupported marks a detected marketplace with no
	// registered converter.
	ErrMarketplaceNotSupported = errors.New("marketplace not supported")

	// ErrCaptchaDetected is advisory only, reported by optional
	// validation paths; it never fails a conversion.
	ErrCaptchaDetected = errors.New("captcha detected")
)
