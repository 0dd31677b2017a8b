// Package converter implements the marketplace-specific affiliate
// converters registered with the affiliate manager.
package converter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/promozone/afflink/internal/browser"
	"github.com/promozone/afflink/internal/credentials"
	"github.com/promozone/afflink/pkg/market"
)

// Associate tags look like "promozone-20" or "tech.store-br-21":
// alphanumeric/dot segments separated by hyphens, numeric suffix.
var associateTagPattern = regexp.MustCompile(`^[A-Za-z0-9.]+(-[A-Za-z0-9.]+)*-\d+$`)

var amazonDomains = []*regexp.Regexp{
	regexp.MustCompile(`amazon\.com\.br`),
	regexp.MustCompile(`amazon\.com`),
	regexp.MustCompile(`amzn\.to`), // URL shortener
}

// ASIN extraction patterns, tried in order; first match wins.
var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`/ASIN/([A-Z0-9]{10})`),
}

// Critical cookies checked when a (purely optional) Amazon credential
// file is present.
var amazonCriticalCookies = []string{"session-id", "ubid-acbbr"}

// Amazon converts product links by appending the Associate tag as a
// query parameter. No API call is involved; cookies are optional and
// only used by the advisory product-existence check.
type Amazon struct {
	tag    string
	store  *credentials.Store
	nav    browser.Navigator
	logger *zap.Logger

	mu     sync.Mutex
	bundle *market.CredentialBundle
}

// NewAmazon builds the converter. The Associate tag is validated here,
// once, rather than per conversion.
func NewAmazon(tag, cookieFile string, nav browser.Navigator, logger *zap.Logger) (*Amazon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !associateTagPattern.MatchString(tag) {
		return nil, fmt.Errorf("%w: invalid associate tag %q (expected format: name-tag-20)", market.ErrInvalidLink, tag)
	}

	logger.Info("amazon converter initialized", zap.String("associate_tag", tag))

	return &Amazon{
		tag:    tag,
		store:  credentials.NewStore(cookieFile),
		nav:    nav,
		logger: logger,
	}, nil
}

// Marketplace implements market.Converter.
func (a *Amazon) Marketplace() string { return market.Amazon }

// ConvertLink extracts the ASIN and builds the tagged product URL.
func (a *Amazon) ConvertLink(ctx context.Context, original string) (string, error) {
	if !matchesAny(original, amazonDomains) {
		err := fmt.Errorf("%w: not an amazon link: %s", market.ErrInvalidLink, original)
		market.LogConversion(a.logger, market.Amazon, original, "", market.LogStatusError, err)
		return "", err
	}

	if err := market.ValidateURLShape(original); err != nil {
		market.LogConversion(a.logger, market.Amazon, original, "", market.LogStatusError, err)
		return "", err
	}

	asin := extractASIN(original)
	if asin == "" {
		err := fmt.Errorf("%w: could not extract ASIN from %s", market.ErrConversion, original)
		market.LogConversion(a.logger, market.Amazon, original, "", market.LogStatusError, err)
		return "", err
	}

	affiliateLink := fmt.Sprintf("https://amazon.com.br/dp/%s?tag=%s", asin, a.tag)
	market.LogConversion(a.logger, market.Amazon, original, affiliateLink, market.StatusSuccess, nil)
	return affiliateLink, nil
}

// LoadCredentials reads the optional cookie file. A missing file yields
// an empty bundle, not an error.
func (a *Amazon) LoadCredentials(_ context.Context) (*market.CredentialBundle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadLocked()
}

func (a *Amazon) loadLocked() (*market.CredentialBundle, error) {
	if a.bundle != nil {
		return a.bundle, nil
	}

	bundle, err := a.store.Load()
	if err != nil {
		if isMissing(err) {
			a.logger.Warn("amazon cookie file not found; cookies are optional for amazon",
				zap.String("path", a.store.Path()))
			a.bundle = &market.CredentialBundle{}
			return a.bundle, nil
		}
		return nil, err
	}

	if bundle.AssociateTag != "" && bundle.AssociateTag != a.tag {
		a.logger.Warn("associate tag mismatch between cookie file and config",
			zap.String("file_tag", bundle.AssociateTag),
			zap.String("config_tag", a.tag))
	}

	a.logger.Info("amazon cookies loaded", zap.Int("count", len(bundle.Cookies)))
	a.bundle = bundle
	return bundle, nil
}

// ValidateCredentials is permissive: no cookies is fine, and a present
// bundle only needs the critical cookies unexpired.
func (a *Amazon) ValidateCredentials(ctx context.Context) (bool, error) {
	bundle, err := a.LoadCredentials(ctx)
	if err != nil {
		return false, err
	}
	if bundle.Empty() {
		return true, nil
	}

	for _, name := range amazonCriticalCookies {
		if _, ok := bundle.Cookie(name); !ok {
			a.logger.Warn("critical amazon cookie missing", zap.String("cookie", name))
			return false, nil
		}
	}

	return credentials.Valid(bundle, timeNow()), nil
}

// ValidateProductExists navigates to the affiliate link in a transient
// browser session and classifies the response. It is advisory only:
// callers must never fail a conversion on its account.
func (a *Amazon) ValidateProductExists(ctx context.Context, affiliateLink string) error {
	bundle, err := a.LoadCredentials(ctx)
	if err != nil {
		bundle = &market.CredentialBundle{}
	}

	session, err := a.nav.Open(ctx, bundle.Cookies)
	if err != nil {
		return fmt.Errorf("%w: opening browser session: %v", market.ErrConversion, err)
	}
	defer session.Close()

	page, err := session.Navigate(ctx, affiliateLink)
	if err != nil {
		return fmt.Errorf("%w: probing product page: %v", market.ErrConversion, err)
	}

	switch {
	case page.StatusCode == 404:
		return fmt.Errorf("%w: %s", market.ErrProductNotFound, affiliateLink)
	case page.StatusCode == 429 || page.StatusCode == 503:
		return fmt.Errorf("%w: amazon throttled the probe", market.ErrRateLimited)
	case page.StatusCode == 200:
		body := strings.ToLower(page.HTML)
		if strings.Contains(body, "captcha") || strings.Contains(body, "robot") {
			return fmt.Errorf("%w: amazon served a challenge page", market.ErrCaptchaDetected)
		}
		return nil
	default:
		a.logger.Warn("unexpected status probing amazon product", zap.Int("status", page.StatusCode))
		return nil
	}
}

func extractASIN(url string) string {
	for _, p := range asinPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
