package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/promozone/afflink/internal/browser"
	"github.com/promozone/afflink/internal/credentials"
	"github.com/promozone/afflink/pkg/market"
)

var mlDomains = []*regexp.Regexp{
	regexp.MustCompile(`mercadolivre\.com\.br`),
	regexp.MustCompile(`mercadolivre\.com`), // short links: mercadolivre.com/sec/xxxxx
	regexp.MustCompile(`mercadolibre\.com`),
	regexp.MustCompile(`produto\.mercadolivre\.com\.br`),
}

// MLB-3967173105 or MLB3967173105.
var mlProductID = regexp.MustCompile(`MLB-?\d+`)

// Cookies the internal affiliate API requires. nsa_rotok carries a
// JWT whose exp claim is checked as a best-effort session-expiry hint.
var mlRequiredCookies = []string{"ssid", "nsa_rotok", "_csrf"}

// Pages tried in order when acquiring a CSRF token.
var defaultCsrfPages = []string{
	"https://produto.mercadolivre.com.br/",
	"https://www.mercadolivre.com.br/",
}

// Texts marking a "go to product" control on affiliate landing pages.
var mlProductButtonTexts = []string{"Ir para produto", "Ver produto", "Acessar produto"}

// MercadoLivreOptions configures the session-scraping converter.
type MercadoLivreOptions struct {
	CookieFile  string
	Tag         string
	APIEndpoint string
	CsrfPages   []string
	MinInterval time.Duration // client-side spacing of API calls
	HTTPTimeout time.Duration
}

// MercadoLivre converts links through Mercado Livre's internal
// affiliate API: session cookies from the credential file, a CSRF token
// scraped from a rendered page, then a POST with {url, tag}.
type MercadoLivre struct {
	opts    MercadoLivreOptions
	store   *credentials.Store
	nav     browser.Navigator
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	// mu guards the lazily-loaded bundle and the cached CSRF token.
	// Both cache slots are replaced atomically under the lock; a
	// concurrent redundant acquisition is tolerated, corruption is not.
	mu        sync.Mutex
	bundle    *market.CredentialBundle
	csrfToken string
}

// NewMercadoLivre builds the converter. Construction never touches the
// credential file; cookies are loaded lazily on first use.
func NewMercadoLivre(opts MercadoLivreOptions, nav browser.Navigator, logger *zap.Logger) *MercadoLivre {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = "https://www.mercadolivre.com.br/affiliate-program/api/v2/stripe/user/links"
	}
	if len(opts.CsrfPages) == 0 {
		opts.CsrfPages = defaultCsrfPages
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 15 * time.Second
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &MercadoLivre{
		opts:    opts,
		store:   credentials.NewStore(opts.CookieFile),
		nav:     nav,
		client:  &http.Client{Timeout: opts.HTTPTimeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Marketplace implements market.Converter.
func (m *MercadoLivre) Marketplace() string { return market.MercadoLivre }

// ConvertLink runs the full flow: credential check, optional unwrap of
// an already-affiliate link, CSRF acquisition, API request.
//
// Failure policy is asymmetric on purpose: rate limiting, invalid
// sessions and missing products propagate as hard errors because they
// need operator action, while any other API-stage surprise degrades to
// the original link.
func (m *MercadoLivre) ConvertLink(ctx context.Context, original string) (string, error) {
	if !matchesAny(original, mlDomains) {
		err := fmt.Errorf("%w: not a mercado livre link: %s", market.ErrInvalidLink, original)
		market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
		return "", err
	}

	productLink := original
	if isMLAffiliateLink(original) {
		m.logger.Info("affiliate link detected, unwrapping product link", zap.String("link", original))
		unwrapped, err := m.unwrapAffiliateLink(ctx, original)
		if err != nil {
			market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
			return "", err
		}
		productLink = unwrapped
	}

	if err := market.ValidateURLShape(productLink); err != nil {
		market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
		return "", err
	}

	if err := m.ensureSession(ctx); err != nil {
		market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
		return "", err
	}

	csrf, err := m.ensureCsrfToken(ctx)
	if err != nil {
		market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
		return "", err
	}

	affiliateLink, err := m.requestShortLink(ctx, productLink, csrf)
	switch {
	case err == nil:
		market.LogConversion(m.logger, market.MercadoLivre, original, affiliateLink, market.StatusSuccess, nil)
		return affiliateLink, nil

	case errors.Is(err, market.ErrRateLimited),
		errors.Is(err, market.ErrInvalidSession),
		errors.Is(err, market.ErrProductNotFound):
		// The marketplace told us something specific and actionable.
		market.LogConversion(m.logger, market.MercadoLivre, original, "", market.LogStatusError, err)
		return "", err

	default:
		// Something broke; the original link is still usable.
		market.LogConversion(m.logger, market.MercadoLivre, original, original, market.StatusFallback, err)
		return original, nil
	}
}

// LoadCredentials reads the cookie file. For Mercado Livre the file is
// mandatory; a missing file is a hard failure.
func (m *MercadoLivre) LoadCredentials(_ context.Context) (*market.CredentialBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *MercadoLivre) loadLocked() (*market.CredentialBundle, error) {
	if m.bundle != nil {
		return m.bundle, nil
	}

	bundle, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	m.logger.Info("mercado livre cookies loaded", zap.Int("count", len(bundle.Cookies)))
	m.bundle = bundle
	// New credentials void any token scraped under the old session.
	m.csrfToken = ""
	return bundle, nil
}

// ValidateCredentials checks the required cookies are present and the
// session JWT's exp claim has not passed.
func (m *MercadoLivre) ValidateCredentials(ctx context.Context) (bool, error) {
	bundle, err := m.LoadCredentials(ctx)
	if err != nil {
		return false, err
	}
	return m.validateBundle(bundle), nil
}

func (m *MercadoLivre) validateBundle(bundle *market.CredentialBundle) bool {
	if bundle.Empty() {
		return false
	}

	for _, name := range mlRequiredCookies {
		if _, ok := bundle.Cookie(name); !ok {
			m.logger.Warn("required mercado livre cookie missing", zap.String("cookie", name))
			return false
		}
	}

	token, _ := bundle.Cookie("nsa_rotok")
	if token.Value != "" {
		exp, err := credentials.TokenExpiry(token.Value)
		if err != nil {
			m.logger.Warn("could not read session token expiry", zap.Error(err))
			return false
		}
		if exp < timeNow().Unix() {
			m.logger.Warn("mercado livre session token expired")
			return false
		}
	}

	return true
}

// ensureSession lazily loads cookies and rejects expired sessions.
// There is no fallback from here: an invalid session needs the operator
// to regenerate the cookie file.
func (m *MercadoLivre) ensureSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bundle, err := m.loadLocked()
	if err != nil {
		if isMissing(err) {
			return fmt.Errorf("%w: %v", market.ErrInvalidSession, err)
		}
		return err
	}

	if !m.validateBundle(bundle) {
		return fmt.Errorf("%w: cookies expired or incomplete, regenerate the mercado livre session", market.ErrInvalidSession)
	}

	return nil
}

func isMLAffiliateLink(url string) bool {
	return strings.Contains(url, "/social/") ||
		strings.Contains(url, "/sec/") ||
		strings.Contains(url, "matt_tool=")
}

// unwrapAffiliateLink renders the affiliate landing page and extracts
// the true product link. Wrapping is unwrapped at most once; a link
// that is still an affiliate shape after one unwrap is not recursed.
func (m *MercadoLivre) unwrapAffiliateLink(ctx context.Context, affiliateURL string) (string, error) {
	session, err := m.nav.Open(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: opening browser for unwrap: %v", market.ErrConversion, err)
	}
	defer session.Close()

	page, err := session.Navigate(ctx, affiliateURL)
	if err != nil {
		return "", fmt.Errorf("%w: loading affiliate page: %v", market.ErrConversion, err)
	}

	link := extractProductLink(page.HTML)
	if link == "" {
		snippet := page.HTML
		if len(snippet) > 1000 {
			snippet = snippet[:1000]
		}
		return "", fmt.Errorf("%w: no product link on affiliate page %s (page starts: %s)",
			market.ErrConversion, affiliateURL, snippet)
	}

	m.logger.Info("product link unwrapped", zap.String("product_link", link))
	return link, nil
}

// extractProductLink tries three strategies in order; first hit wins.
func extractProductLink(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Strategy 1: anchors explicitly carrying the product-ID marker.
	for _, sel := range []string{
		`a[href*="produto.mercadolivre.com.br/MLB-"]`,
		`a[href*="/MLB-"]`,
	} {
		if href := firstProductHref(doc.Find(sel)); href != "" {
			return href
		}
	}

	// Strategy 2: a "go to product" control, or a link wrapping one.
	var fromButton string
	doc.Find("button, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		for _, label := range mlProductButtonTexts {
			if !strings.Contains(text, label) {
				continue
			}
			if href, ok := s.Attr("href"); ok && mlProductID.MatchString(href) {
				fromButton = href
				return false
			}
			if href := firstProductHref(s.Closest("a")); href != "" {
				fromButton = href
				return false
			}
			if href := firstProductHref(s.Parent().Find("a")); href != "" {
				fromButton = href
				return false
			}
		}
		return true
	})
	if fromButton != "" {
		return fromButton
	}

	// Strategy 3: any anchor anywhere containing a product ID.
	return firstProductHref(doc.Find("a"))
}

func firstProductHref(sel *goquery.Selection) string {
	var found string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && mlProductID.MatchString(href) {
			found = href
			return false
		}
		return true
	})
	return found
}

// ensureCsrfToken returns the cached token or scrapes a fresh one from
// the candidate pages. The token lives for the converter instance only
// and is voided by a credential reload.
func (m *MercadoLivre) ensureCsrfToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.csrfToken != "" {
		token := m.csrfToken
		m.mu.Unlock()
		return token, nil
	}
	var cookies []market.Cookie
	if m.bundle != nil {
		cookies = m.bundle.Cookies
	}
	m.mu.Unlock()

	token, err := m.scrapeCsrfToken(ctx, cookies)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.csrfToken = token
	m.mu.Unlock()
	return token, nil
}

func (m *MercadoLivre) scrapeCsrfToken(ctx context.Context, cookies []market.Cookie) (string, error) {
	session, err := m.nav.Open(ctx, cookies)
	if err != nil {
		return "", fmt.Errorf("%w: opening browser for csrf token: %v", market.ErrConversion, err)
	}
	defer session.Close()

	for _, pageURL := range m.opts.CsrfPages {
		page, err := session.Navigate(ctx, pageURL)
		if err != nil {
			m.logger.Warn("csrf candidate page failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		if token := extractCsrfMeta(page.HTML); token != "" {
			m.logger.Info("csrf token acquired", zap.String("page", pageURL))
			return token, nil
		}
		m.logger.Warn("csrf token not present on page", zap.String("url", pageURL))
	}

	return "", fmt.Errorf("%w: no candidate page yielded a csrf token; cookies may be expired or the page structure changed",
		market.ErrConversion)
}

func extractCsrfMeta(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	content, _ := doc.Find(`meta[name="csrf-token"]`).First().Attr("content")
	return content
}

type mlLinkRequest struct {
	URL string `json:"url"`
	Tag string `json:"tag"`
}

type mlLinkResponse struct {
	ShortURL string `json:"short_url"`
}

// requestShortLink POSTs to the internal affiliate API with the CSRF
// token and the session cookies attached.
func (m *MercadoLivre) requestShortLink(ctx context.Context, productLink, csrf string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting on api rate limiter: %w", err)
	}

	body, err := json.Marshal(mlLinkRequest{URL: productLink, Tag: m.opts.Tag})
	if err != nil {
		return "", fmt.Errorf("encoding api request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.APIEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("x-csrf-token", csrf)
	req.Header.Set("Origin", "https://produto.mercadolivre.com.br")
	req.Header.Set("Referer", "https://produto.mercadolivre.com.br/")

	m.mu.Lock()
	var cookies []market.Cookie
	if m.bundle != nil {
		cookies = m.bundle.Cookies
	}
	m.mu.Unlock()
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling affiliate api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: mercado livre throttled the affiliate api", market.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: session or csrf token rejected, regenerate the mercado livre session", market.ErrInvalidSession)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", market.ErrProductNotFound, productLink)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: affiliate api returned status %d", market.ErrAPI, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading api response: %w", err)
	}

	var parsed mlLinkResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: undecodable api response: %v", market.ErrAPI, err)
	}
	if parsed.ShortURL == "" {
		return "", fmt.Errorf("%w: api response has no short_url", market.ErrAPI)
	}

	return parsed.ShortURL, nil
}
