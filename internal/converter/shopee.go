package converter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promozone/afflink/pkg/market"
)

var shopeeDomains = []string{"shopee.com.br", "s.shopee.com.br", "shope.ee"}

// ShopeeOptions configures the signed-API converter.
type ShopeeOptions struct {
	AppID       string
	AppSecret   string
	SubID       string
	APIEndpoint string
	HTTPTimeout time.Duration
}

// Shopee converts links through the official affiliate Open API: a
// GraphQL generateShortLink mutation signed with
// SHA256(appID + timestamp + body + secret). Stateless per call; no
// cookie file is involved.
type Shopee struct {
	opts   ShopeeOptions
	client *http.Client
	logger *zap.Logger
}

// NewShopee builds the converter; both credentials are mandatory.
func NewShopee(opts ShopeeOptions, logger *zap.Logger) (*Shopee, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AppID == "" || opts.AppSecret == "" {
		return nil, fmt.Errorf("%w: shopee app id and secret are required", market.ErrCredentialsMissing)
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = "https://open-api.affiliate.shopee.com.br/graphql"
	}
	if opts.SubID == "" {
		opts.SubID = "promozonestories"
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 15 * time.Second
	}

	return &Shopee{
		opts:   opts,
		client: &http.Client{Timeout: opts.HTTPTimeout},
		logger: logger,
	}, nil
}

// Marketplace implements market.Converter.
func (s *Shopee) Marketplace() string { return market.Shopee }

// ConvertLink requests a short link from the Open API. Rate limiting is
// a documented soft fallback for this marketplace (unlike Mercado
// Livre); credential rejection and malformed responses stay hard.
func (s *Shopee) ConvertLink(ctx context.Context, original string) (string, error) {
	if !isShopeeLink(original) {
		err := fmt.Errorf("%w: not a shopee link: %s", market.ErrInvalidLink, original)
		market.LogConversion(s.logger, market.Shopee, original, "", market.LogStatusError, err)
		return "", err
	}

	if err := market.ValidateURLShape(original); err != nil {
		market.LogConversion(s.logger, market.Shopee, original, "", market.LogStatusError, err)
		return "", err
	}

	shortLink, err := s.generateShortLink(ctx, original)
	switch {
	case err == nil:
		market.LogConversion(s.logger, market.Shopee, original, shortLink, market.StatusSuccess, nil)
		return shortLink, nil

	case errors.Is(err, market.ErrRateLimited):
		market.LogConversion(s.logger, market.Shopee, original, original, market.StatusFallback, err)
		return original, nil

	case errors.Is(err, market.ErrInvalidSession), errors.Is(err, market.ErrAPI):
		market.LogConversion(s.logger, market.Shopee, original, "", market.LogStatusError, err)
		return "", err

	default:
		// Network hiccups and other surprises degrade to the original.
		market.LogConversion(s.logger, market.Shopee, original, original, market.StatusFallback, err)
		return original, nil
	}
}

// LoadCredentials returns an empty bundle: this marketplace signs with
// app credentials instead of cookies.
func (s *Shopee) LoadCredentials(context.Context) (*market.CredentialBundle, error) {
	return &market.CredentialBundle{}, nil
}

// ValidateCredentials reports whether both app credentials are set.
func (s *Shopee) ValidateCredentials(context.Context) (bool, error) {
	return s.opts.AppID != "" && s.opts.AppSecret != "", nil
}

type shopeeRequest struct {
	Query string `json:"query"`
}

type shopeeResponse struct {
	Data struct {
		GenerateShortLink struct {
			ShortLink string `json:"shortLink"`
		} `json:"generateShortLink"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *Shopee) generateShortLink(ctx context.Context, originalURL string) (string, error) {
	// Up to five tracking sub-IDs; the first carries the default tag.
	mutation := "mutation {\n" +
		"    generateShortLink(input: {\n" +
		fmt.Sprintf("        originUrl: %q,\n", originalURL) +
		fmt.Sprintf("        subIds: [%q, \"\", \"\", \"\", \"\"]\n", s.opts.SubID) +
		"    }) {\n" +
		"        shortLink\n" +
		"    }\n" +
		"}"

	// json.Marshal emits the compact form the signature scheme requires.
	body, err := json.Marshal(shopeeRequest{Query: mutation})
	if err != nil {
		return "", fmt.Errorf("encoding graphql request: %w", err)
	}

	timestamp := strconv.FormatInt(timeNow().Unix(), 10)
	signature := SignShopeeRequest(s.opts.AppID, s.opts.AppSecret, timestamp, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.APIEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization",
		fmt.Sprintf("SHA256 Credential=%s, Signature=%s, Timestamp=%s", s.opts.AppID, signature, timestamp))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling shopee open api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: shopee open api throttled the request", market.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: shopee rejected the app credentials", market.ErrInvalidSession)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: shopee open api returned status %d", market.ErrAPI, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading api response: %w", err)
	}

	var parsed shopeeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: undecodable api response: %v", market.ErrAPI, err)
	}

	if len(parsed.Errors) > 0 {
		return "", fmt.Errorf("%w: graphql error: %s", market.ErrAPI, parsed.Errors[0].Message)
	}
	if parsed.Data.GenerateShortLink.ShortLink == "" {
		return "", fmt.Errorf("%w: api response has no shortLink", market.ErrAPI)
	}

	return parsed.Data.GenerateShortLink.ShortLink, nil
}

// SignShopeeRequest computes the Open API signature:
// SHA256(appID + unixTimestampSeconds + compactBody + appSecret), hex.
func SignShopeeRequest(appID, appSecret, timestamp string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(appID))
	h.Write([]byte(timestamp))
	h.Write(body)
	h.Write([]byte(appSecret))
	return hex.EncodeToString(h.Sum(nil))
}

func isShopeeLink(url string) bool {
	lower := strings.ToLower(url)
	for _, d := range shopeeDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}
