package converter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promozone/afflink/internal/browser"
	"github.com/promozone/afflink/pkg/market"
)

// fakeSession serves canned pages keyed by URL.
type fakeSession struct {
	pages   map[string]browser.Page
	navErr  error
	visited []string
	closed  bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) (*browser.Page, error) {
	s.visited = append(s.visited, url)
	if s.navErr != nil {
		return nil, s.navErr
	}
	page, ok := s.pages[url]
	if !ok {
		return &browser.Page{URL: url, StatusCode: 200, HTML: "<html></html>"}, nil
	}
	if page.URL == "" {
		page.URL = url
	}
	return &page, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeNavigator hands out the configured session and records usage.
type fakeNavigator struct {
	session     *fakeSession
	openErr     error
	opens       int
	lastCookies []market.Cookie
}

func (n *fakeNavigator) Open(_ context.Context, cookies []market.Cookie) (browser.Session, error) {
	n.opens++
	n.lastCookies = cookies
	if n.openErr != nil {
		return nil, n.openErr
	}
	return n.session, nil
}

// makeJWT builds an unsigned JWT-shaped token with the given exp claim.
func makeJWT(t *testing.T, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp)))
	return header + "." + payload + ".sig"
}

// writeCookieFile writes a credential bundle to a temp file and returns
// its path.
func writeCookieFile(t *testing.T, bundle market.CredentialBundle) string {
	t.Helper()
	data, err := json.Marshal(bundle)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// mlSessionCookies returns a complete, unexpired Mercado Livre cookie
// set.
func mlSessionCookies(t *testing.T) []market.Cookie {
	t.Helper()
	return []market.Cookie{
		{Name: "ssid", Value: "session-value"},
		{Name: "nsa_rotok", Value: makeJWT(t, time.Now().Add(time.Hour).Unix())},
		{Name: "_csrf", Value: "csrf-cookie"},
	}
}
