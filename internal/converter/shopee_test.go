package converter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promozone/afflink/pkg/market"
)

const shopeeProductLink = "https://shopee.com.br/produto-teste-i.123.456"

func newTestShopee(t *testing.T, endpoint string) *Shopee {
	t.Helper()
	s, err := NewShopee(ShopeeOptions{
		AppID:       "app-id",
		AppSecret:   "app-secret",
		APIEndpoint: endpoint,
	}, nil)
	require.NoError(t, err)
	return s
}

func shopeeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSignShopeeRequest(t *testing.T) {
	got := SignShopeeRequest("A", "S", "1000", []byte(`{"query":"Q"}`))
	assert.Equal(t, "dd022c18105d185ca77db17c090c242cb8d301d98a1ea7a14eea5bc647d494a1", got)
}

func TestNewShopeeRequiresCredentials(t *testing.T) {
	_, err := NewShopee(ShopeeOptions{AppID: "id"}, nil)
	assert.ErrorIs(t, err, market.ErrCredentialsMissing)

	_, err = NewShopee(ShopeeOptions{AppSecret: "secret"}, nil)
	assert.ErrorIs(t, err, market.ErrCredentialsMissing)
}

func TestIsShopeeLink(t *testing.T) {
	assert.True(t, isShopeeLink(shopeeProductLink))
	assert.True(t, isShopeeLink("https://s.shopee.com.br/1abcD"))
	assert.True(t, isShopeeLink("https://shope.ee/1abcD"))
	assert.False(t, isShopeeLink("https://amazon.com.br/dp/B08N5WRWNW"))
}

func TestShopeeConvertLink(t *testing.T) {
	authPattern := regexp.MustCompile(`^SHA256 Credential=app-id, Signature=([0-9a-f]{64}), Timestamp=(\d+)$`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		match := authPattern.FindStringSubmatch(r.Header.Get("Authorization"))
		require.NotNil(t, match, "authorization header: %s", r.Header.Get("Authorization"))
		assert.Equal(t, SignShopeeRequest("app-id", "app-secret", match[2], body), match[1])

		assert.Contains(t, string(body), "generateShortLink")
		assert.Contains(t, string(body), shopeeProductLink)

		w.Write([]byte(`{"data":{"generateShortLink":{"shortLink":"https://s.shopee.com.br/SHORT"}}}`))
	}))
	defer server.Close()

	s := newTestShopee(t, server.URL)
	link, err := s.ConvertLink(context.Background(), shopeeProductLink)
	require.NoError(t, err)
	assert.Equal(t, "https://s.shopee.com.br/SHORT", link)
}

func TestShopeeConvertLinkRejectsOtherMarketplaces(t *testing.T) {
	s := newTestShopee(t, "http://unused.test")
	_, err := s.ConvertLink(context.Background(), "https://mercadolivre.com.br/p/MLB123")
	assert.ErrorIs(t, err, market.ErrInvalidLink)
}

func TestShopeeConvertLinkStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		fallback bool
	}{
		{name: "rate limited falls back", status: 429, fallback: true},
		{name: "bad credentials are hard", status: 401, wantErr: market.ErrInvalidSession},
		{name: "server error is hard", status: 500, wantErr: market.ErrAPI},
		{
			name:    "graphql error is hard",
			status:  200,
			body:    `{"errors":[{"message":"invalid origin url"}]}`,
			wantErr: market.ErrAPI,
		},
		{name: "missing shortLink is hard", status: 200, body: `{"data":{}}`, wantErr: market.ErrAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := shopeeServer(t, tt.status, tt.body)
			s := newTestShopee(t, server.URL)

			link, err := s.ConvertLink(context.Background(), shopeeProductLink)
			if tt.fallback {
				require.NoError(t, err)
				assert.Equal(t, shopeeProductLink, link, "soft fallback returns the original link")
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestShopeeConvertLinkNetworkFailureFallsBack(t *testing.T) {
	// Endpoint that nothing listens on.
	s := newTestShopee(t, "http://127.0.0.1:1/graphql")

	link, err := s.ConvertLink(context.Background(), shopeeProductLink)
	require.NoError(t, err)
	assert.Equal(t, shopeeProductLink, link)
}

func TestShopeeValidateCredentials(t *testing.T) {
	s := newTestShopee(t, "http://unused.test")

	valid, err := s.ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)

	bundle, err := s.LoadCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}
