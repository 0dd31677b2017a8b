package affiliate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"mercado livre product page", "https://produto.mercadolivre.com.br/MLB-123-item", "mercadolivre"},
		{"mercado livre short link", "https://mercadolivre.com/sec/1abcD", "mercadolivre"},
		{"mercado livre with www", "https://www.mercadolivre.com.br/p/MLB123", "mercadolivre"},
		{"mercado libre regional", "https://articulo.mercadolibre.com.ar/MLA-123", "mercadolivre"},
		{"amazon brazil", "https://amazon.com.br/dp/B08N5WRWNW", "amazon"},
		{"amazon short link", "https://amzn.to/3xYz", "amazon"},
		{"amazon regional subdomain", "https://music.amazon.com.br/", "amazon"},
		{"shopee", "https://shopee.com.br/produto-i.1.2", "shopee"},
		{"shopee short link", "https://s.shopee.com.br/1abcD", "shopee"},
		{"shope.ee", "https://shope.ee/1abcD", "shopee"},
		{"unknown store", "https://magazineluiza.com.br/produto/123", ""},
		{"no host", "not a url at all", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.url))
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	d := NewDetector()
	const url = "https://produto.mercadolivre.com.br/MLB-123"

	first := d.Detect(url)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, d.Detect(url))
	}
}

func TestDetectCustomDomains(t *testing.T) {
	d := NewDetectorWithDomains(map[string]string{"example.test": "example"})

	assert.Equal(t, "example", d.Detect("https://example.test/p/1"))
	assert.Equal(t, "", d.Detect("https://amazon.com.br/dp/B08N5WRWNW"))
}
