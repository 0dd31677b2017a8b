// Package affiliate dispatches product URLs to marketplace converters
// and guarantees callers always get a usable link back.
package affiliate

import (
	"net/url"
	"sort"
	"strings"
)

// defaultDomains maps marketplace domains to identifiers. Regional
// subdomains are handled by the substring pass in Detect.
var defaultDomains = map[string]string{
	"mercadolivre.com.br":         "mercadolivre",
	"produto.mercadolivre.com.br": "mercadolivre",
	"mercadolivre.com":            "mercadolivre",
	"mercadolibre.com":            "mercadolivre",
	"amazon.com.br":               "amazon",
	"amazon.com":                  "amazon",
	"amzn.to":                     "amazon",
	"shopee.com.br":               "shopee",
	"s.shopee.com.br":             "shopee",
	"shope.ee":                    "shopee",
}

// Detector maps a URL's host to a marketplace identifier. It is
// deterministic and performs no I/O.
type Detector struct {
	domains map[string]string
	// ordered keeps substring matching deterministic.
	ordered []string
}

// NewDetector builds a detector over the default domain table.
func NewDetector() *Detector {
	return NewDetectorWithDomains(defaultDomains)
}

// NewDetectorWithDomains builds a detector over a custom table.
func NewDetectorWithDomains(domains map[string]string) *Detector {
	ordered := make([]string, 0, len(domains))
	for d := range domains {
		ordered = append(ordered, d)
	}
	// Longest first so produto.mercadolivre.com.br beats mercadolivre.com.
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	return &Detector{domains: domains, ordered: ordered}
}

// Detect returns the marketplace identifier for the URL, or "" when no
// registered domain matches (including malformed URLs).
func (d *Detector) Detect(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}

	if marketplace, ok := d.domains[host]; ok {
		return marketplace
	}

	// Regional subdomains: accept any registered domain contained in
	// the host.
	for _, domain := range d.ordered {
		if strings.Contains(host, domain) {
			return d.domains[domain]
		}
	}

	return ""
}
