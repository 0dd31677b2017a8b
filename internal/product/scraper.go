// Package product scrapes display metadata (title, image, prices) from
// marketplace product pages. The data feeds promotional content; it is
// best effort and never participates in link conversion.
package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Info is the scraped product card.
type Info struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	ImageURL    string `json:"image_url,omitempty"`
	Price       string `json:"price,omitempty"`
	OldPrice    string `json:"old_price,omitempty"`
	Description string `json:"description,omitempty"`
}

// Selectors tried in order for the current price, covering the
// supported marketplaces' product pages.
var priceSelectors = []string{
	".a-price .a-offscreen",              // amazon
	".andes-money-amount__fraction",      // mercado livre
	`meta[property="product:price:amount"]`,
	`[itemprop="price"]`,
}

var oldPriceSelectors = []string{
	".basisPrice .a-text-price .a-offscreen", // amazon strike-through
	"s .andes-money-amount__fraction",        // mercado livre strike-through
}

// Scraper fetches product pages over plain HTTP.
type Scraper struct {
	collector *colly.Collector
	logger    *zap.Logger
}

// NewScraper builds a scraper with the given request timeout and
// user agent.
func NewScraper(timeout time.Duration, userAgent string, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	if userAgent != "" {
		c.UserAgent = userAgent
	}
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	return &Scraper{collector: c, logger: logger}
}

// Fetch retrieves the page and extracts the product card. Extraction is
// lenient: a page with only a title still yields an Info.
func (s *Scraper) Fetch(ctx context.Context, url string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := &Info{URL: url}
	var fetchErr error

	// Clone so each fetch gets clean collector state.
	c := s.collector.Clone()

	c.OnHTML("html", func(e *colly.HTMLElement) {
		extract(info, e.DOM)
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetching product page (status %d): %w", status, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("fetching product page: %w", err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if info.Title == "" {
		return nil, fmt.Errorf("no product metadata found at %s", url)
	}

	s.logger.Debug("product metadata scraped",
		zap.String("url", url),
		zap.String("title", info.Title))
	return info, nil
}

func extract(info *Info, doc *goquery.Selection) {
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && v != "" {
		info.Title = strings.TrimSpace(v)
	} else {
		info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		info.ImageURL = strings.TrimSpace(v)
	}

	if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		info.Description = strings.TrimSpace(v)
	}

	info.Price = firstText(doc, priceSelectors)
	info.OldPrice = firstText(doc, oldPriceSelectors)
}

func firstText(doc *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if content, ok := node.Attr("content"); ok && content != "" {
			return strings.TrimSpace(content)
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}
