package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/promozone/afflink/pkg/market"
)

// RodNavigator opens sessions backed by a headless Chrome instance
// launched per operation via Rod.
type RodNavigator struct {
	cfg    Config
	logger *zap.Logger
}

// NewRodNavigator creates a Rod-based navigator.
func NewRodNavigator(cfg Config, logger *zap.Logger) *RodNavigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodNavigator{cfg: cfg, logger: logger}
}

// Open launches a fresh browser, loads the given cookies into it, and
// returns the session. The caller must Close the session on every exit
// path; the browser process lives only as long as the session.
func (n *RodNavigator) Open(ctx context.Context, cookies []market.Cookie) (Session, error) {
	l := launcher.New().
		Headless(n.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if n.cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	if len(cookies) > 0 {
		if err := b.SetCookies(cookieParams(cookies, n.logger)); err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("loading cookies into browser: %w", err)
		}
	}

	return &rodSession{cfg: n.cfg, launcher: l, browser: b, logger: n.logger}, nil
}

type rodSession struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger
}

func (s *rodSession) Navigate(ctx context.Context, url string) (*Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(s.cfg.NavTimeout)

	if s.cfg.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent})
	}

	// Capture the main document's status code; subresources are ignored.
	result := &Page{URL: url}
	waitStatus := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			result.StatusCode = int(e.Response.Status)
			return true
		}
		return false
	})

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	waitStatus()

	if err := page.WaitLoad(); err != nil {
		s.logger.Debug("page load wait ended early", zap.String("url", url), zap.Error(err))
	}
	if s.cfg.SettleDelay > 0 {
		// Marketplaces insert meta tags and anchors after load.
		if err := page.WaitStable(s.cfg.SettleDelay); err != nil {
			s.logger.Debug("page did not fully stabilize", zap.String("url", url), zap.Error(err))
		}
	}

	if info, err := page.Info(); err == nil && info.URL != "" {
		result.URL = info.URL
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("reading rendered page: %w", err)
	}
	result.HTML = html

	return result, nil
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	return err
}

func cookieParams(cookies []market.Cookie, logger *zap.Logger) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Domain == "" {
			// CDP rejects cookies without a domain or URL.
			logger.Debug("skipping cookie without domain", zap.String("name", c.Name))
			continue
		}
		p := &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}
