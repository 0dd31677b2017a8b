package affiliate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/promozone/afflink/internal/browser"
	"github.com/promozone/afflink/internal/config"
	"github.com/promozone/afflink/internal/converter"
	"github.com/promozone/afflink/pkg/market"
)

// Registration records the build outcome for one marketplace: either a
// working converter or the reason construction failed. A failed build
// never blocks the other marketplaces from registering.
type Registration struct {
	Marketplace string
	Converter   market.Converter
	Err         error
}

// Active reports whether the converter was built and registered.
func (r Registration) Active() bool { return r.Err == nil }

// BuildManager constructs every converter the configuration enables,
// registers the successful ones, and returns the registration outcomes
// so callers can see which marketplaces are live.
func BuildManager(cfg *config.Config, nav browser.Navigator, logger *zap.Logger) (*Manager, []Registration) {
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := NewManager(NewDetector(), logger)
	regs := make([]Registration, 0, 3)

	amazonConv, amazonErr := buildAmazon(cfg, nav, logger)
	regs = append(regs, register(manager, market.Amazon, amazonConv, amazonErr))

	mlConv, mlErr := buildMercadoLivre(cfg, nav, logger)
	regs = append(regs, register(manager, market.MercadoLivre, mlConv, mlErr))

	shopeeConv, shopeeErr := buildShopee(cfg, logger)
	regs = append(regs, register(manager, market.Shopee, shopeeConv, shopeeErr))

	for _, reg := range regs {
		if !reg.Active() {
			logger.Warn("marketplace converter unavailable",
				zap.String("marketplace", reg.Marketplace),
				zap.Error(reg.Err))
		}
	}

	return manager, regs
}

func register(m *Manager, marketplace string, c market.Converter, err error) Registration {
	if err == nil {
		m.Register(marketplace, c)
	}
	return Registration{Marketplace: marketplace, Converter: c, Err: err}
}

func buildAmazon(cfg *config.Config, nav browser.Navigator, logger *zap.Logger) (market.Converter, error) {
	if cfg.Amazon.AssociateTag == "" {
		return nil, fmt.Errorf("%w: AFFLINK_AMAZON_ASSOCIATE_TAG is not set", market.ErrCredentialsMissing)
	}
	return converter.NewAmazon(cfg.Amazon.AssociateTag, cfg.Amazon.CookieFile, nav, logger)
}

func buildMercadoLivre(cfg *config.Config, nav browser.Navigator, logger *zap.Logger) (market.Converter, error) {
	return converter.NewMercadoLivre(converter.MercadoLivreOptions{
		CookieFile:  cfg.MercadoLivre.CookieFile,
		Tag:         cfg.MercadoLivre.Tag,
		APIEndpoint: cfg.MercadoLivre.APIEndpoint,
		MinInterval: cfg.MercadoLivre.MinInterval,
	}, nav, logger), nil
}

func buildShopee(cfg *config.Config, logger *zap.Logger) (market.Converter, error) {
	return converter.NewShopee(converter.ShopeeOptions{
		AppID:       cfg.Shopee.AppID,
		AppSecret:   cfg.Shopee.AppSecret,
		SubID:       cfg.Shopee.SubID,
		APIEndpoint: cfg.Shopee.APIEndpoint,
	}, logger)
}
