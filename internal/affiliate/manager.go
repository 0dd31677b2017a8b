package affiliate

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promozone/afflink/pkg/market"
)

// Manager dispatches links to registered converters. Its hard guarantee
// is that ConvertLink never fails: every path, including converter
// panics, terminates in a Result whose Link is usable.
type Manager struct {
	detector   *Detector
	converters map[string]market.Converter
	logger     *zap.Logger
}

// NewManager builds a manager around the given detector. The registry
// is populated via Register at startup and read-only afterwards.
func NewManager(detector *Detector, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		detector:   detector,
		converters: make(map[string]market.Converter),
		logger:     logger,
	}
}

// Register adds a converter under the marketplace identifier,
// overwriting any previous registration for the same key.
func (m *Manager) Register(marketplace string, c market.Converter) {
	m.converters[marketplace] = c
	m.logger.Info("converter registered", zap.String("marketplace", marketplace))
}

// Marketplaces lists the registered marketplace identifiers, sorted.
func (m *Manager) Marketplaces() []string {
	names := make([]string, 0, len(m.converters))
	for name := range m.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Converter returns the converter registered for a marketplace.
func (m *Manager) Converter(marketplace string) (market.Converter, bool) {
	c, ok := m.converters[marketplace]
	return c, ok
}

// ConvertLink detects the marketplace, dispatches to its converter and
// normalizes every failure into a fallback Result carrying the original
// link.
func (m *Manager) ConvertLink(ctx context.Context, original string) market.Result {
	log := m.logger.With(zap.String("conversion_id", uuid.NewString()))

	marketplace := m.detector.Detect(original)
	if marketplace == "" {
		return m.fallback(log, original, market.NotDetected,
			fmt.Errorf("%w: could not detect marketplace from URL", market.ErrMarketplaceNotSupported))
	}

	conv, ok := m.converters[marketplace]
	if !ok {
		return m.fallback(log, original, marketplace,
			fmt.Errorf("%w: marketplace not supported yet: %s", market.ErrMarketplaceNotSupported, marketplace))
	}

	converted, err := m.dispatch(ctx, conv, original)
	if err != nil {
		return m.fallback(log, original, marketplace, err)
	}

	market.LogConversion(log, marketplace, original, converted, market.StatusSuccess, nil)
	return market.Result{
		Link:        converted,
		Status:      market.StatusSuccess,
		Marketplace: marketplace,
	}
}

// dispatch isolates the converter call so a panicking converter still
// resolves to a fallback instead of unwinding through the caller.
func (m *Manager) dispatch(ctx context.Context, conv market.Converter, original string) (converted string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: converter panic: %v", market.ErrConversion, r)
		}
	}()
	return conv.ConvertLink(ctx, original)
}

func (m *Manager) fallback(log *zap.Logger, original, marketplace string, err error) market.Result {
	market.LogConversion(log, marketplace, original, original, market.StatusFallback, err)
	return market.Result{
		Link:        original,
		Status:      market.StatusFallback,
		Marketplace: marketplace,
		Error:       err.Error(),
	}
}
