package app

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/domain/currency"
	"github.com/arvend/tokengate/pkg/ttlcache"
	"github.com/arvend/tokengate/ports"
	"github.com/rs/zerolog"
)

// CostView is the renderable cost of one message. All money fields are
// already margin-adjusted and converted to the requested currency.
type CostView struct {
	Model    string `json:"model"`
	Currency string `json:"currency"`

	// Unknown is true when the message has token counts but no rates;
	// money fields are zero and formatted fields empty.
	Unknown bool `json:"unknown"`

	// LockedRates is true when the view comes from a persisted
	// snapshot rather than a live estimate.
	LockedRates bool `json:"lockedRates"`

	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`

	FormattedTotal  string `json:"formattedTotal"`
	FormattedTokens string `json:"formattedTokens"`

	// RateUnavailable is true when conversion to the requested
	// currency failed and amounts fell back to USD.
	RateUnavailable bool `json:"rateUnavailable,omitempty"`

	Comparison *Comparison `json:"comparison,omitempty"`
}

// Comparison shows how much more an alternative model would have cost
// for the same token counts. Absent unless strictly more expensive.
type Comparison struct {
	Model      string  `json:"model"`
	Multiplier float64 `json:"multiplier"`
	Formatted  string  `json:"formatted"`
}

// DisplayService turns snapshots and estimates into user-facing cost
// views: margin, currency conversion and the comparison line.
type DisplayService struct {
	costs      *CostService
	currencies ports.CurrencySource
	logger     zerolog.Logger
	mx         *metrics.Collector

	fx *ttlcache.Cache[float64]

	mu           sync.RWMutex
	margin       float64
	compareModel string
	secondary    string
}

// DisplayServiceConfig contains configuration for DisplayService.
type DisplayServiceConfig struct {
	MarginMultiplier float64       // Display-only markup, 1.0 passes costs through
	CompareModel     string        // Model to price the comparison line against
	Secondary        string        // Default non-USD display currency
	CacheTTL         time.Duration // Conversion rate freshness window
	FailureTTL       time.Duration // Back-off window after a failed rate fetch
}

// NewDisplayService creates a new display service.
func NewDisplayService(
	costs *CostService,
	currencies ports.CurrencySource,
	clk ports.Clock,
	logger zerolog.Logger,
	collector *metrics.Collector,
	cfg DisplayServiceConfig,
) *DisplayService {
	if cfg.MarginMultiplier <= 0 {
		cfg.MarginMultiplier = 1.0
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.FailureTTL == 0 {
		cfg.FailureTTL = 5 * time.Minute
	}

	return &DisplayService{
		costs:        costs,
		currencies:   currencies,
		logger:       logger.With().Str("service", "display").Logger(),
		mx:           collector,
		fx:           ttlcache.New[float64](clk, cfg.CacheTTL, cfg.FailureTTL),
		margin:       cfg.MarginMultiplier,
		compareModel: cfg.CompareModel,
		secondary:    strings.ToUpper(cfg.Secondary),
	}
}

// SetDisplay replaces the hot-reloadable display knobs.
func (s *DisplayService) SetDisplay(margin float64, compareModel, secondary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if margin > 0 {
		s.margin = margin
	}
	s.compareModel = compareModel
	s.secondary = strings.ToUpper(secondary)
}

// Secondary returns the configured non-USD display currency.
func (s *DisplayService) Secondary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secondary
}

// CompareModel returns the model the comparison line prices against.
func (s *DisplayService) CompareModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compareModel
}

// ConversionRate returns the USD-to-ccy rate through the cache. A
// failed fetch is cached for the failure window so a dead upstream is
// not hammered on every render.
func (s *DisplayService) ConversionRate(ctx context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "" || ccy == currency.USD {
		return 1, nil
	}
	return s.fx.GetOrFetch(ctx, ccy, func(ctx context.Context) (float64, error) {
		rate, err := s.currencies.FetchRate(ctx, ccy)
		if s.mx != nil {
			if err != nil {
				s.mx.CurrencyFetches.WithLabelValues("error").Inc()
			} else {
				s.mx.CurrencyFetches.WithLabelValues("success").Inc()
			}
		}
		return rate, err
	})
}

// View renders snap in the requested currency. locked marks views
// built from persisted snapshots. An empty ccy means USD.
func (s *DisplayService) View(ctx context.Context, snap cost.Snapshot, locked bool, ccy string) CostView {
	s.mu.RLock()
	margin := s.margin
	compareModel := s.compareModel
	s.mu.RUnlock()

	view := CostView{
		Model:           snap.Model,
		Currency:        currency.USD,
		LockedRates:     locked,
		FormattedTokens: currency.FormatTokens(snap.InputTokens + snap.OutputTokens),
	}

	bd, ok := snap.Breakdown()
	if !ok {
		view.Unknown = true
		return view
	}
	// The comparison ratio is taken before margin; the markup applies
	// to both sides equally and would cancel out anyway.
	rawTotal := bd.Total
	bd = currency.ApplyMargin(bd, margin)

	ccy = strings.ToUpper(ccy)
	rate := 1.0
	if ccy != "" && ccy != currency.USD {
		r, err := s.ConversionRate(ctx, ccy)
		if err != nil {
			s.logger.Warn().Err(err).Str("currency", ccy).Msg("conversion rate unavailable, showing USD")
			view.RateUnavailable = true
		} else {
			rate = r
			view.Currency = ccy
		}
	}

	view.Input = currency.Convert(bd.Input, rate)
	view.Output = currency.Convert(bd.Output, rate)
	view.Total = currency.Convert(bd.Total, rate)
	view.FormattedTotal = currency.FormatCost(view.Total)
	view.Comparison = s.comparison(ctx, snap, rawTotal, compareModel)

	return view
}

// comparison prices the same usage against compareModel. The line is
// suppressed unless the alternative is strictly more expensive, and on
// any lookup problem.
func (s *DisplayService) comparison(ctx context.Context, snap cost.Snapshot, total float64, compareModel string) *Comparison {
	if compareModel == "" || compareModel == snap.Model || total <= 0 {
		return nil
	}

	r, ok, err := s.costs.RateFor(ctx, compareModel)
	if err != nil || !ok {
		return nil
	}
	other := cost.Compute(snap.Usage, r).Total
	if math.IsNaN(other) || math.IsInf(other, 0) {
		return nil
	}

	m, ok := currency.CompareMultiplier(total, other)
	if !ok {
		return nil
	}
	return &Comparison{
		Model:      compareModel,
		Multiplier: m,
		Formatted:  currency.FormatMultiplier(m),
	}
}
