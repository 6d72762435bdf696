package app

import (
	"context"
	"errors"
	"time"

	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/pkg/ttlcache"
	"github.com/arvend/tokengate/ports"
	"github.com/rs/zerolog"
)

// rateTableKey is the single cache key for the whole price table. One
// key means concurrent misses collapse into one upstream fetch.
const rateTableKey = "models"

// CostService computes token costs and persists per-message usage
// snapshots. Rates come from the pricing upstream through a TTL cache;
// a message whose rates were never known stays counts-only forever.
type CostService struct {
	prices ports.PriceSource
	store  ports.SnapshotStore
	clock  ports.Clock
	logger zerolog.Logger
	mx     *metrics.Collector

	rates *ttlcache.Cache[map[string]cost.Rate]
}

// CostServiceConfig contains configuration for CostService.
type CostServiceConfig struct {
	CacheTTL time.Duration // Price table freshness window
}

// NewCostService creates a new cost service.
func NewCostService(
	prices ports.PriceSource,
	store ports.SnapshotStore,
	clk ports.Clock,
	logger zerolog.Logger,
	collector *metrics.Collector,
	cfg CostServiceConfig,
) *CostService {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	return &CostService{
		prices: prices,
		store:  store,
		clock:  clk,
		logger: logger.With().Str("service", "cost").Logger(),
		mx:     collector,
		rates:  ttlcache.New[map[string]cost.Rate](clk, cfg.CacheTTL, 0),
	}
}

// Rates returns the full price table, fetching it if the cache is
// stale. Concurrent callers share one fetch.
func (s *CostService) Rates(ctx context.Context) (map[string]cost.Rate, error) {
	if table, ok := s.rates.Get(rateTableKey); ok {
		s.hit()
		return table, nil
	}
	s.miss()

	table, err := s.rates.GetOrFetch(ctx, rateTableKey, func(ctx context.Context) (map[string]cost.Rate, error) {
		t, err := s.prices.FetchRates(ctx)
		s.fetchResult(err)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// RateFor returns the rate for model. ok is false when the table loads
// but has no entry for the model.
func (s *CostService) RateFor(ctx context.Context, model string) (cost.Rate, bool, error) {
	table, err := s.Rates(ctx)
	if err != nil {
		return cost.Rate{}, false, err
	}
	r, ok := table[model]
	return r, ok, nil
}

// Estimate computes a live cost breakdown without touching storage.
// It is the fast path used while a response streams in.
func (s *CostService) Estimate(ctx context.Context, model string, u cost.Usage) (cost.Snapshot, error) {
	u = u.Sanitize()
	r, ok, err := s.RateFor(ctx, model)
	if err != nil {
		return cost.Snapshot{}, err
	}
	if !ok {
		return cost.NewSnapshot(model, u, nil, s.clock.Now()), nil
	}
	return cost.NewSnapshot(model, u, &r, s.clock.Now()), nil
}

// RecordNow computes and persists the snapshot for a finished message.
// The write is first-wins: a message already snapshotted keeps its
// original rates even if prices changed since.
func (s *CostService) RecordNow(ctx context.Context, messageID, model string, u cost.Usage) (cost.Snapshot, error) {
	if messageID == "" {
		return cost.Snapshot{}, errors.New("message id required")
	}

	snap, err := s.Estimate(ctx, model, u)
	if err != nil {
		// Rates unavailable: persist the counts so the spend is not
		// lost, costs stay unknown for this message.
		snap = cost.NewSnapshot(model, u.Sanitize(), nil, s.clock.Now())
	}

	if err := s.store.Put(ctx, messageID, snap); err != nil {
		if s.mx != nil {
			s.mx.PersistFailures.Inc()
		}
		return snap, err
	}
	if s.mx != nil {
		s.mx.SnapshotsPersisted.Inc()
	}
	return snap, nil
}

// Record persists the snapshot in the background. Failures are logged,
// never surfaced: accounting must not block or break the chat flow.
func (s *CostService) Record(ctx context.Context, messageID, model string, u cost.Usage) {
	go func() {
		// Detach from the request context so an early client
		// disconnect does not lose the write.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if _, err := s.RecordNow(ctx, messageID, model, u); err != nil {
			s.logger.Error().Err(err).
				Str("message_id", messageID).
				Str("model", model).
				Msg("snapshot persist failed")
		}
	}()
}

// Snapshot loads the persisted snapshot for a message.
func (s *CostService) Snapshot(ctx context.Context, messageID string) (cost.Snapshot, error) {
	return s.store.Get(ctx, messageID)
}

// InvalidateRates drops the cached price table. Used by the CLI and
// on demand when operators push new prices.
func (s *CostService) InvalidateRates() {
	s.rates.Invalidate(rateTableKey)
}

func (s *CostService) hit() {
	if s.mx != nil {
		s.mx.RateCacheHits.Inc()
	}
}

func (s *CostService) miss() {
	if s.mx != nil {
		s.mx.RateCacheMisses.Inc()
	}
}

func (s *CostService) fetchResult(err error) {
	if s.mx == nil {
		return
	}
	if err != nil {
		s.mx.PricingFetches.WithLabelValues("error").Inc()
		return
	}
	s.mx.PricingFetches.WithLabelValues("success").Inc()
}
