// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/ports"
	"github.com/rs/zerolog"
)

// AccessService decides whether an identity may use the chat features.
// Every decision path returns a well-formed result; provider failures
// deny access rather than letting requests through unbilled.
type AccessService struct {
	provider ports.BillingProvider
	clock    ports.Clock
	logger   zerolog.Logger
	metrics  *metrics.Collector
	timeout  time.Duration

	// Hot-reloadable whitelist
	whitelist atomic.Pointer[access.Whitelist]
}

// AccessServiceConfig contains configuration for AccessService.
type AccessServiceConfig struct {
	Timeout          time.Duration // Per-check budget for provider calls
	WhitelistEmails  string        // Comma-separated emails that bypass billing
	WhitelistUserIDs string        // Comma-separated user IDs that bypass billing
}

// NewAccessService creates a new access service.
func NewAccessService(
	provider ports.BillingProvider,
	clock ports.Clock,
	logger zerolog.Logger,
	collector *metrics.Collector,
	cfg AccessServiceConfig,
) *AccessService {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	s := &AccessService{
		provider: provider,
		clock:    clock,
		logger:   logger.With().Str("service", "access").Logger(),
		metrics:  collector,
		timeout:  cfg.Timeout,
	}
	s.SetWhitelist(cfg.WhitelistEmails, cfg.WhitelistUserIDs)

	return s
}

// SetWhitelist replaces the bypass lists. Safe to call while checks are
// in flight; running checks keep the list they started with.
func (s *AccessService) SetWhitelist(emails, userIDs string) {
	wl := access.NewWhitelist(emails, userIDs)
	s.whitelist.Store(&wl)
}

// Check runs the full eligibility chain for id and never returns an error:
// failures are folded into the result so callers always have a renderable
// decision.
func (s *AccessService) Check(ctx context.Context, id access.Identity) access.CheckResult {
	start := s.clock.Now()
	res := s.check(ctx, id)
	if s.metrics != nil {
		s.metrics.CheckDuration.Observe(s.clock.Now().Sub(start).Seconds())
		s.metrics.ChecksTotal.WithLabelValues(outcomeLabel(res), string(res.Reason)).Inc()
	}
	return res
}

func (s *AccessService) check(ctx context.Context, id access.Identity) access.CheckResult {
	if s.whitelist.Load().Contains(id) {
		s.logger.Debug().Str("user_id", id.UserID).Msg("whitelisted, bypassing billing")
		return access.GrantedWhitelisted()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cust, err := s.provider.FindCustomerByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, ports.ErrNoCustomer) {
			return s.denied(ctx, id, access.ReasonNoAccount)
		}
		return s.failClosed(id, "find customer", err)
	}

	hasCard, err := s.provider.HasPaymentMethod(ctx, cust.ID)
	if err != nil {
		return s.failClosed(id, "payment methods", err)
	}
	if !hasCard {
		return s.denied(ctx, id, access.ReasonNoPaymentMethod)
	}

	sub, err := s.provider.ActiveSubscription(ctx, cust.ID)
	if err != nil {
		return s.failClosed(id, "subscriptions", err)
	}
	if sub == nil {
		return s.denied(ctx, id, access.ReasonNoActiveSubscription)
	}

	return access.Granted(sub)
}

// denied builds a denial and attaches a checkout URL when the provider
// can mint one. Checkout failures are logged but do not change the
// decision; the reason already tells the caller what to fix.
func (s *AccessService) denied(ctx context.Context, id access.Identity, reason access.Reason) access.CheckResult {
	customerID := ""
	if reason != access.ReasonNoAccount {
		if cust, err := s.provider.FindCustomerByEmail(ctx, id.Email); err == nil {
			customerID = cust.ID
		}
	}
	url, err := s.provider.CreateCheckoutSession(ctx, customerID, id.Email)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id.UserID).Msg("checkout session unavailable")
		url = ""
	}
	return access.Denied(reason, url)
}

func (s *AccessService) failClosed(id access.Identity, op string, err error) access.CheckResult {
	s.logger.Error().Err(err).
		Str("user_id", id.UserID).
		Str("provider", s.provider.Name()).
		Str("op", op).
		Msg("billing check failed, denying access")
	return access.FailClosed(err.Error())
}

func outcomeLabel(res access.CheckResult) string {
	switch {
	case res.Error:
		return "error"
	case res.HasSubscription:
		return "granted"
	default:
		return "denied"
	}
}
