package payment

import (
	"context"
	"errors"

	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/ports"
)

// ErrBillingDisabled is returned when billing is not configured.
var ErrBillingDisabled = errors.New("billing is not configured")

// NoopProvider is a no-op billing provider for when billing is
// disabled. Every check errors, so the access gate fails closed.
type NoopProvider struct{}

// NewNoopProvider creates a new no-op billing provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name returns the provider name.
func (p *NoopProvider) Name() string {
	return "none"
}

// FindCustomerByEmail returns an error as billing is disabled.
func (p *NoopProvider) FindCustomerByEmail(ctx context.Context, email string) (ports.Customer, error) {
	return ports.Customer{}, ErrBillingDisabled
}

// HasPaymentMethod returns an error as billing is disabled.
func (p *NoopProvider) HasPaymentMethod(ctx context.Context, customerID string) (bool, error) {
	return false, ErrBillingDisabled
}

// ActiveSubscription returns an error as billing is disabled.
func (p *NoopProvider) ActiveSubscription(ctx context.Context, customerID string) (*access.Subscription, error) {
	return nil, ErrBillingDisabled
}

// CreateCheckoutSession returns an error as billing is disabled.
func (p *NoopProvider) CreateCheckoutSession(ctx context.Context, customerID, email string) (string, error) {
	return "", ErrBillingDisabled
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*NoopProvider)(nil)
