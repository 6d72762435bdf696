package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/ports"
)

// DummyProvider is a test/demo billing provider that simulates a fully
// subscribed customer for every email. Use it for development when real
// billing credentials aren't available.
//
// Individual steps can be scripted to fail by registering the email
// with DenyAt.
type DummyProvider struct {
	baseURL string
	ids     ports.IDGenerator

	mu     sync.Mutex
	denied map[string]access.Reason
}

// NewDummyProvider creates a new dummy billing provider.
func NewDummyProvider(baseURL string, ids ports.IDGenerator) *DummyProvider {
	return &DummyProvider{
		baseURL: baseURL,
		ids:     ids,
		denied:  make(map[string]access.Reason),
	}
}

// Name returns the provider name.
func (p *DummyProvider) Name() string {
	return "dummy"
}

// DenyAt scripts the check chain to fail for an email at the step that
// produces the given reason.
func (p *DummyProvider) DenyAt(email string, reason access.Reason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied[strings.ToLower(email)] = reason
}

func (p *DummyProvider) reasonFor(email string) access.Reason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.denied[strings.ToLower(email)]
}

// FindCustomerByEmail returns a deterministic fake customer ID.
func (p *DummyProvider) FindCustomerByEmail(ctx context.Context, email string) (ports.Customer, error) {
	if p.reasonFor(email) == access.ReasonNoAccount {
		return ports.Customer{}, ports.ErrNoCustomer
	}
	return ports.Customer{
		ID:    "cus_dummy_" + strings.ToLower(email),
		Email: email,
	}, nil
}

// HasPaymentMethod simulates an attached card.
func (p *DummyProvider) HasPaymentMethod(ctx context.Context, customerID string) (bool, error) {
	email := strings.TrimPrefix(customerID, "cus_dummy_")
	return p.reasonFor(email) != access.ReasonNoPaymentMethod, nil
}

// ActiveSubscription simulates an active monthly subscription.
func (p *DummyProvider) ActiveSubscription(ctx context.Context, customerID string) (*access.Subscription, error) {
	email := strings.TrimPrefix(customerID, "cus_dummy_")
	if p.reasonFor(email) == access.ReasonNoActiveSubscription {
		return nil, nil
	}
	return &access.Subscription{
		ID:               "sub_dummy_" + email,
		Status:           "active",
		CurrentPeriodEnd: time.Now().UTC().AddDate(0, 1, 0),
	}, nil
}

// CreateCheckoutSession returns a fake checkout URL under the portal
// base URL. Each call mints a fresh session ID.
func (p *DummyProvider) CreateCheckoutSession(ctx context.Context, customerID, email string) (string, error) {
	return fmt.Sprintf("%s/checkout/dummy/%s?email=%s", p.baseURL, p.ids.New(), email), nil
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*DummyProvider)(nil)
