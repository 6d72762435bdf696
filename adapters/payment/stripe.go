// Package payment provides billing provider adapters.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentmethod"
	"github.com/stripe/stripe-go/v76/subscription"

	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/ports"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey  string
	PriceID    string // subscription price offered at checkout
	SuccessURL string
	CancelURL  string
}

// StripeProvider implements ports.BillingProvider for Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) *StripeProvider {
	stripe.Key = config.SecretKey
	return &StripeProvider{config: config}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// FindCustomerByEmail resolves the first Stripe customer matching the
// email address.
func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (ports.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := customer.List(params)
	for it.Next() {
		c := it.Customer()
		return ports.Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := it.Err(); err != nil {
		return ports.Customer{}, fmt.Errorf("list customers: %w", err)
	}
	return ports.Customer{}, ports.ErrNoCustomer
}

// HasPaymentMethod reports whether the customer has at least one card
// attached.
func (p *StripeProvider) HasPaymentMethod(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := paymentmethod.List(params)
	if it.Next() {
		return true, nil
	}
	if err := it.Err(); err != nil {
		return false, fmt.Errorf("list payment methods: %w", err)
	}
	return false, nil
}

// ActiveSubscription returns the customer's active subscription, or nil
// when none exists. Trialing subscriptions count as active.
func (p *StripeProvider) ActiveSubscription(ctx context.Context, customerID string) (*access.Subscription, error) {
	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	it := subscription.List(params)
	for it.Next() {
		s := it.Subscription()
		if s.Status != stripe.SubscriptionStatusActive && s.Status != stripe.SubscriptionStatusTrialing {
			continue
		}
		return &access.Subscription{
			ID:               s.ID,
			Status:           string(s.Status),
			CurrentPeriodEnd: timeFromUnix(s.CurrentPeriodEnd),
		}, nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return nil, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for the
// configured subscription price. An empty customerID keys the session
// by email instead.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, customerID, email string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(p.config.SuccessURL),
		CancelURL:  stripe.String(p.config.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// Ensure interface compliance.
var _ ports.BillingProvider = (*StripeProvider)(nil)
