// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/domain/cost"
)

var (
	// ErrNoCustomer indicates no billing customer exists for an email.
	ErrNoCustomer = errors.New("no billing customer for email")

	// ErrSnapshotNotFound indicates a message has no usage snapshot.
	ErrSnapshotNotFound = errors.New("usage snapshot not found")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Customer is a billing-provider customer record.
type Customer struct {
	ID    string
	Email string
}

// BillingProvider interfaces with the subscription/invoicing service
// (Stripe and friends). Each method maps to one step of the access
// check chain.
type BillingProvider interface {
	// Name returns the provider name (e.g., "stripe").
	Name() string

	// FindCustomerByEmail resolves a customer record by email.
	// Returns ErrNoCustomer when no customer exists for the address.
	FindCustomerByEmail(ctx context.Context, email string) (Customer, error)

	// HasPaymentMethod reports whether the customer has a payment
	// method attached.
	HasPaymentMethod(ctx context.Context, customerID string) (bool, error)

	// ActiveSubscription returns the customer's active subscription,
	// or nil when none exists.
	ActiveSubscription(ctx context.Context, customerID string) (*access.Subscription, error)

	// CreateCheckoutSession generates a checkout link for remediation.
	// customerID may be empty for identities with no billing account
	// yet; the session is then keyed by email.
	CreateCheckoutSession(ctx context.Context, customerID, email string) (string, error)
}

// PriceSource fetches the full per-model price table from the pricing
// service. Results are cached by the caller; implementations do not
// cache.
type PriceSource interface {
	FetchRates(ctx context.Context) (map[string]cost.Rate, error)
}

// CurrencySource fetches the USD-to-secondary exchange rate.
type CurrencySource interface {
	FetchRate(ctx context.Context, currency string) (float64, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SnapshotStore persists usage snapshots keyed by message ID. The
// snapshot is the only durable artifact of cost accounting; the message
// record itself belongs to an external collaborator.
type SnapshotStore interface {
	// Get retrieves the snapshot for a message.
	// Returns ErrSnapshotNotFound when none exists.
	Get(ctx context.Context, messageID string) (cost.Snapshot, error)

	// Put stores a snapshot. Snapshots are write-once: a second Put
	// for the same message is a no-op, not an overwrite.
	Put(ctx context.Context, messageID string, s cost.Snapshot) error
}
