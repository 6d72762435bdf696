// Package access provides subscription check value types and pure
// decision helpers.
package access

import (
	"strings"
	"time"
)

// Reason explains why access was denied.
type Reason string

const (
	ReasonNone                 Reason = "none"
	ReasonNoAccount            Reason = "no_account"
	ReasonNoPaymentMethod      Reason = "no_payment_method"
	ReasonNoActiveSubscription Reason = "no_active_subscription"
)

// Identity is the authenticated user identity supplied by the external
// auth collaborator.
type Identity struct {
	UserID string
	Email  string
}

// Subscription is the active-subscription summary returned to clients.
type Subscription struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

// CheckResult is the outcome of one subscription check. It is created
// per request, consumed once, and never mutated.
type CheckResult struct {
	HasSubscription bool          `json:"hasSubscription"`
	Whitelisted     bool          `json:"whitelisted"`
	Fallback        bool          `json:"fallback"`
	Subscription    *Subscription `json:"subscription"`
	Reason          Reason        `json:"reason,omitempty"`
	CheckoutURL     string        `json:"checkoutUrl,omitempty"`
	Error           bool          `json:"error,omitempty"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`
}

// Granted builds a successful check result.
func Granted(sub *Subscription) CheckResult {
	return CheckResult{HasSubscription: true, Subscription: sub}
}

// GrantedWhitelisted builds a result for a whitelisted identity. No
// provider query is made for these.
func GrantedWhitelisted() CheckResult {
	return CheckResult{HasSubscription: true, Whitelisted: true}
}

// Denied builds a denial with a remediation reason and optional
// checkout link.
func Denied(reason Reason, checkoutURL string) CheckResult {
	return CheckResult{Reason: reason, CheckoutURL: checkoutURL}
}

// FailClosed builds the denial returned when the billing provider is
// unreachable or errors. Access is denied by default; Fallback stays
// false so clients can distinguish an outage from a granted default.
func FailClosed(msg string) CheckResult {
	return CheckResult{Error: true, ErrorMessage: msg}
}

// Whitelist is the static set of identities exempted from the
// subscription check.
type Whitelist struct {
	emails  map[string]struct{}
	userIDs map[string]struct{}
}

// NewWhitelist builds a whitelist from comma-separated email and user
// ID lists. Entries are trimmed; emails compare case-insensitively.
func NewWhitelist(emails, userIDs string) Whitelist {
	return Whitelist{
		emails:  splitList(emails, true),
		userIDs: splitList(userIDs, false),
	}
}

func splitList(s string, lower bool) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lower {
			part = strings.ToLower(part)
		}
		out[part] = struct{}{}
	}
	return out
}

// Contains returns true if the identity is whitelisted by email or ID.
func (w Whitelist) Contains(id Identity) bool {
	if _, ok := w.emails[strings.ToLower(id.Email)]; ok && id.Email != "" {
		return true
	}
	if _, ok := w.userIDs[id.UserID]; ok && id.UserID != "" {
		return true
	}
	return false
}

// Len returns the number of whitelist entries.
func (w Whitelist) Len() int {
	return len(w.emails) + len(w.userIDs)
}

// publicPaths are always rendered without a subscription check.
var publicPaths = map[string]struct{}{
	"/login":           {},
	"/register":        {},
	"/forgot-password": {},
	"/reset-password":  {},
	"/verify":          {},
}

// IsPublicPath returns true for paths on the fixed unauthenticated
// allow-list (login, registration, password reset, verification).
func IsPublicPath(path string) bool {
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}
	_, ok := publicPaths[path]
	return ok
}
