package app

import (
	"context"
	"sync"
	"time"

	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/ports"
	"github.com/rs/zerolog"
)

// GuardState is the lifecycle of an identity's access decision.
type GuardState string

const (
	// StatePending means a check is in flight and no decision exists yet.
	StatePending GuardState = "pending"
	// StateGranted means the identity may use gated features.
	StateGranted GuardState = "granted"
	// StateRequired means the identity was denied and needs remediation.
	StateRequired GuardState = "required"
	// StateErrored means the last check failed; access stays denied.
	StateErrored GuardState = "errored"
)

// GuardStatus is the renderable snapshot handed to callers.
type GuardStatus struct {
	State  GuardState         `json:"state"`
	Result access.CheckResult `json:"result"`
}

// Guard tracks one access decision per identity and serializes checks
// so that at most one provider round-trip per identity is in flight.
// A superseded check never writes its result back.
type Guard struct {
	access *AccessService
	clock  ports.Clock
	logger zerolog.Logger

	// sleep is swappable so tests can observe the minimum visible
	// duration without waiting it out.
	sleep func(time.Duration)

	minVisible time.Duration

	mu      sync.Mutex
	entries map[string]*guardEntry
}

type guardEntry struct {
	state  GuardState
	result access.CheckResult
	gen    uint64
	cancel context.CancelFunc
}

// GuardConfig contains configuration for Guard.
type GuardConfig struct {
	// MinVisibleDuration pads forced rechecks so UI spinners do not
	// flash. Zero disables the padding.
	MinVisibleDuration time.Duration
}

// NewGuard creates a guard over the given access service.
func NewGuard(svc *AccessService, clk ports.Clock, logger zerolog.Logger, cfg GuardConfig) *Guard {
	return &Guard{
		access:     svc,
		clock:      clk,
		logger:     logger.With().Str("service", "guard").Logger(),
		sleep:      time.Sleep,
		minVisible: cfg.MinVisibleDuration,
		entries:    make(map[string]*guardEntry),
	}
}

// ShouldBypass reports whether the request needs no access decision at
// all: anonymous traffic and the public auth pages are never gated.
func (g *Guard) ShouldBypass(id *access.Identity, path string) bool {
	if id == nil || id.UserID == "" {
		return true
	}
	return access.IsPublicPath(path)
}

// Status returns the current decision for id without triggering a
// check. Unknown identities are pending.
func (g *Guard) Status(id access.Identity) GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[id.UserID]; ok {
		return GuardStatus{State: e.state, Result: e.result}
	}
	return GuardStatus{State: StatePending}
}

// Resolve runs an access check for id and returns the resulting status.
// Starting a check cancels any check already in flight for the same
// identity; the cancelled check's result is discarded.
func (g *Guard) Resolve(ctx context.Context, id access.Identity) GuardStatus {
	ctx, gen := g.begin(ctx, id)
	res := g.access.Check(ctx, id)
	return g.finish(ctx, id, gen, res)
}

// Recheck is Resolve with the minimum visible duration applied, for
// user-initiated refreshes after remediation.
func (g *Guard) Recheck(ctx context.Context, id access.Identity) GuardStatus {
	start := g.clock.Now()
	ctx, gen := g.begin(ctx, id)
	res := g.access.Check(ctx, id)
	if remaining := g.minVisible - g.clock.Now().Sub(start); remaining > 0 {
		g.sleep(remaining)
	}
	return g.finish(ctx, id, gen, res)
}

// Forget drops the cached decision, forcing the next Resolve to hit
// the provider. Used on logout.
func (g *Guard) Forget(id access.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[id.UserID]; ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(g.entries, id.UserID)
	}
}

// begin marks a new check as the authoritative one for id and cancels
// any predecessor. It returns the check's context and generation.
func (g *Guard) begin(parent context.Context, id access.Identity) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id.UserID]
	if !ok {
		e = &guardEntry{}
		g.entries[id.UserID] = e
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	e.cancel = cancel
	e.state = StatePending
	return ctx, e.gen
}

// finish records res unless the check was superseded or its context
// cancelled. Stale results must not overwrite a newer decision.
func (g *Guard) finish(ctx context.Context, id access.Identity, gen uint64, res access.CheckResult) GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[id.UserID]
	if !ok || e.gen != gen || ctx.Err() != nil {
		g.logger.Debug().Str("user_id", id.UserID).Msg("discarding superseded check result")
		if ok {
			return GuardStatus{State: e.state, Result: e.result}
		}
		return GuardStatus{State: StatePending}
	}

	e.cancel = nil
	e.result = res
	e.state = stateFor(res)
	return GuardStatus{State: e.state, Result: e.result}
}

func stateFor(res access.CheckResult) GuardState {
	switch {
	case res.Error:
		return StateErrored
	case res.HasSubscription:
		return StateGranted
	default:
		return StateRequired
	}
}
