// Package cost provides token usage and cost breakdown value types.
// All functions are pure - no side effects.
package cost

import (
	"math"
	"time"
)

// SnapshotVersion is the current usage snapshot schema revision.
const SnapshotVersion = 1

// MetadataKey is the namespaced message metadata key the snapshot is
// persisted under.
const MetadataKey = "tokengate.usage"

// Usage holds the raw token counts for one completed response.
type Usage struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// Sanitize returns a copy with negative counts clamped to zero.
// Provider responses occasionally report -1 for unknown counts.
func (u Usage) Sanitize() Usage {
	if u.InputTokens < 0 {
		u.InputTokens = 0
	}
	if u.OutputTokens < 0 {
		u.OutputTokens = 0
	}
	if u.ReasoningTokens < 0 {
		u.ReasoningTokens = 0
	}
	return u
}

// EffectiveOutputTokens returns output tokens minus reasoning tokens,
// floored at zero.
func (u Usage) EffectiveOutputTokens() int64 {
	n := u.OutputTokens - u.ReasoningTokens
	if n < 0 {
		return 0
	}
	return n
}

// IsZero returns true if no tokens were counted.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.ReasoningTokens == 0
}

// Rate holds per-token prices for one model, in USD.
type Rate struct {
	Model             string
	InputPerToken     float64
	OutputPerToken    float64
	ReasoningPerToken *float64 // nil: reasoning billed at the output rate
	MaxContextTokens  int64    // 0: unknown
}

// Sanitize returns a copy with NaN, infinite, or negative prices
// replaced by zero.
func (r Rate) Sanitize() Rate {
	r.InputPerToken = sanitizePrice(r.InputPerToken)
	r.OutputPerToken = sanitizePrice(r.OutputPerToken)
	if r.ReasoningPerToken != nil {
		p := sanitizePrice(*r.ReasoningPerToken)
		r.ReasoningPerToken = &p
	}
	if r.MaxContextTokens < 0 {
		r.MaxContextTokens = 0
	}
	return r
}

func sanitizePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// reasoningRate returns the reasoning price, falling back to the output
// price when no distinct reasoning price exists.
func (r Rate) reasoningRate() float64 {
	if r.ReasoningPerToken != nil {
		return *r.ReasoningPerToken
	}
	return r.OutputPerToken
}

// Rates is the per-token price triple stored in a snapshot.
type Rates struct {
	Input     float64 `json:"input"`
	Output    float64 `json:"output"`
	Reasoning float64 `json:"reasoning"`
}

// Breakdown is a computed cost split, in the snapshot currency.
type Breakdown struct {
	Input     float64 `json:"input"`
	Output    float64 `json:"output"`
	Reasoning float64 `json:"reasoning"`
	Total     float64 `json:"total"`
}

// Compute derives a cost breakdown from token counts and a price rate.
// Reasoning tokens are billed at the reasoning rate and subtracted from
// the output tokens so they are never billed twice.
func Compute(u Usage, r Rate) Breakdown {
	u = u.Sanitize()
	r = r.Sanitize()

	input := float64(u.InputTokens) * r.InputPerToken
	output := float64(u.EffectiveOutputTokens()) * r.OutputPerToken
	reasoning := float64(u.ReasoningTokens) * r.reasoningRate()

	return Breakdown{
		Input:     input,
		Output:    output,
		Reasoning: reasoning,
		Total:     input + output + reasoning,
	}
}

// Snapshot is the immutable usage record attached to a chat message.
// Exactly one of Rates or Costs suffices; readers treat a snapshot with
// neither as empty (cost unknown, never free).
type Snapshot struct {
	Version int    `json:"version"`
	Model   string `json:"model"`
	Usage
	Rates    *Rates     `json:"rates,omitempty"`
	Costs    *Breakdown `json:"costs,omitempty"`
	Currency string     `json:"currency"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// NewSnapshot builds a snapshot for a model with optional pricing. Pass
// a nil rate when no price entry was found for the model: the snapshot
// then carries counts only.
func NewSnapshot(model string, u Usage, r *Rate, at time.Time) Snapshot {
	s := Snapshot{
		Version:      SnapshotVersion,
		Model:        model,
		Usage:        u.Sanitize(),
		Currency:     "USD",
		CalculatedAt: at,
	}
	if r != nil {
		rt := r.Sanitize()
		s.Rates = &Rates{
			Input:     rt.InputPerToken,
			Output:    rt.OutputPerToken,
			Reasoning: rt.reasoningRate(),
		}
		b := Compute(s.Usage, rt)
		s.Costs = &b
	}
	return s
}

// IsEmpty returns true when the snapshot carries neither rates nor
// costs. Readers must ignore empty snapshots.
func (s Snapshot) IsEmpty() bool {
	return s.Rates == nil && s.Costs == nil
}

// Breakdown returns the cost breakdown for this snapshot, recomputing
// from the stored rates when no precomputed costs are present. The
// second return is false for empty snapshots.
func (s Snapshot) Breakdown() (Breakdown, bool) {
	if s.Costs != nil {
		return *s.Costs, true
	}
	if s.Rates != nil {
		reasoning := s.Rates.Reasoning
		return Compute(s.Usage, Rate{
			Model:             s.Model,
			InputPerToken:     s.Rates.Input,
			OutputPerToken:    s.Rates.Output,
			ReasoningPerToken: &reasoning,
		}), true
	}
	return Breakdown{}, false
}
