// Package currency provides conversion and display formatting for cost
// figures. All functions are pure.
package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arvend/tokengate/domain/cost"
)

// USD is the base currency all costs are computed and stored in.
const USD = "USD"

// Convert converts a USD amount to the secondary currency using the
// given multiplier. A non-positive or non-finite rate yields the
// original amount.
func Convert(usd, rate float64) float64 {
	if !validRate(rate) {
		return usd
	}
	return usd * rate
}

// ConvertBack converts a secondary-currency amount back to USD.
func ConvertBack(amount, rate float64) float64 {
	if !validRate(rate) {
		return amount
	}
	return amount / rate
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}

// ApplyMargin scales every figure of a breakdown by the margin
// multiplier. A non-positive multiplier leaves the breakdown unchanged.
func ApplyMargin(b cost.Breakdown, margin float64) cost.Breakdown {
	if margin <= 0 || math.IsNaN(margin) || math.IsInf(margin, 0) {
		return b
	}
	return cost.Breakdown{
		Input:     b.Input * margin,
		Output:    b.Output * margin,
		Reasoning: b.Reasoning * margin,
		Total:     b.Total * margin,
	}
}

// FormatCost renders a cost amount. Amounts below one cent get up to 6
// decimal places, below ten cents 4, otherwise 2-3. Trailing zeros are
// trimmed, keeping at least two decimals for amounts of a cent or more.
func FormatCost(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if v == 0 {
		return "0"
	}

	abs := math.Abs(v)
	var prec, minPrec int
	switch {
	case abs < 0.01:
		prec, minPrec = 6, 0
	case abs < 0.10:
		prec, minPrec = 4, 2
	default:
		prec, minPrec = 3, 2
	}

	s := strconv.FormatFloat(v, 'f', prec, 64)
	return trimZeros(s, minPrec)
}

// trimZeros removes trailing fractional zeros down to minPrec decimals.
func trimZeros(s string, minPrec int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := len(s)
	for end > dot+1+minPrec && s[end-1] == '0' {
		end--
	}
	s = s[:end]
	return strings.TrimSuffix(s, ".")
}

// FormatTokens abbreviates token counts at thousands (K) and millions (M).
func FormatTokens(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 1_000:
		return strconv.FormatInt(n, 10)
	case abs < 1_000_000:
		return trimZeros(strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64), 0) + "K"
	default:
		return trimZeros(strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64), 0) + "M"
	}
}

// CompareMultiplier returns how many times more expensive other is than
// base. The comparison is illustrative only: it is suppressed (ok=false)
// unless other is strictly greater than base.
func CompareMultiplier(base, other float64) (float64, bool) {
	if base <= 0 || other <= base {
		return 0, false
	}
	return other / base, true
}

// FormatMultiplier renders a comparison multiplier like "3.2x".
func FormatMultiplier(m float64) string {
	return fmt.Sprintf("%sx", trimZeros(strconv.FormatFloat(m, 'f', 1, 64), 0))
}
