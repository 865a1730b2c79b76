package summarize

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"newsfeed/internal/clock"
)

// CostMeter approximates spend per rolling hour using a token bucket: the
// bucket refills continuously at ceiling/hour and is sized to the full
// ceiling, so a quiet hour doesn't let a burst double-spend the next one.
// Cost is tracked in integer cents since rate.Limiter's reservation count
// is an int.
type CostMeter struct {
	limiter *rate.Limiter
	clock   clock.Clock
}

// NewCostMeter builds a CostMeter with the given hourly ceiling in cents.
func NewCostMeter(hourlyCeilingCents int, clk clock.Clock) *CostMeter {
	perSecond := float64(hourlyCeilingCents) / 3600
	return &CostMeter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), hourlyCeilingCents),
		clock:   clk,
	}
}

// TryReserve attempts to charge estimatedCostUSD against the hourly budget,
// reporting whether it fit. A denial means the dispatcher should stop
// pulling from the queue until the bucket refills.
func (m *CostMeter) TryReserve(estimatedCostUSD float64) bool {
	cents := int(math.Round(estimatedCostUSD * 100))
	if cents < 1 {
		cents = 1
	}
	return m.limiter.AllowN(m.clock.Now(), cents)
}

// modelPricing is an approximate per-million-token blended price (USD),
// input and output averaged, used only to size the cost meter's
// reservations — not a billing source of truth.
var modelPricing = map[string]float64{
	"claude-sonnet-4-5": 6.0,
	"gpt-3.5-turbo":     1.0,
}

const defaultPricePerMillionTokens = 6.0

// EstimateCost approximates the USD cost of a single summarization call
// from its prompt length, assuming ~4 characters per token and a fixed
// output budget.
func EstimateCost(model string, promptChars int) float64 {
	price, ok := modelPricing[model]
	if !ok {
		price = defaultPricePerMillionTokens
	}
	const outputTokenBudget = 400
	inputTokens := float64(promptChars) / 4
	totalTokens := inputTokens + outputTokenBudget
	return totalTokens / 1_000_000 * price
}

// nextWindow returns how long until the cost meter's bucket is likely to
// admit another minimal reservation, used by the dispatcher to back off
// instead of busy-polling when the ceiling is hit.
func nextWindowWait(hourlyCeilingCents int) time.Duration {
	if hourlyCeilingCents <= 0 {
		return time.Minute
	}
	secondsPerCent := 3600.0 / float64(hourlyCeilingCents)
	wait := time.Duration(secondsPerCent * float64(time.Second))
	if wait < time.Second {
		return time.Second
	}
	if wait > time.Minute {
		return time.Minute
	}
	return wait
}
