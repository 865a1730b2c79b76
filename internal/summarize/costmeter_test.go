package summarize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsfeed/internal/clock"
)

func TestCostMeter_AllowsSpendWithinCeiling(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m := NewCostMeter(100, clk)

	assert.True(t, m.TryReserve(0.50))
}

func TestCostMeter_DeniesSpendPastCeiling(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m := NewCostMeter(100, clk)

	assert.True(t, m.TryReserve(0.90))
	assert.False(t, m.TryReserve(0.90))
}

func TestCostMeter_RefillsOverTime(t *testing.T) {
	now := time.Now()
	clk := clock.NewFakeClock(now)
	m := NewCostMeter(3600, clk)

	assert.True(t, m.TryReserve(35.50))
	assert.False(t, m.TryReserve(0.60))

	clk.Advance(15 * time.Second)
	assert.True(t, m.TryReserve(0.60))
}

func TestEstimateCost_UsesModelPricingWhenKnown(t *testing.T) {
	cost := EstimateCost("claude-sonnet-4-5", 4000)
	assert.Greater(t, cost, 0.0)
}

func TestEstimateCost_FallsBackForUnknownModel(t *testing.T) {
	cost := EstimateCost("some-unlisted-model", 4000)
	assert.Greater(t, cost, 0.0)
}

func TestNextWindowWait_ClampsToRange(t *testing.T) {
	assert.Equal(t, time.Minute, nextWindowWait(0))
	assert.LessOrEqual(t, nextWindowWait(1_000_000), time.Minute)
	assert.GreaterOrEqual(t, nextWindowWait(1_000_000), time.Second)
}
