package antigaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateQuote_HighReputationNoSurcharge(t *testing.T) {
	d := EvaluateQuote(0.9, 100, 100, 0)
	assert.Equal(t, 100.0, d.AdjustedAsk)
	assert.True(t, d.Accepted)
	assert.Empty(t, d.Flags)
}

func TestEvaluateQuote_LowReputationSurcharge(t *testing.T) {
	d := EvaluateQuote(0.0, 100, 100, 0)
	assert.Greater(t, d.AdjustedAsk, 100.0)
	assert.False(t, d.Accepted)
	assert.Contains(t, d.Flags, "LOW_REP_SURCHARGE")
}

func TestEvaluateQuote_AcceptsWhenAffordableAfterSurcharge(t *testing.T) {
	d := EvaluateQuote(0.5, 100, 200, 0)
	assert.True(t, d.Accepted)
	assert.Contains(t, d.Flags, "LOW_REP_SURCHARGE")
}

func TestEvaluateQuote_BadFaithPenaltyCompounds(t *testing.T) {
	withoutPenalty := EvaluateQuote(0.5, 100, 200, 0)
	withPenalty := EvaluateQuote(0.5, 100, 200, badFaithPenaltyMultiplier)
	assert.Greater(t, withPenalty.AdjustedAsk, withoutPenalty.AdjustedAsk)
}

func TestReputationSurcharge_Monotone(t *testing.T) {
	assert.GreaterOrEqual(t, reputationSurcharge(0.0), reputationSurcharge(0.3))
	assert.GreaterOrEqual(t, reputationSurcharge(0.3), reputationSurcharge(0.7))
	assert.Equal(t, 1.0, reputationSurcharge(1.0))
}
