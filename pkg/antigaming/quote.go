package antigaming

// reputationFloor is the reputation below which a surcharge applies; at or
// above it no surcharge is charged. spec.md §4.8 specifies the *behavior*
// ("low reputation pays a surcharge") but not the exact curve, so this
// package picks a concrete, documented one: a multiplier linear from
// 1+maxSurcharge at r=0 down to 1.0 at reputationFloor.
const (
	reputationFloor = 0.7
	maxSurcharge    = 0.2
)

// reputationSurcharge returns the multiplier applied to ask price for a
// buyer of reputation r ∈ [0,1].
func reputationSurcharge(r float64) float64 {
	if r >= reputationFloor {
		return 1.0
	}
	if r < 0 {
		r = 0
	}
	return 1.0 + maxSurcharge*(reputationFloor-r)/reputationFloor
}

// EvaluateQuote implements spec.md §4.8's reputation-weighted quote
// acceptance: adjust ask by a reputation-dependent surcharge (further
// scaled by any bad-faith penaltyMultiplier in effect for this
// (agent, counterparty) pair), flag the surcharge when applied, and
// accept iff the adjusted ask is within the buyer's stated max price.
func EvaluateQuote(reputation, ask, maxPrice, penaltyMultiplier float64) QuoteDecision {
	if penaltyMultiplier <= 0 {
		penaltyMultiplier = 1.0
	}
	multiplier := reputationSurcharge(reputation) * penaltyMultiplier
	adjustedAsk := ask * multiplier

	var flags []string
	if multiplier > 1.0 {
		flags = append(flags, "LOW_REP_SURCHARGE")
	}

	return QuoteDecision{
		AdjustedAsk: adjustedAsk,
		Accepted:    adjustedAsk <= maxPrice,
		Flags:       flags,
	}
}
