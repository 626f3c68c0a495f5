package antigaming

const (
	// lowballThreshold is spec.md §4.8's "counter-price ≤ 30% of ask"
	// transcript-flagging pattern.
	lowballThreshold = 0.3
)

// ScanNegotiationRounds implements spec.md §4.8's transcript flagging:
// a counter-price at or below 30% of the corresponding ask is flagged as
// a lowball pattern.
func ScanNegotiationRounds(rounds []NegotiationRound) []string {
	var flags []string
	for _, r := range rounds {
		if r.AskPrice > 0 && r.CounterPrice <= lowballThreshold*r.AskPrice {
			flags = append(flags, "LOWBALL_COUNTER")
		}
	}
	return flags
}

// Consolidate combines the four guards into spec.md §4.8's single
// {flags[], agentStatus, explanations} record. Status precedence is
// bad faith first (the strongest signal), then rate limiting, else OK;
// flags from every guard are always included regardless of status.
func Consolidate(rateLimit RateLimitResult, quote QuoteDecision, badFaith BadFaithStatus, negotiationFlags []string) GuardReport {
	var flags []string
	var explanations []string
	status := "OK"

	if !rateLimit.OK {
		flags = append(flags, "RATE_LIMITED")
		explanations = append(explanations, rateLimit.Reason)
		status = "RATE_LIMITED"
	}

	flags = append(flags, quote.Flags...)

	if badFaith.BadFaithDetected {
		flags = append(flags, badFaith.Flag)
		explanations = append(explanations, "3+ rejections with bid-gap over 50% in the rolling window")
		status = "BAD_FAITH"
	}

	flags = append(flags, negotiationFlags...)

	return GuardReport{
		Flags:        flags,
		AgentStatus:  status,
		Explanations: explanations,
	}
}
