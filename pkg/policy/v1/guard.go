package v1

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type check struct {
	phase Phase
	name  string
	run   func(p Policy, c Context) (bool, string, string)
}

// Evaluate runs every phase's checks in the normative order of spec.md
// §4.5's table. The first failing check wins; all subsequent checks (even
// ones in the same phase) are skipped, matching v1's first-failing-check
// semantics — distinct from the v4 tree, which accumulates violations.
func Evaluate(p Policy, c Context) Result {
	for _, chk := range checks {
		ok, code, reason := chk.run(p, c)
		if !ok {
			return Result{
				Allowed: false,
				FailedCheck: &CheckOutcome{
					Phase:       chk.phase,
					Check:       chk.name,
					OK:          false,
					FailureCode: code,
					Reason:      reason,
				},
				EvidenceRefs: []string{fmt.Sprintf("policy_id:%s", p.PolicyID), fmt.Sprintf("policy_check:%s/%s", chk.phase, chk.name)},
			}
		}
	}
	return Result{Allowed: true, EvidenceRefs: []string{fmt.Sprintf("policy_id:%s", p.PolicyID)}}
}

var checks = []check{
	// identity
	{PhaseIdentity, "new_agent_excluded", checkNewAgentExcluded},
	{PhaseIdentity, "region_allowlist", checkRegionAllowlist},
	{PhaseIdentity, "failure_timeout_rates", checkFailureTimeoutRates},
	{PhaseIdentity, "required_credentials", checkRequiredCredentials},
	{PhaseIdentity, "trusted_issuer", checkTrustedIssuer},
	{PhaseIdentity, "passport_v1_constraints", checkIdentityPassport},

	// intent
	{PhaseIntent, "time_semantics", checkTimeSemantics},
	{PhaseIntent, "admission", checkAdmission},
	{PhaseIntent, "runtime_flags", checkRuntimeFlags},

	// negotiation
	{PhaseNegotiation, "max_rounds", checkMaxRounds},
	{PhaseNegotiation, "max_duration", checkMaxDuration},
	{PhaseNegotiation, "firm_quote_valid_for", checkFirmQuoteValidFor},
	{PhaseNegotiation, "reference_band", checkReferenceBand},
	{PhaseNegotiation, "counterparty_passport", checkCounterpartyPassport},

	// lock
	{PhaseLock, "settlement_mode_allowlist", checkSettlementModeAllowlist},
	{PhaseLock, "pre_settlement_lock", checkPreSettlementLock},
	{PhaseLock, "seller_bond", checkSellerBond},

	// exchange
	{PhaseExchange, "schema_validation", checkSchemaValidation},
	{PhaseExchange, "streaming_spend_cap", checkStreamingSpendCap},
	{PhaseExchange, "latency_freshness", checkLatencyFreshness},

	// resolution
	{PhaseResolution, "transcript_storage_allowed", checkTranscriptStorageAllowed},
}

func checkNewAgentExcluded(p Policy, c Context) (bool, string, string) {
	if p.ExcludeNewAgents && c.IsNewAgent {
		return false, "PACT-201", "new agent excluded by policy"
	}
	return true, "", ""
}

func checkRegionAllowlist(p Policy, c Context) (bool, string, string) {
	if len(p.AllowedRegions) == 0 {
		return true, "", ""
	}
	for _, r := range p.AllowedRegions {
		if r == c.Region || r == "*" {
			return true, "", ""
		}
	}
	return false, "PACT-101", fmt.Sprintf("region %q not in allow-list", c.Region)
}

func checkFailureTimeoutRates(p Policy, c Context) (bool, string, string) {
	if p.MaxFailureRate > 0 && c.RecentFailureRate > p.MaxFailureRate {
		return false, "PACT-101", "recent failure rate exceeds policy maximum"
	}
	if p.MaxTimeoutRate > 0 && c.RecentTimeoutRate > p.MaxTimeoutRate {
		return false, "PACT-101", "recent timeout rate exceeds policy maximum"
	}
	return true, "", ""
}

func checkRequiredCredentials(p Policy, c Context) (bool, string, string) {
	have := map[string]bool{}
	for _, cr := range c.Credentials {
		have[cr] = true
	}
	for _, req := range p.RequiredCredentials {
		if !have[req] {
			return false, "PACT-201", fmt.Sprintf("missing required credential %q", req)
		}
	}
	return true, "", ""
}

func checkTrustedIssuer(p Policy, c Context) (bool, string, string) {
	if len(p.TrustedIssuers) == 0 {
		return true, "", ""
	}
	for _, issuer := range p.TrustedIssuers {
		if issuer == c.Issuer {
			return true, "", ""
		}
	}
	return false, "PACT-201", fmt.Sprintf("issuer %q is not trusted", c.Issuer)
}

func checkIdentityPassport(p Policy, c Context) (bool, string, string) {
	if p.MinPassportScore > 0 && c.PassportScore < p.MinPassportScore {
		return false, "PACT-101", "passport score below identity-phase minimum"
	}
	if p.MinPassportConfidence > 0 && c.PassportConfidence < p.MinPassportConfidence {
		return false, "PACT-101", "passport confidence below identity-phase minimum"
	}
	return true, "", ""
}

func checkTimeSemantics(p Policy, c Context) (bool, string, string) {
	if c.ExpiresAtMs == 0 {
		return false, "PACT-101", "intent missing expires_at"
	}
	if c.NowMs > c.ExpiresAtMs {
		return false, "PACT-101", "intent expired"
	}
	validFor := c.ExpiresAtMs - c.SentAtMs
	if p.MinValidForMs > 0 && validFor < p.MinValidForMs {
		return false, "PACT-101", "intent valid-for below policy minimum"
	}
	if p.MaxValidForMs > 0 && validFor > p.MaxValidForMs {
		return false, "PACT-101", "intent valid-for above policy maximum"
	}
	skew := c.NowMs - c.SentAtMs
	if skew < 0 {
		skew = -skew
	}
	if p.MaxClockSkewMs > 0 && skew > p.MaxClockSkewMs {
		return false, "PACT-101", "clock skew exceeds policy maximum"
	}
	return true, "", ""
}

func checkAdmission(p Policy, c Context) (bool, string, string) {
	if len(p.IntentAllowlist) > 0 {
		allowed := false
		for _, t := range p.IntentAllowlist {
			if t == c.IntentType {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "PACT-101", fmt.Sprintf("intent type %q not in allow-list", c.IntentType)
		}
	}
	if p.SessionSpendCapUSD > 0 && c.SessionSpendUSD > p.SessionSpendCapUSD {
		return false, "PACT-101", "session spend cap exceeded"
	}
	if !c.HasBondProof && !c.HasCredentialProof && !c.HasSponsorProof {
		return false, "PACT-101", "no admission proof present (bond, credential, or sponsor)"
	}
	return true, "", ""
}

func checkRuntimeFlags(p Policy, c Context) (bool, string, string) {
	if p.KillSwitchEngaged {
		return false, "PACT-101", "kill switch engaged"
	}
	if p.MaxRateWindow > 0 && c.CurrentRate > p.MaxRateWindow {
		return false, "PACT-101", "rate limit exceeded"
	}
	if p.MaxConcurrency > 0 && c.CurrentConcurrency > p.MaxConcurrency {
		return false, "PACT-101", "concurrency limit exceeded"
	}
	if p.MaxBudgetUSD > 0 && c.CurrentBudgetUSD > p.MaxBudgetUSD {
		return false, "PACT-101", "budget limit exceeded"
	}
	return true, "", ""
}

func checkMaxRounds(p Policy, c Context) (bool, string, string) {
	limit := p.MaxRounds
	if c.IsNewAgent {
		limit += p.NewAgentMaxRoundsBonus
	}
	if limit > 0 && c.RoundNumber > limit {
		return false, "PACT-101", "round number exceeds maximum"
	}
	return true, "", ""
}

func checkMaxDuration(p Policy, c Context) (bool, string, string) {
	if p.MaxDurationMs > 0 {
		elapsed := c.NowMs - c.NegotiationStartMs
		if elapsed > p.MaxDurationMs {
			return false, "PACT-101", "negotiation duration exceeds maximum"
		}
	}
	return true, "", ""
}

func checkFirmQuoteValidFor(p Policy, c Context) (bool, string, string) {
	if p.MinFirmQuoteValidMs == 0 && p.MaxFirmQuoteValidMs == 0 {
		return true, "", ""
	}
	if c.FirmQuoteValidMs == 0 {
		return false, "PACT-101", "firm quote missing valid-for duration"
	}
	if p.MinFirmQuoteValidMs > 0 && c.FirmQuoteValidMs < p.MinFirmQuoteValidMs {
		return false, "PACT-101", "firm quote valid-for below minimum"
	}
	if p.MaxFirmQuoteValidMs > 0 && c.FirmQuoteValidMs > p.MaxFirmQuoteValidMs {
		return false, "PACT-101", "firm quote valid-for above maximum"
	}
	return true, "", ""
}

func checkReferenceBand(p Policy, c Context) (bool, string, string) {
	if c.UrgentOverride || c.ReferenceBandMid <= 0 {
		return true, "", ""
	}
	low := c.ReferenceBandMid * (1 - p.ReferenceBandLowPct)
	high := c.ReferenceBandMid * (1 + p.ReferenceBandHighPct)
	if c.QuotedPrice < low || c.QuotedPrice > high {
		return false, "PACT-101", "quoted price outside reference band"
	}
	return true, "", ""
}

func checkCounterpartyPassport(p Policy, c Context) (bool, string, string) {
	if p.MinCounterpartyScore > 0 && c.CounterpartyScoreKnown && c.CounterpartyScore < p.MinCounterpartyScore {
		return false, "PACT-101", "counterparty passport score below minimum"
	}
	return true, "", ""
}

func checkSettlementModeAllowlist(p Policy, c Context) (bool, string, string) {
	if len(p.AllowedSettlementModes) == 0 {
		return true, "", ""
	}
	for _, m := range p.AllowedSettlementModes {
		if m == c.SettlementMode {
			return true, "", ""
		}
	}
	return false, "PACT-401", fmt.Sprintf("settlement mode %q not in allow-list", c.SettlementMode)
}

func checkPreSettlementLock(p Policy, c Context) (bool, string, string) {
	if p.RequirePreSettlementLock && !c.PreSettlementLocked {
		return false, "PACT-401", "pre-settlement lock required but absent"
	}
	return true, "", ""
}

func checkSellerBond(p Policy, c Context) (bool, string, string) {
	if p.BondMultiple <= 0 {
		return true, "", ""
	}
	multiple := p.BondMultiple
	if c.IsNewAgent && p.NewAgentBondMultiplier > 0 {
		multiple *= p.NewAgentBondMultiplier
	}
	required := float64(c.PriceMinor) * multiple
	if required < float64(p.MinBondMinor) {
		required = float64(p.MinBondMinor)
	}
	if float64(c.SellerBondMinor) < required {
		return false, "PACT-401", "seller bond below required amount"
	}
	return true, "", ""
}

func checkSchemaValidation(p Policy, c Context) (bool, string, string) {
	if !p.RequireSchemaValidation || p.ExchangeSchema == "" {
		return true, "", ""
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const schemaURL = "mem://pact/exchange.schema.json"
	if err := compiler.AddResource(schemaURL, strings.NewReader(p.ExchangeSchema)); err != nil {
		return false, "PACT-301", fmt.Sprintf("exchange schema load failed: %v", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return false, "PACT-301", fmt.Sprintf("exchange schema compile failed: %v", err)
	}
	if err := compiled.Validate(c.ExchangePayload); err != nil {
		return false, "PACT-301", fmt.Sprintf("exchange payload failed schema validation: %v", err)
	}
	return true, "", ""
}

func checkStreamingSpendCap(p Policy, c Context) (bool, string, string) {
	if p.StreamingSpendCapUSD > 0 && c.StreamingSpendUSD > p.StreamingSpendCapUSD {
		return false, "PACT-301", "streaming spend cap exceeded"
	}
	return true, "", ""
}

func checkLatencyFreshness(p Policy, c Context) (bool, string, string) {
	if p.MaxLatencyMs > 0 && c.ObservedLatencyMs > p.MaxLatencyMs {
		return false, "PACT-301", "observed latency exceeds SLA"
	}
	if p.MaxFreshnessMs > 0 && c.DataFreshnessMs > p.MaxFreshnessMs {
		return false, "PACT-301", "data freshness exceeds SLA"
	}
	return true, "", ""
}

func checkTranscriptStorageAllowed(p Policy, c Context) (bool, string, string) {
	// Not a failure: the resolution phase's check is whether storage is
	// forbidden, which silently suppresses receipts rather than denying
	// the transcript itself. Modelled as an always-passing check whose
	// caller consults p.ForbidTranscriptStorage directly when deciding
	// whether to persist — see StorageAllowed.
	return true, "", ""
}

// StorageAllowed reports whether the resolution phase permits persisting
// this transcript's receipts, per spec.md §4.5's resolution row.
func StorageAllowed(p Policy) bool {
	return !p.ForbidTranscriptStorage
}
