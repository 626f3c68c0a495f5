// Package v1tov4 compiles a v1 staged-guard policy into a v4 rule-tree
// policy that reproduces its checks, with the exceptions listed below, so
// callers can route both legacy and current policy
// documents through pkg/policy's single evaluator (the "implementation
// decision" spec.md §9 leaves open: keep both forms, bridge with a
// compiler, rather than maintaining two independent evaluators that could
// silently drift apart in their judgment of the same transcript).
//
// Each v1 check becomes one named v4 rule expressed as a CEL condition
// (pkg/policy's escape hatch) over a context map using the same field
// names as v1.Context, lower-cased to match the convention the rest of
// the v4 rules use. Compiling to CEL rather than to the leaf/AND/OR/NOT
// struct form is necessary because several v1 checks are derived
// quantities (elapsed = now - negotiation_start, required bond = price *
// multiple) that the flat leaf-operator form cannot express directly.
//
// One check is deliberately not bridged: the exchange phase's
// checkSchemaValidation compiles p.ExchangeSchema with
// santhosh-tekuri/jsonschema and validates a nested payload against it —
// a JSON Schema walk has no equivalent as a boolean CEL expression over a
// flat context map, since CEL has no schema-validation builtin and the
// schema itself would have to be embedded as a string literal the
// generated expression re-parses at every evaluation. A v1 policy that
// sets RequireSchemaValidation therefore keeps that constraint only when
// evaluated through v1.Evaluate directly, not through this bridge.
//
// The compiled policy also differs from v1.Evaluate in these places: the
// intent-phase time check compiles to now_ms <= expires_at_ms only, so
// MinValidForMs, MaxValidForMs and MaxClockSkewMs produce no rule;
// negotiation/max_rounds compares against MaxRounds alone and does not add
// NewAgentMaxRoundsBonus for new agents; and ForbidTranscriptStorage
// compiles to an always-violated rule, whereas v1.Evaluate passes that
// check and leaves the storage decision to v1.StorageAllowed.
package v1tov4

import (
	"fmt"
	"strings"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
	v1 "github.com/seankkoons-gif/pact-protocol-sub003/pkg/policy/v1"
)

// Compile translates a v1 policy into a v4 rule-tree policy. Rule order
// mirrors v1's phase/check evaluation order, so a caller that stops at
// the first violated rule (as pkg/policy's Evaluate reports violations in
// rule order) observes the same "first failing check" semantics v1 has
// natively.
func Compile(p v1.Policy) pact.Policy {
	var rules []pact.Rule

	if p.ExcludeNewAgents {
		rules = append(rules, celRule("identity/new_agent_excluded",
			`!context["is_new_agent"]`))
	}
	if len(p.AllowedRegions) > 0 {
		rules = append(rules, celRule("identity/region_allowlist",
			inSet("region", p.AllowedRegions)))
	}
	if p.MaxFailureRate > 0 {
		rules = append(rules, celRule("identity/failure_rate",
			fmt.Sprintf(`context["recent_failure_rate"] <= %s`, floatLiteral(p.MaxFailureRate))))
	}
	if p.MaxTimeoutRate > 0 {
		rules = append(rules, celRule("identity/timeout_rate",
			fmt.Sprintf(`context["recent_timeout_rate"] <= %s`, floatLiteral(p.MaxTimeoutRate))))
	}
	for _, cred := range p.RequiredCredentials {
		rules = append(rules, celRule("identity/required_credential:"+cred,
			fmt.Sprintf(`%q in context["credentials"]`, cred)))
	}
	if len(p.TrustedIssuers) > 0 {
		rules = append(rules, celRule("identity/trusted_issuer",
			inSet("issuer", p.TrustedIssuers)))
	}
	if p.MinPassportScore > 0 {
		rules = append(rules, celRule("identity/min_passport_score",
			fmt.Sprintf(`context["passport_score"] >= %s`, floatLiteral(p.MinPassportScore))))
	}
	if p.MinPassportConfidence > 0 {
		rules = append(rules, celRule("identity/min_passport_confidence",
			fmt.Sprintf(`context["passport_confidence"] >= %s`, floatLiteral(p.MinPassportConfidence))))
	}

	rules = append(rules, celRule("intent/not_expired",
		`context["now_ms"] <= context["expires_at_ms"]`))
	if len(p.IntentAllowlist) > 0 {
		rules = append(rules, celRule("intent/allowlist",
			inSet("intent_type", p.IntentAllowlist)))
	}
	if p.SessionSpendCapUSD > 0 {
		rules = append(rules, celRule("intent/session_spend_cap",
			fmt.Sprintf(`context["session_spend_usd"] <= %s`, floatLiteral(p.SessionSpendCapUSD))))
	}
	// Unconditional, matching checkAdmission: some proof of standing must
	// always accompany an intent, independent of any threshold. Guarded
	// with "in context" since this rule is emitted even for policies that
	// never populate these fields, unlike intent/not_expired, whose two
	// fields every context is expected to carry, and every other rule here,
	// which is only emitted once its matching policy field is set.
	rules = append(rules, celRule("intent/admission_proof",
		`(("has_bond_proof" in context) && context["has_bond_proof"]) || `+
			`(("has_credential_proof" in context) && context["has_credential_proof"]) || `+
			`(("has_sponsor_proof" in context) && context["has_sponsor_proof"])`))
	if p.KillSwitchEngaged {
		rules = append(rules, celRule("intent/kill_switch", `false`))
	}
	if p.MaxRateWindow > 0 {
		rules = append(rules, celRule("intent/max_rate_window",
			fmt.Sprintf(`context["current_rate"] <= %d`, p.MaxRateWindow)))
	}
	if p.MaxConcurrency > 0 {
		rules = append(rules, celRule("intent/max_concurrency",
			fmt.Sprintf(`context["current_concurrency"] <= %d`, p.MaxConcurrency)))
	}
	if p.MaxBudgetUSD > 0 {
		rules = append(rules, celRule("intent/max_budget",
			fmt.Sprintf(`context["current_budget_usd"] <= %s`, floatLiteral(p.MaxBudgetUSD))))
	}

	if p.MaxRounds > 0 {
		rules = append(rules, celRule("negotiation/max_rounds",
			fmt.Sprintf(`context["round_number"] <= %d`, p.MaxRounds)))
	}
	if p.MaxDurationMs > 0 {
		rules = append(rules, celRule("negotiation/max_duration",
			fmt.Sprintf(`(context["now_ms"] - context["negotiation_start_ms"]) <= %d`, p.MaxDurationMs)))
	}
	if p.MinFirmQuoteValidMs > 0 || p.MaxFirmQuoteValidMs > 0 {
		rules = append(rules, celRule("negotiation/firm_quote_valid_for", firmQuoteValidForExpr(p)))
	}
	// Unconditional, matching checkReferenceBand: the skip condition
	// (urgent override, or no reference price known) lives in the
	// context, not the policy, so it is evaluated at runtime rather than
	// gating whether the rule is emitted at compile time. Guarded with
	// "in context" for the same reason as intent/admission_proof above.
	rules = append(rules, celRule("negotiation/reference_band",
		fmt.Sprintf(`(("urgent_override" in context) && context["urgent_override"]) || `+
			`!("reference_band_mid" in context) || context["reference_band_mid"] <= 0.0 || `+
			`(context["quoted_price"] >= context["reference_band_mid"] * %s && `+
			`context["quoted_price"] <= context["reference_band_mid"] * %s)`,
			floatLiteral(1-p.ReferenceBandLowPct), floatLiteral(1+p.ReferenceBandHighPct))))
	if p.MinCounterpartyScore > 0 {
		rules = append(rules, celRule("negotiation/counterparty_passport",
			fmt.Sprintf(`!(("counterparty_score_known" in context) && context["counterparty_score_known"]) || `+
				`context["counterparty_score"] >= %s`,
				floatLiteral(p.MinCounterpartyScore))))
	}

	if len(p.AllowedSettlementModes) > 0 {
		rules = append(rules, celRule("lock/settlement_mode_allowlist",
			inSet("settlement_mode", p.AllowedSettlementModes)))
	}
	if p.RequirePreSettlementLock {
		rules = append(rules, celRule("lock/pre_settlement_lock",
			`context["pre_settlement_locked"]`))
	}
	if p.BondMultiple > 0 {
		rules = append(rules, celRule("lock/seller_bond", sellerBondExpr(p)))
	}

	if p.StreamingSpendCapUSD > 0 {
		rules = append(rules, celRule("exchange/streaming_spend_cap",
			fmt.Sprintf(`context["streaming_spend_usd"] <= %s`, floatLiteral(p.StreamingSpendCapUSD))))
	}
	if p.MaxLatencyMs > 0 || p.MaxFreshnessMs > 0 {
		rules = append(rules, celRule("exchange/latency_freshness", latencyFreshnessExpr(p)))
	}

	if p.ForbidTranscriptStorage {
		rules = append(rules, celRule("resolution/transcript_storage_forbidden", `false`))
	}

	return pact.Policy{
		PolicyVersion: pact.PolicyVersion4,
		PolicyID:      p.PolicyID,
		Rules:         rules,
	}
}

func celRule(name, expr string) pact.Rule {
	return pact.Rule{Name: name, Condition: pact.Condition{CEL: expr}}
}

func inSet(field string, values []string) string {
	expr := fmt.Sprintf(`context[%q] in [`, field)
	for i, v := range values {
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("%q", v)
	}
	return expr + "]"
}

func floatLiteral(f float64) string {
	s := fmt.Sprintf("%v", f)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// firmQuoteValidForExpr mirrors checkFirmQuoteValidFor: a quote of zero
// validity is never acceptable once either bound is configured, and
// whichever of Min/Max is unset (zero) imposes no bound.
func firmQuoteValidForExpr(p v1.Policy) string {
	expr := `context["firm_quote_valid_ms"] != 0.0`
	if p.MinFirmQuoteValidMs > 0 {
		expr += fmt.Sprintf(` && context["firm_quote_valid_ms"] >= %d`, p.MinFirmQuoteValidMs)
	}
	if p.MaxFirmQuoteValidMs > 0 {
		expr += fmt.Sprintf(` && context["firm_quote_valid_ms"] <= %d`, p.MaxFirmQuoteValidMs)
	}
	return expr
}

// sellerBondExpr mirrors checkSellerBond: the required bond is the quoted
// price times a multiple (bumped for new agents), floored at MinBondMinor.
func sellerBondExpr(p v1.Policy) string {
	base := fmt.Sprintf("context[\"price_minor\"] * %s", floatLiteral(p.BondMultiple))
	required := base
	if p.NewAgentBondMultiplier > 0 {
		bumped := fmt.Sprintf("context[\"price_minor\"] * %s", floatLiteral(p.BondMultiple*p.NewAgentBondMultiplier))
		required = fmt.Sprintf(`(context["is_new_agent"] ? %s : %s)`, bumped, base)
	}
	floor := floatLiteral(float64(p.MinBondMinor))
	return fmt.Sprintf(`context["seller_bond_minor"] >= (%s > %s ? %s : %s)`, required, floor, required, floor)
}

// latencyFreshnessExpr mirrors checkLatencyFreshness: each bound applies
// only when configured (<= 0 means unbounded).
func latencyFreshnessExpr(p v1.Policy) string {
	clauses := make([]string, 0, 2)
	if p.MaxLatencyMs > 0 {
		clauses = append(clauses, fmt.Sprintf(`context["observed_latency_ms"] <= %d`, p.MaxLatencyMs))
	}
	if p.MaxFreshnessMs > 0 {
		clauses = append(clauses, fmt.Sprintf(`context["data_freshness_ms"] <= %d`, p.MaxFreshnessMs))
	}
	expr := clauses[0]
	for _, c := range clauses[1:] {
		expr += " && " + c
	}
	return expr
}
