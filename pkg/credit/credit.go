// Package credit implements component C7: tier computation, kill switches,
// exposure-cap checks, and idempotent credit event application.
//
// Grounded on the teacher's finance package (finance/money.go for the
// amount fields, which here are plain float64 USD values rather than
// integer minor units), and the mutex-guarded
// InMemoryTracker / row-locked PostgresTracker shape (finance/budget.go,
// finance/postgres_tracker.go) for the exposure bookkeeping this package's
// caller is expected to hold.
package credit

import (
	"sort"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

const day = int64(24 * 3600 * 1000)

// ComputeTier implements spec.md §4.7's base tier computation (before
// kill switches or downgrades are applied).
func ComputeTier(score, confidence float64) pact.CreditTier {
	switch {
	case score >= 85 && confidence >= 0.8:
		return pact.TierA
	case score >= 70 && confidence >= 0.7:
		return pact.TierB
	default:
		return pact.TierC
	}
}

func downgrade(tier pact.CreditTier) pact.CreditTier {
	switch tier {
	case pact.TierA:
		return pact.TierB
	default:
		return pact.TierC
	}
}

// tierTerms is the normative per-tier terms table from spec.md §4.7.
var tierTerms = map[pact.CreditTier]pact.CreditState{
	pact.TierA: {MaxOutstandingUSD: 5000, MaxPerIntentUSD: 2000, MaxPerCounterpartyUSD: 1000, CollateralRatio: 0.20, RequiredEscrow: false},
	pact.TierB: {MaxOutstandingUSD: 1000, MaxPerIntentUSD: 500, MaxPerCounterpartyUSD: 200, CollateralRatio: 0.50, RequiredEscrow: true},
	pact.TierC: {MaxOutstandingUSD: 0, MaxPerIntentUSD: 0, MaxPerCounterpartyUSD: 0, CollateralRatio: 1.00, RequiredEscrow: true},
}

// FailureRecord is one recent failure observed for a signer.
type FailureRecord struct {
	Code        string
	TimestampMs int64
}

// History is the recent-failure/dispute window a signer's terms are
// computed against.
type History struct {
	RecentFailures        []FailureRecord
	DisputeLossTimestamps []int64
}

func family(code string) byte {
	const prefix = "PACT-"
	if len(code) < len(prefix)+1 {
		return 0
	}
	return code[len(prefix)]
}

func countFamilyWithin(records []FailureRecord, fam byte, nowMs, windowMs int64) int {
	n := 0
	for _, r := range records {
		if family(r.Code) == fam && nowMs-r.TimestampMs <= windowMs && nowMs-r.TimestampMs >= 0 {
			n++
		}
	}
	return n
}

func countDisputesWithin(timestamps []int64, nowMs, windowMs int64) int {
	n := 0
	for _, ts := range timestamps {
		if nowMs-ts <= windowMs && nowMs-ts >= 0 {
			n++
		}
	}
	return n
}

// ComputeTerms implements spec.md §4.7's tier computation, downgrade, and
// kill-switch rules together, producing the derived CreditState for a
// signer as of nowMs.
//
// Only the PACT-1xx kill switch carries an explicit duration in spec.md
// ("disabled_until = now + 30d"); the PACT-2xx and excessive-PACT-4xx
// switches are not given one, so this implementation leaves
// DisabledUntilMs unset (0, meaning indefinite/manually-cleared) for
// those two rather than inventing an unstated duration.
func ComputeTerms(score, confidence float64, nowMs int64, h History) pact.CreditState {
	tier := ComputeTier(score, confidence)

	if countFamilyWithin(h.RecentFailures, '4', nowMs, 7*day) >= 3 {
		tier = downgrade(tier)
	}
	if countDisputesWithin(h.DisputeLossTimestamps, nowMs, 60*day) >= 1 {
		tier = downgrade(tier)
	}

	state := tierTerms[tier]
	state.Tier = tier

	switch {
	case countFamilyWithin(h.RecentFailures, '1', nowMs, 30*day) > 0:
		state = killSwitch(nowMs+30*day, "PACT-1xx_VIOLATION")
	case countFamilyWithin(h.RecentFailures, '2', nowMs, 30*day) > 0:
		state = killSwitch(0, "IDENTITY_FAILURE")
	case countFamilyWithin(h.RecentFailures, '4', nowMs, 30*day) >= 10:
		state = killSwitch(0, "SETTLEMENT_FAILURES_EXCESSIVE")
	}

	return state
}

func killSwitch(disabledUntilMs int64, reason string) pact.CreditState {
	state := tierTerms[pact.TierC]
	state.Tier = pact.TierC
	state.DisabledUntilMs = disabledUntilMs
	state.Reason = reason
	return state
}

// DenialReason is the closed set of reasons canExtendCredit may deny for.
type DenialReason string

const (
	DenialTierOrKillSwitch        DenialReason = "TIER_C_OR_KILL_SWITCH"
	DenialOutstandingExceeded     DenialReason = "OUTSTANDING_EXPOSURE_EXCEEDED"
	DenialPerIntentExceeded       DenialReason = "PER_INTENT_EXPOSURE_EXCEEDED"
	DenialPerCounterpartyExceeded DenialReason = "PER_COUNTERPARTY_EXPOSURE_EXCEEDED"
)

// ExtendResult is canExtendCredit's structured outcome.
type ExtendResult struct {
	Allowed            bool           `json:"allowed"`
	Reasons            []DenialReason `json:"reasons,omitempty"`
	RequiredCollateral float64        `json:"required_collateral"`
	CreditExposure     float64        `json:"credit_exposure"`
}

// CanExtendCredit implements spec.md §4.7's canExtendCredit: deny outright
// on tier C or an active kill switch, else compute the incremental
// exposure this intent would add and deny if it would breach any cap.
func CanExtendCredit(state pact.CreditState, exposure pact.CreditExposure, counterparty string, amount float64, nowMs int64) ExtendResult {
	if state.Tier == pact.TierC || (state.DisabledUntilMs > 0 && nowMs < state.DisabledUntilMs) {
		return ExtendResult{Allowed: false, Reasons: []DenialReason{DenialTierOrKillSwitch}}
	}

	requiredCollateral := amount * state.CollateralRatio
	creditExposure := amount - requiredCollateral

	var reasons []DenialReason
	if exposure.OutstandingUSD+creditExposure > state.MaxOutstandingUSD {
		reasons = append(reasons, DenialOutstandingExceeded)
	}
	if creditExposure > state.MaxPerIntentUSD {
		reasons = append(reasons, DenialPerIntentExceeded)
	}
	if exposure.PerCounterpartyUSD[counterparty]+creditExposure > state.MaxPerCounterpartyUSD {
		reasons = append(reasons, DenialPerCounterpartyExceeded)
	}

	return ExtendResult{
		Allowed:            len(reasons) == 0,
		Reasons:            reasons,
		RequiredCollateral: requiredCollateral,
		CreditExposure:     creditExposure,
	}
}

// EventKind distinguishes the two transcript outcomes that move exposure.
type EventKind string

const (
	EventSuccessAccept   EventKind = "success_accept"
	EventTerminalFailure EventKind = "terminal_failure"
)

// ApplyCreditEvent implements spec.md §4.7's idempotent credit event
// application: keyed on transcriptHash, a success with an ACCEPT round
// increases exposure; a terminal failure releases the held exposure; an
// already-seen hash is a no-op. seen is owned by the caller (normally
// pkg/eventstore's credit_events table) so repeated calls across process
// restarts remain idempotent.
func ApplyCreditEvent(exposure pact.CreditExposure, seen map[string]bool, transcriptHash, counterparty string, amount float64, kind EventKind) (pact.CreditExposure, bool) {
	if seen[transcriptHash] {
		return exposure, false
	}
	seen[transcriptHash] = true

	if exposure.PerCounterpartyUSD == nil {
		exposure.PerCounterpartyUSD = map[string]float64{}
	}

	switch kind {
	case EventSuccessAccept:
		exposure.OutstandingUSD += amount
		exposure.PerCounterpartyUSD[counterparty] += amount
	case EventTerminalFailure:
		exposure.OutstandingUSD -= amount
		exposure.PerCounterpartyUSD[counterparty] -= amount
	}
	return exposure, true
}

// SortedFailureCodes is a small debugging/reporting helper returning the
// distinct failure codes in h in sorted order, for callers that want a
// deterministic summary of a counterparty's recent failure history (e.g.
// a future CLI surface or log line) without depending on map iteration
// order.
func SortedFailureCodes(h History) []string {
	seen := map[string]bool{}
	for _, r := range h.RecentFailures {
		seen[r.Code] = true
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
