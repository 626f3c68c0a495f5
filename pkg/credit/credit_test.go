package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

const testDay = int64(24 * 3600 * 1000)

func TestComputeTier_Boundaries(t *testing.T) {
	assert.Equal(t, pact.TierA, ComputeTier(85, 0.8))
	assert.Equal(t, pact.TierB, ComputeTier(85, 0.79))
	assert.Equal(t, pact.TierB, ComputeTier(70, 0.7))
	assert.Equal(t, pact.TierC, ComputeTier(69.999999, 0.7))
	assert.Equal(t, pact.TierC, ComputeTier(90, 0.5))
}

func TestComputeTerms_NoHistoryUsesBaseTier(t *testing.T) {
	now := int64(1_000) * testDay
	state := ComputeTerms(90, 0.9, now, History{})
	assert.Equal(t, pact.TierA, state.Tier)
	assert.Equal(t, 5000.0, state.MaxOutstandingUSD)
	assert.Equal(t, int64(0), state.DisabledUntilMs)
	assert.Empty(t, state.Reason)
}

// Seed scenario 5: credit kill switch on a PACT-1xx violation within the window.
func TestComputeTerms_PACT1xxKillSwitch(t *testing.T) {
	now := int64(1_000) * testDay
	h := History{RecentFailures: []FailureRecord{
		{Code: "PACT-101", TimestampMs: now - 5*testDay},
	}}

	state := ComputeTerms(90, 0.85, now, h)
	assert.Equal(t, pact.TierC, state.Tier)
	assert.Equal(t, "PACT-1xx_VIOLATION", state.Reason)
	assert.Equal(t, now+30*testDay, state.DisabledUntilMs)

	result := CanExtendCredit(state, pact.CreditExposure{}, "CP", 100, now)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, DenialTierOrKillSwitch)
}

func TestComputeTerms_PACT1xxOutsideWindowDoesNotTrigger(t *testing.T) {
	now := int64(1_000) * testDay
	h := History{RecentFailures: []FailureRecord{
		{Code: "PACT-101", TimestampMs: now - 31*testDay},
	}}
	state := ComputeTerms(90, 0.9, now, h)
	assert.Equal(t, pact.TierA, state.Tier)
	assert.Empty(t, state.Reason)
}

func TestComputeTerms_PACT2xxIdentityFailure(t *testing.T) {
	now := int64(1_000) * testDay
	h := History{RecentFailures: []FailureRecord{
		{Code: "PACT-201", TimestampMs: now - 1*testDay},
	}}
	state := ComputeTerms(90, 0.9, now, h)
	assert.Equal(t, pact.TierC, state.Tier)
	assert.Equal(t, "IDENTITY_FAILURE", state.Reason)
	assert.Equal(t, int64(0), state.DisabledUntilMs)
}

func TestComputeTerms_ExcessiveSettlementFailures(t *testing.T) {
	now := int64(1_000) * testDay
	var failures []FailureRecord
	for i := 0; i < 10; i++ {
		failures = append(failures, FailureRecord{Code: "PACT-401", TimestampMs: now - int64(i)*testDay})
	}
	state := ComputeTerms(90, 0.9, now, History{RecentFailures: failures})
	assert.Equal(t, pact.TierC, state.Tier)
	assert.Equal(t, "SETTLEMENT_FAILURES_EXCESSIVE", state.Reason)
}

func TestComputeTerms_DowngradeOnThreeRecentSettlementFailures(t *testing.T) {
	now := int64(1_000) * testDay
	failures := []FailureRecord{
		{Code: "PACT-401", TimestampMs: now - 1*testDay},
		{Code: "PACT-402", TimestampMs: now - 2*testDay},
		{Code: "PACT-403", TimestampMs: now - 3*testDay},
	}
	state := ComputeTerms(90, 0.9, now, History{RecentFailures: failures})
	assert.Equal(t, pact.TierB, state.Tier)
	assert.Empty(t, state.Reason)
}

func TestComputeTerms_DowngradeOnDisputeLoss(t *testing.T) {
	now := int64(1_000) * testDay
	state := ComputeTerms(75, 0.75, now, History{DisputeLossTimestamps: []int64{now - 10*testDay}})
	assert.Equal(t, pact.TierC, state.Tier)
}

func TestCanExtendCredit_WithinCapsAllowed(t *testing.T) {
	state := tierTerms[pact.TierA]
	state.Tier = pact.TierA
	result := CanExtendCredit(state, pact.CreditExposure{}, "CP", 1000, 0)
	assert.True(t, result.Allowed)
	assert.Equal(t, 200.0, result.RequiredCollateral)
	assert.Equal(t, 800.0, result.CreditExposure)
}

func TestCanExtendCredit_PerIntentExceeded(t *testing.T) {
	state := tierTerms[pact.TierA]
	state.Tier = pact.TierA
	result := CanExtendCredit(state, pact.CreditExposure{}, "CP", 3000, 0)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, DenialPerIntentExceeded)
}

func TestCanExtendCredit_PerCounterpartyExceeded(t *testing.T) {
	state := tierTerms[pact.TierA]
	state.Tier = pact.TierA
	exposure := pact.CreditExposure{PerCounterpartyUSD: map[string]float64{"CP": 900}}
	result := CanExtendCredit(state, exposure, "CP", 500, 0)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, DenialPerCounterpartyExceeded)
}

func TestCanExtendCredit_OutstandingExceeded(t *testing.T) {
	state := tierTerms[pact.TierA]
	state.Tier = pact.TierA
	exposure := pact.CreditExposure{OutstandingUSD: 4900}
	result := CanExtendCredit(state, exposure, "CP", 500, 0)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, DenialOutstandingExceeded)
}

func TestCanExtendCredit_TierCAlwaysDenied(t *testing.T) {
	state := tierTerms[pact.TierC]
	state.Tier = pact.TierC
	result := CanExtendCredit(state, pact.CreditExposure{}, "CP", 1, 0)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reasons, DenialTierOrKillSwitch)
}

func TestApplyCreditEvent_SuccessIncreasesExposure(t *testing.T) {
	seen := map[string]bool{}
	exposure, applied := ApplyCreditEvent(pact.CreditExposure{}, seen, "hash1", "CP", 100, EventSuccessAccept)
	assert.True(t, applied)
	assert.Equal(t, 100.0, exposure.OutstandingUSD)
	assert.Equal(t, 100.0, exposure.PerCounterpartyUSD["CP"])
}

func TestApplyCreditEvent_TerminalFailureReleasesExposure(t *testing.T) {
	seen := map[string]bool{}
	exposure, _ := ApplyCreditEvent(pact.CreditExposure{}, seen, "hash1", "CP", 100, EventSuccessAccept)
	exposure, applied := ApplyCreditEvent(exposure, seen, "hash2", "CP", 100, EventTerminalFailure)
	assert.True(t, applied)
	assert.Equal(t, 0.0, exposure.OutstandingUSD)
}

func TestApplyCreditEvent_IdempotentOnRepeatedHash(t *testing.T) {
	seen := map[string]bool{}
	exposure, applied := ApplyCreditEvent(pact.CreditExposure{}, seen, "hash1", "CP", 100, EventSuccessAccept)
	assert.True(t, applied)

	exposure2, appliedAgain := ApplyCreditEvent(exposure, seen, "hash1", "CP", 100, EventSuccessAccept)
	assert.False(t, appliedAgain)
	assert.Equal(t, exposure, exposure2)
}

func TestSortedFailureCodes_Deduplicated(t *testing.T) {
	h := History{RecentFailures: []FailureRecord{
		{Code: "PACT-401"}, {Code: "PACT-101"}, {Code: "PACT-401"},
	}}
	assert.Equal(t, []string{"PACT-101", "PACT-401"}, SortedFailureCodes(h))
}
