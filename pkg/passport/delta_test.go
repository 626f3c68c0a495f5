package passport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/judgment"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

func TestApplyDelta_ClampsToUnitRange(t *testing.T) {
	state := ApplyDelta(pact.PassportState{Score: 0.99}, pact.PassportDelta{ScoreDelta: 0.5})
	assert.Equal(t, 1.0, state.Score)

	state = ApplyDelta(pact.PassportState{Score: -0.99}, pact.PassportDelta{ScoreDelta: -0.5})
	assert.Equal(t, -1.0, state.Score)
}

func TestComputeDelta_Success(t *testing.T) {
	d := ComputeDelta(Item{Outcome: OutcomeSuccess})
	assert.Equal(t, 0.01, d.ScoreDelta)
	assert.Equal(t, 1, d.Counters.TotalSettlements)
	assert.Equal(t, 1, d.Counters.SuccessfulSettlements)
}

func TestComputeDelta_PolicyAbort(t *testing.T) {
	d := ComputeDelta(Item{Outcome: OutcomePolicyAbort})
	assert.Equal(t, -0.01, d.ScoreDelta)
	assert.Equal(t, 1, d.Counters.PolicyAborts)
}

func TestComputeDelta_SLATimeout(t *testing.T) {
	d := ComputeDelta(Item{Outcome: OutcomeSLATimeout})
	assert.Equal(t, -0.02, d.ScoreDelta)
	assert.Equal(t, 1, d.Counters.SLAViolations)
}

func TestComputeDelta_DisputeBlamedSigner(t *testing.T) {
	d := ComputeDelta(Item{
		Outcome:            OutcomeDispute,
		BlameMatchesSigner: true,
		Judgment:           &judgment.Judgment{PassportImpact: -0.6},
	})
	assert.Equal(t, -0.6, d.ScoreDelta)
	assert.Equal(t, 1, d.Counters.DisputesLost)
}

func TestComputeDelta_DisputeExonerated(t *testing.T) {
	d := ComputeDelta(Item{Outcome: OutcomeDispute, BlameMatchesSigner: false})
	assert.Equal(t, 0.0, d.ScoreDelta)
	assert.Equal(t, 0, d.Counters.DisputesWon)
}

func TestComputeDelta_IntegrityTamperOverridesEverything(t *testing.T) {
	d := ComputeDelta(Item{Outcome: OutcomeSuccess, IntegrityTamperDetected: true})
	assert.Equal(t, -0.2, d.ScoreDelta)
}

func TestRecompute_PermutationInvariant(t *testing.T) {
	items := []Item{
		{StableID: "t1", SignerKey: "s", Outcome: OutcomeSuccess},
		{StableID: "t2", SignerKey: "s", Outcome: OutcomePolicyAbort},
		{StableID: "t3", SignerKey: "s", Outcome: OutcomeSLATimeout},
	}
	reversed := []Item{items[2], items[1], items[0]}

	a := Recompute(items, "s")
	b := Recompute(reversed, "s")
	assert.Equal(t, a, b)
}

func TestRecompute_DedupesByStableIDAndSigner(t *testing.T) {
	items := []Item{
		{StableID: "t1", SignerKey: "s", Outcome: OutcomeSuccess},
		{StableID: "t1", SignerKey: "s", Outcome: OutcomeSuccess},
	}
	state := Recompute(items, "s")
	assert.Equal(t, 1, state.Counters.TotalSettlements)
}

func TestRecompute_DefaultsToMostFrequentSigner(t *testing.T) {
	items := []Item{
		{StableID: "t1", SignerKey: "a", Outcome: OutcomeSuccess},
		{StableID: "t2", SignerKey: "a", Outcome: OutcomeSuccess},
		{StableID: "t3", SignerKey: "b", Outcome: OutcomeSuccess},
	}
	state := Recompute(items, "")
	assert.Equal(t, "a", state.SignerKey)
}
