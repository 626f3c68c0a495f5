package judgment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/transcript"
)

func TestResolve_NoFailureEventIsOK(t *testing.T) {
	tr := pact.Transcript{Rounds: []pact.Round{{}, {}}}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: true}})
	assert.Equal(t, StatusOK, j.Status)
	assert.Equal(t, NoFault, j.Determination)
	assert.Equal(t, ActorNone, j.RequiredNextActor)
	assert.Equal(t, 1.0, j.Confidence)
}

func TestResolve_IntegrityInvalidIsIndeterminate(t *testing.T) {
	tr := pact.Transcript{}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: false}})
	assert.Equal(t, StatusIndeterminate, j.Status)
	assert.Equal(t, DeterminationIndeterminate, j.Determination)
	assert.Equal(t, 0.0, j.Confidence)
}

func TestResolve_PolicyFailureBlamedBuyer(t *testing.T) {
	tr := pact.Transcript{
		FailureEvent: &pact.FailureEvent{Code: "PACT-101", FaultDomain: pact.FaultPolicy, Stage: "negotiation"},
	}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: true}, BlamedParty: ActorBuyer})
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, BuyerAtFault, j.Determination)
	assert.Equal(t, ActorArbiter, j.RequiredNextActor)
	assert.Less(t, j.PassportImpact, 0.0)
}

func TestResolve_PolicyFailureUnknownPartyIsIndeterminate(t *testing.T) {
	tr := pact.Transcript{
		FailureEvent: &pact.FailureEvent{Code: "PACT-101", FaultDomain: pact.FaultPolicy},
	}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: true}})
	assert.Equal(t, DeterminationIndeterminate, j.Determination)
}

func TestResolve_IdentityFailureKnownBuyer(t *testing.T) {
	tr := pact.Transcript{
		FailureEvent: &pact.FailureEvent{Code: "PACT-201", FaultDomain: pact.FaultIdentity},
	}
	j := Resolve(ResolveInput{
		Transcript:             tr,
		Verdict:                transcript.Verdict{OK: true},
		IdentityFailureKnown:   true,
		IdentityFailureIsBuyer: true,
	})
	assert.Equal(t, BuyerAtFault, j.Determination)
}

func TestResolve_SettlementFailureDefaultsRailLevel(t *testing.T) {
	tr := pact.Transcript{
		FailureEvent: &pact.FailureEvent{Code: "PACT-401", FaultDomain: pact.FaultSettlement},
	}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: true}})
	assert.Contains(t, []Determination{BuyerRailAtFault, ProviderRailAtFault}, j.Determination)
	assert.Equal(t, ActorSettlement, j.RequiredNextActor)
}

func TestResolve_SettlementFailureAbortNamesProviderRail(t *testing.T) {
	tr := pact.Transcript{
		FailureEvent: &pact.FailureEvent{Code: "PACT-401", FaultDomain: pact.FaultSettlement},
		Rounds:       []pact.Round{{RoundType: pact.MessageAbort, AgentID: "seller"}},
	}
	j := Resolve(ResolveInput{Transcript: tr, Verdict: transcript.Verdict{OK: true}})
	assert.Equal(t, ProviderRailAtFault, j.Determination)
	assert.Contains(t, j.EvidenceRefs, "abort_actor:Seller")
}

func TestLabelForRole_TitleCases(t *testing.T) {
	assert.Equal(t, "Seller", LabelForRole("seller"))
	assert.Equal(t, "Buyer", LabelForRole("buyer"))
}

func TestFamilyMultiplier_Table(t *testing.T) {
	assert.Equal(t, 1.2, FamilyMultiplier("PACT-101"))
	assert.Equal(t, 1.0, FamilyMultiplier("PACT-201"))
	assert.Equal(t, 1.0, FamilyMultiplier("PACT-301"))
	assert.Equal(t, 0.8, FamilyMultiplier("PACT-401"))
	assert.Equal(t, 0.9, FamilyMultiplier("PACT-501"))
}

func TestFailureSeverity_PolicyExample(t *testing.T) {
	// base[policy]=0.5 * family[1xx]=1.2 = 0.6
	assert.InDelta(t, 0.6, FailureSeverity(pact.FaultPolicy, "PACT-101"), 1e-9)
}
