package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func basePolicy() Policy {
	return Policy{
		PolicyID:              "v1-test",
		AllowedRegions:         []string{"us", "eu"},
		MaxRounds:              10,
		MaxDurationMs:          60000,
		AllowedSettlementModes: []string{"escrow"},
		BondMultiple:           1.5,
	}
}

func baseContext() Context {
	return Context{
		Region:          "us",
		ExpiresAtMs:     10000,
		NowMs:           5000,
		SentAtMs:        1000,
		HasBondProof:    true,
		RoundNumber:     1,
		NegotiationStartMs: 1000,
		SettlementMode:  "escrow",
		PriceMinor:      1000,
		SellerBondMinor: 1500,
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	res := Evaluate(basePolicy(), baseContext())
	assert.True(t, res.Allowed)
	assert.Nil(t, res.FailedCheck)
}

func TestEvaluate_RegionBlocked(t *testing.T) {
	c := baseContext()
	c.Region = "cn"
	res := Evaluate(basePolicy(), c)
	assert.False(t, res.Allowed)
	assert.Equal(t, PhaseIdentity, res.FailedCheck.Phase)
	assert.Equal(t, "region_allowlist", res.FailedCheck.Check)
}

func TestEvaluate_ExpiredIntentFails(t *testing.T) {
	c := baseContext()
	c.NowMs = 20000
	res := Evaluate(basePolicy(), c)
	assert.False(t, res.Allowed)
	assert.Equal(t, PhaseIntent, res.FailedCheck.Phase)
	assert.Equal(t, "time_semantics", res.FailedCheck.Check)
}

func TestEvaluate_MissingAdmissionProofFails(t *testing.T) {
	c := baseContext()
	c.HasBondProof = false
	res := Evaluate(basePolicy(), c)
	assert.False(t, res.Allowed)
	assert.Equal(t, "admission", res.FailedCheck.Check)
}

func TestEvaluate_RoundLimitNewAgentBonus(t *testing.T) {
	p := basePolicy()
	p.MaxRounds = 5
	p.NewAgentMaxRoundsBonus = 3
	c := baseContext()
	c.RoundNumber = 7
	c.IsNewAgent = true

	res := Evaluate(p, c)
	assert.True(t, res.Allowed)
}

func TestEvaluate_SettlementModeNotAllowed(t *testing.T) {
	c := baseContext()
	c.SettlementMode = "wire"
	res := Evaluate(basePolicy(), c)
	assert.False(t, res.Allowed)
	assert.Equal(t, PhaseLock, res.FailedCheck.Phase)
	assert.Equal(t, "PACT-401", res.FailedCheck.FailureCode)
}

func TestEvaluate_SellerBondBelowRequired(t *testing.T) {
	c := baseContext()
	c.SellerBondMinor = 100
	res := Evaluate(basePolicy(), c)
	assert.False(t, res.Allowed)
	assert.Equal(t, "seller_bond", res.FailedCheck.Check)
}

func TestEvaluate_FirstFailingCheckWinsNotLast(t *testing.T) {
	// region fails (identity) and settlement mode fails (lock) — identity
	// must win since it's evaluated first.
	p := basePolicy()
	c := baseContext()
	c.Region = "cn"
	c.SettlementMode = "wire"

	res := Evaluate(p, c)
	assert.False(t, res.Allowed)
	assert.Equal(t, PhaseIdentity, res.FailedCheck.Phase)
}

func TestSchemaValidation_RejectsInvalidPayload(t *testing.T) {
	p := basePolicy()
	p.RequireSchemaValidation = true
	p.ExchangeSchema = `{"type":"object","required":["amount"],"properties":{"amount":{"type":"number"}}}`

	c := baseContext()
	c.ExchangePayload = map[string]interface{}{"other": "field"}

	res := Evaluate(p, c)
	assert.False(t, res.Allowed)
	assert.Equal(t, PhaseExchange, res.FailedCheck.Phase)
}

func TestSchemaValidation_AcceptsValidPayload(t *testing.T) {
	p := basePolicy()
	p.RequireSchemaValidation = true
	p.ExchangeSchema = `{"type":"object","required":["amount"],"properties":{"amount":{"type":"number"}}}`

	c := baseContext()
	c.ExchangePayload = map[string]interface{}{"amount": 10.0}

	res := Evaluate(p, c)
	assert.True(t, res.Allowed)
}

func TestStorageAllowed(t *testing.T) {
	p := basePolicy()
	assert.True(t, StorageAllowed(p))
	p.ForbidTranscriptStorage = true
	assert.False(t, StorageAllowed(p))
}
