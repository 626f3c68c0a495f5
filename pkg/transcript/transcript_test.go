package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/canonical"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/envelope"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// buildValidTranscript constructs a minimal but fully self-consistent
// transcript: one INTENT round signed by kp, correctly chained and sealed.
func buildValidTranscript(t *testing.T, kp envelope.KeyPair) pact.Transcript {
	t.Helper()

	tr := pact.Transcript{
		TranscriptVersion: pact.TranscriptVersion,
		TranscriptID:      "t-1",
		IntentID:          "intent-1",
		IntentType:        "purchase",
		CreatedAtMs:       1000,
	}

	msg := pact.Message{Kind: pact.MessageIntent, IntentID: "intent-1", SentAtMs: 1000, ExpiresAtMs: 60000}
	env, err := envelope.Sign(msg, kp, 1000)
	require.NoError(t, err)

	round := pact.Round{
		RoundNumber:       0,
		RoundType:         pact.MessageIntent,
		EnvelopeHash:      env.EnvelopeHashHex,
		MessageHash:       env.MessageHashHex,
		Signature:         env.SignatureB58,
		TimestampMs:       1000,
		PreviousRoundHash: initialLink(tr),
		AgentID:           "buyer",
		PublicKeyB58:      kp.PublicKeyB58(),
	}
	roundHash, err := canonical.Hash(roundWithoutHash(round))
	require.NoError(t, err)
	round.RoundHash = roundHash

	tr.Rounds = []pact.Round{round}

	finalHash, err := Seal(tr)
	require.NoError(t, err)
	tr.FinalHash = finalHash

	return tr
}

func TestVerify_ValidTranscript(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)

	v := Verify(tr)
	assert.True(t, v.OK)
	assert.Equal(t, Valid, v.IntegrityStatus)
	assert.Empty(t, v.Errors)
}

func TestVerify_TamperedRoundBreaksChain(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)

	tr.Rounds[0].AgentID = "tampered-label"

	v := Verify(tr)
	assert.False(t, v.OK)
	assert.Equal(t, Invalid, v.IntegrityStatus)
	assert.NotEmpty(t, v.Errors)
}

func TestVerify_TamperedFinalHashDetected(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)

	tr.FinalHash = "0000000000000000000000000000000000000000000000000000000000000000"

	v := Verify(tr)
	assert.False(t, v.OK)
	assert.True(t, v.IntegrityTamperDetected)
}

func TestVerify_InvalidSignatureDetected(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)

	other, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr.Rounds[0].PublicKeyB58 = other.PublicKeyB58()
	roundHash, err := canonical.Hash(roundWithoutHash(tr.Rounds[0]))
	require.NoError(t, err)
	tr.Rounds[0].RoundHash = roundHash

	v := Verify(tr)
	assert.False(t, v.OK)
	found := false
	for _, e := range v.Errors {
		if e.Type == "SIGNATURE_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVerify_UnsealedTranscriptWithNoFailureEventIsValid(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)
	tr.FinalHash = ""

	v := Verify(tr)
	assert.True(t, v.OK)
}

func TestVerify_EmptyTranscriptIsValid(t *testing.T) {
	tr := pact.Transcript{
		TranscriptVersion: pact.TranscriptVersion,
		TranscriptID:      "empty",
		IntentID:          "intent-empty",
		CreatedAtMs:       1000,
	}
	v := Verify(tr)
	assert.True(t, v.OK)
	assert.Empty(t, v.Errors)
}

func TestVerify_RoundNumberGapDetected(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)
	tr.Rounds[0].RoundNumber = 5

	v := Verify(tr)
	assert.False(t, v.OK)
}

func TestStableID_PrefersFinalHash(t *testing.T) {
	kp, err := envelope.GenerateKeyPair()
	require.NoError(t, err)
	tr := buildValidTranscript(t, kp)

	id, err := StableID(tr)
	require.NoError(t, err)
	assert.Equal(t, tr.FinalHash, id)
}

func TestStableID_FallsBackToTranscriptID(t *testing.T) {
	tr := pact.Transcript{TranscriptID: "t-fallback"}
	id, err := StableID(tr)
	require.NoError(t, err)
	assert.Equal(t, "t-fallback", id)
}

func TestStableID_FallsBackToHash(t *testing.T) {
	tr := pact.Transcript{IntentID: "x", CreatedAtMs: 1}
	id, err := StableID(tr)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
