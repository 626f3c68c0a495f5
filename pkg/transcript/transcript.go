// Package transcript implements component C3: the transcript integrity
// verifier. It walks a sequence of rounds, rechecks each round_hash and
// previous_round_hash link, each embedded signature, and the terminal
// final_hash, never short-circuiting so one malformed transcript yields a
// complete diagnostic in one pass.
//
// Grounded on the teacher's pkg/verifier (the report-accumulation shape —
// addCheck/addChecks, never stopping at the first failure) generalized
// from EvidencePack-directory checks to in-memory pact.Transcript checks.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/canonical"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/envelope"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// IntegrityStatus is the closed set of overall verdict values.
type IntegrityStatus string

const (
	Valid   IntegrityStatus = "VALID"
	Invalid IntegrityStatus = "INVALID"
)

// VerifyError is one machine-readable, human-readable diagnostic entry.
type VerifyError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Verdict is the structured output of Verify. OK mirrors
// IntegrityStatus == Valid; both are present because external callers
// (§7) branch on OK while the transcript itself records IntegrityStatus.
type Verdict struct {
	OK                      bool            `json:"ok"`
	IntegrityStatus         IntegrityStatus `json:"integrity_status"`
	Errors                  []VerifyError   `json:"errors"`
	IntegrityTamperDetected bool            `json:"integrity_tamper_detected"`
}

func (v *Verdict) fail(typ, path, format string, args ...interface{}) {
	v.Errors = append(v.Errors, VerifyError{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	})
}

// Verify runs every check in spec.md §4.3 against t, accumulating every
// failure rather than stopping at the first. It never panics and never
// mutates t.
func Verify(t pact.Transcript) Verdict {
	v := &Verdict{OK: true, IntegrityStatus: Valid}

	checkVersion(t, v)
	checkRoundNumbering(t, v)
	checkChainLinks(t, v)
	checkRoundHashesAndSignatures(t, v)
	checkFailureEvent(t, v)
	checkFinalHash(t, v)

	if len(v.Errors) > 0 {
		v.OK = false
		v.IntegrityStatus = Invalid
	}
	return *v
}

func checkVersion(t pact.Transcript, v *Verdict) {
	if t.TranscriptVersion != pact.TranscriptVersion {
		v.fail("VERSION_MISMATCH", "transcript_version",
			"expected %q, got %q", pact.TranscriptVersion, t.TranscriptVersion)
	}
}

func checkRoundNumbering(t pact.Transcript, v *Verdict) {
	for i, r := range t.Rounds {
		if r.RoundNumber != i {
			v.fail("ROUND_NUMBER_GAP", fmt.Sprintf("rounds[%d].round_number", i),
				"expected round_number %d, got %d", i, r.RoundNumber)
		}
	}
}

// initialLink computes SHA-256(intent_id + ":" + created_at_ms) — a plain
// string hash, not a canonical.Hash over a structured value, per the exact
// wording of spec.md §4.3 step 2.
func initialLink(t pact.Transcript) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", t.IntentID, t.CreatedAtMs)))
	return hex.EncodeToString(sum[:])
}

func checkChainLinks(t pact.Transcript, v *Verdict) {
	expected := initialLink(t)
	for i, r := range t.Rounds {
		if r.PreviousRoundHash != expected {
			v.fail("CHAIN_BREAK", fmt.Sprintf("rounds[%d].previous_round_hash", i),
				"expected %q, got %q", expected, r.PreviousRoundHash)
		}
		expected = r.RoundHash
	}
}

// roundWithoutHash strips RoundHash so the canonical hash of the remainder
// can be compared against the recorded one, mirroring spec.md's
// "round without its round_hash".
func roundWithoutHash(r pact.Round) pact.Round {
	stripped := r
	stripped.RoundHash = ""
	return stripped
}

func checkRoundHashesAndSignatures(t pact.Transcript, v *Verdict) {
	for i, r := range t.Rounds {
		recomputed, err := canonical.Hash(roundWithoutHash(r))
		if err != nil {
			v.fail("ROUND_HASH_UNCOMPUTABLE", fmt.Sprintf("rounds[%d]", i), "%v", err)
			continue
		}
		if recomputed != r.RoundHash {
			v.fail("ROUND_HASH_MISMATCH", fmt.Sprintf("rounds[%d].round_hash", i),
				"expected %q, got %q", recomputed, r.RoundHash)
		}

		if r.Signature == "" || r.PublicKeyB58 == "" {
			v.fail("MISSING_SIGNATURE", fmt.Sprintf("rounds[%d].signature", i),
				"round carries no signature")
			continue
		}
		if !envelope.VerifyRawHash(r.PublicKeyB58, r.Signature, r.EnvelopeHash) {
			v.fail("SIGNATURE_INVALID", fmt.Sprintf("rounds[%d].signature", i),
				"signature does not verify against envelope_hash for signer %q", r.PublicKeyB58)
		}
	}
}

// transcriptWithout returns a copy of t with FailureEvent and/or FinalHash
// cleared, for recomputing the hashes that seal those fields.
func transcriptWithout(t pact.Transcript, failureEvent, finalHash bool) pact.Transcript {
	stripped := t
	if failureEvent {
		stripped.FailureEvent = nil
	}
	if finalHash {
		stripped.FinalHash = ""
	}
	return stripped
}

func checkFailureEvent(t pact.Transcript, v *Verdict) {
	fe := t.FailureEvent
	if fe == nil {
		return
	}
	switch fe.Terminality {
	case pact.Terminal, pact.NonTerminal:
	default:
		v.fail("UNKNOWN_TERMINALITY", "failure_event.terminality",
			"unrecognized terminality %q", fe.Terminality)
	}

	recomputed, err := canonical.Hash(transcriptWithout(t, true, true))
	if err != nil {
		v.fail("FAILURE_HASH_UNCOMPUTABLE", "failure_event.transcript_hash", "%v", err)
		return
	}
	if recomputed != fe.TranscriptHash {
		v.fail("FAILURE_HASH_MISMATCH", "failure_event.transcript_hash",
			"expected %q, got %q", recomputed, fe.TranscriptHash)
		v.IntegrityTamperDetected = true
	}
}

func checkFinalHash(t pact.Transcript, v *Verdict) {
	if t.FinalHash == "" {
		return
	}
	recomputed, err := canonical.Hash(transcriptWithout(t, false, true))
	if err != nil {
		v.fail("FINAL_HASH_UNCOMPUTABLE", "final_hash", "%v", err)
		return
	}
	if recomputed != t.FinalHash {
		v.fail("FINAL_HASH_MISMATCH", "final_hash",
			"expected %q, got %q", recomputed, t.FinalHash)
		v.IntegrityTamperDetected = true
	}
}

// StableID returns the transcript-stable id used for dedup in passport
// recompute: final_hash if present, else transcript_id, else
// hash(canonical(transcript)). See the Stable id glossary entry.
func StableID(t pact.Transcript) (string, error) {
	if t.FinalHash != "" {
		return t.FinalHash, nil
	}
	if t.TranscriptID != "" {
		return t.TranscriptID, nil
	}
	return canonical.Hash(t)
}

// Seal computes and returns t's final_hash without mutating t, mirroring
// the "never rewrites, never writes back" rule from spec.md §4.3/§7; the
// caller decides whether and how to attach it.
func Seal(t pact.Transcript) (string, error) {
	return canonical.Hash(transcriptWithout(t, false, true))
}
