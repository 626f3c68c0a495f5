package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/judgment"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/policy"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/transcript"
)

// executiveSummary is the gc-view JSON per §6: a human/dashboard-facing
// roll-up of the integrity verdict, the policy evaluation, and the
// judgment, not a normative wire type.
type executiveSummary struct {
	Status          string                     `json:"status"`
	IntegrityStatus transcript.IntegrityStatus `json:"integrity_status"`
	Policy          policy.Result              `json:"policy"`
	Judgment        judgment.Judgment          `json:"judgment"`
	IntegrityErrors []transcript.VerifyError   `json:"integrity_errors,omitempty"`
}

// transcriptContext flattens a transcript's top-level scalar fields into a
// policy.Context, so a policy document's rules can reference them
// (e.g. "intent_type", "policy_hash"). spec.md doesn't define a retroactive
// judge-time context schema (C5 normally evaluates live negotiation state),
// so this is the CLI's own reasonable convention, not a normative mapping.
func transcriptContext(t pact.Transcript) policy.Context {
	return policy.Context{
		"intent_id":              t.IntentID,
		"intent_type":            t.IntentType,
		"created_at_ms":          float64(t.CreatedAtMs),
		"policy_hash":            t.PolicyHash,
		"strategy_hash":          t.StrategyHash,
		"identity_snapshot_hash": t.IdentitySnapshotHash,
		"round_count":            float64(len(t.Rounds)),
	}
}

// runJudgeCmd implements `pactctl judge <transcript.json> <policy.json>`
// per §6: C3 → C5 → C4, then an executive_summary.status enum.
//
// Exit codes:
//
//	0 = VALID_SUCCESS
//	1 = any FAILED_* / INDETERMINATE status
//	2 = runtime error
func runJudgeCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: pactctl judge <transcript.json> <policy.json>")
		return 2
	}

	t, err := loadTranscript(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var pol pact.Policy
	policyData, err := os.ReadFile(args[1])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read policy: %v\n", err)
		return 2
	}
	if err := json.Unmarshal(policyData, &pol); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse policy: %v\n", err)
		return 2
	}

	verdict := transcript.Verify(t)
	j := judgment.Resolve(judgment.ResolveInput{Transcript: t, Verdict: verdict})

	policyResult, err := policy.Evaluate(pol, transcriptContext(t))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: evaluate policy: %v\n", err)
		return 2
	}

	summary := executiveSummary{
		IntegrityStatus: verdict.IntegrityStatus,
		Policy:          policyResult,
		Judgment:        j,
		IntegrityErrors: verdict.Errors,
	}
	summary.Status = summaryStatus(verdict, policyResult, j)

	data, err := json.MarshalIndent(map[string]executiveSummary{"executive_summary": summary}, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshal summary: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(data))

	if summary.Status != "VALID_SUCCESS" {
		slog.Warn("judgment did not resolve to success", "status", summary.Status)
		return 1
	}
	return 0
}

// summaryStatus maps an integrity verdict, policy result, and judgment
// onto the executive_summary.status enum named in spec.md §6
// ("VALID_SUCCESS", "FAILED_PROVIDER_API_MISMATCH", ...). Integrity is
// checked first since a tampered transcript makes the other two verdicts
// meaningless; policy violation is checked next since it is evaluated
// against the transcript as submitted, independent of blame resolution.
func summaryStatus(verdict transcript.Verdict, p policy.Result, j judgment.Judgment) string {
	if !verdict.OK {
		return "FAILED_INTEGRITY_" + strings.ToUpper(string(verdict.IntegrityStatus))
	}
	if !p.Allowed {
		code := p.MappedFailureCode
		if code == "" {
			code = "POLICY_VIOLATION"
		}
		return "FAILED_" + strings.ReplaceAll(code, "-", "_")
	}
	switch j.Status {
	case judgment.StatusOK:
		return "VALID_SUCCESS"
	case judgment.StatusIndeterminate:
		return "INDETERMINATE"
	default: // StatusFailed
		code := j.FailureCode
		if code == "" {
			code = "UNKNOWN"
		}
		return "FAILED_" + strings.ReplaceAll(code, "-", "_")
	}
}
