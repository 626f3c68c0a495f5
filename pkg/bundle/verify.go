package bundle

import (
	"fmt"
	"time"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/canonical"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/transcript"
)

// CheckResult is one named, independently-reportable verification step,
// continuing the teacher's pkg/verifier.CheckResult shape.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Report is the structured output of VerifyBundle.
type Report struct {
	Bundle     string        `json:"bundle"`
	Verified   bool          `json:"verified"`
	Timestamp  time.Time     `json:"timestamp"`
	Checks     []CheckResult `json:"checks"`
	Summary    string        `json:"summary"`
	IssueCount int           `json:"issue_count"`
}

func (r *Report) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
}

// VerifyBundle performs offline verification of a directory-form evidence
// bundle: every manifest-listed file's hash is recomputed and compared, and
// the transcript is re-run through C3 (pkg/transcript.Verify). A structure
// failure (the bundle cannot be loaded) ends the walk, since nothing is
// left to check; once it loads, every check is recorded and the walk never
// stops at the first failure, continuing pkg/verifier.VerifyBundle's
// accumulation style.
func VerifyBundle(dir string) *Report {
	report := &Report{Bundle: dir, Verified: true, Timestamp: time.Now().UTC()}

	manifest, t, j, passport, err := Load(dir)
	if err != nil {
		report.add(CheckResult{Name: "structure", Pass: false, Reason: err.Error()})
		return finalize(report)
	}
	report.add(CheckResult{Name: "structure", Pass: true, Detail: "manifest and artifacts present"})

	if manifest.ManifestVersion != ManifestVersion {
		report.add(CheckResult{
			Name: "manifest_version", Pass: false,
			Reason: fmt.Sprintf("got %q, want %q", manifest.ManifestVersion, ManifestVersion),
		})
	} else {
		report.add(CheckResult{Name: "manifest_version", Pass: true})
	}

	report.add(checkFileHash(dir, manifest, TranscriptFile, t))
	report.add(checkFileHash(dir, manifest, JudgmentFile, j))

	if passport != nil {
		report.add(checkFileHash(dir, manifest, PassportFile, *passport))
	}

	report.add(checkTranscriptIntegrity(t))

	return finalize(report)
}

func checkFileHash(dir string, manifest Manifest, name string, v interface{}) CheckResult {
	wantHash, ok := manifest.Files[name]
	if !ok {
		return CheckResult{Name: "hash:" + name, Pass: false, Reason: "file not listed in manifest"}
	}

	data, err := canonical.Marshal(v)
	if err != nil {
		return CheckResult{Name: "hash:" + name, Pass: false, Reason: fmt.Sprintf("canonicalize: %v", err)}
	}
	gotHash := canonical.HashHex(data)
	if gotHash != wantHash {
		return CheckResult{
			Name: "hash:" + name, Pass: false,
			Reason: fmt.Sprintf("manifest hash mismatch: manifest=%s recomputed=%s", wantHash, gotHash),
		}
	}
	return CheckResult{Name: "hash:" + name, Pass: true, Detail: gotHash}
}

func checkTranscriptIntegrity(t pact.Transcript) CheckResult {
	verdict := transcript.Verify(t)
	if !verdict.OK {
		reasons := make([]string, 0, len(verdict.Errors))
		for _, e := range verdict.Errors {
			reasons = append(reasons, e.Message)
		}
		return CheckResult{
			Name: "transcript_integrity", Pass: false,
			Reason: fmt.Sprintf("%s: %v", verdict.IntegrityStatus, reasons),
		}
	}
	return CheckResult{Name: "transcript_integrity", Pass: true, Detail: string(verdict.IntegrityStatus)}
}

func finalize(report *Report) *Report {
	failed := 0
	for _, c := range report.Checks {
		if !c.Pass {
			failed++
		}
	}
	report.IssueCount = failed
	if failed > 0 {
		report.Verified = false
		report.Summary = fmt.Sprintf("FAIL: %d/%d checks failed", failed, len(report.Checks))
	} else {
		report.Summary = fmt.Sprintf("PASS: %d/%d checks passed", len(report.Checks), len(report.Checks))
	}
	return report
}
