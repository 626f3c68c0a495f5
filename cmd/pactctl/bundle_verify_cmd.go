package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/bundle"
)

// runBundleVerifyCmd implements `pactctl bundle-verify <dir>` per §6,
// continuing cmd/helm/verify_cmd.go's report-then-exit-code shape.
//
// Exit codes:
//
//	0 = verified
//	1 = verification failed
//	2 = runtime error
func runBundleVerifyCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: pactctl bundle-verify <dir>")
		return 2
	}

	report := bundle.VerifyBundle(args[0])

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshal report: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(data))

	if !report.Verified {
		return 1
	}
	return 0
}
