package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/transcript"
)

// runVerifyCmd implements `pactctl verify <transcript.json>` per §6.
//
// Exit codes:
//
//	0 = integrity valid
//	1 = integrity invalid
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: pactctl verify <transcript.json>")
		return 2
	}

	t, err := loadTranscript(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	verdict := transcript.Verify(t)
	data, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshal verdict: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(data))

	if !verdict.OK {
		slog.Warn("transcript integrity check failed", "status", verdict.IntegrityStatus, "errors", len(verdict.Errors))
		return 1
	}
	return 0
}

func loadTranscript(path string) (pact.Transcript, error) {
	var t pact.Transcript
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read transcript: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse transcript: %w", err)
	}
	return t, nil
}
