package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/bundle"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/judgment"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// runBundleCmd implements
// `pactctl bundle <transcript.json> <judgment.json> [passport.json] -o <dir>`
// per §6. The `-o` flag trails the positional file arguments rather than
// leading them, so it is pulled out of args by hand instead of via
// flag.FlagSet (which stops parsing at the first non-flag argument).
//
// Exit codes:
//
//	0 = bundle written
//	2 = runtime error
func runBundleCmd(args []string, stdout, stderr io.Writer) int {
	rest, outDir, err := extractOutputFlag(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if len(rest) < 2 || len(rest) > 3 || outDir == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: pactctl bundle <transcript.json> <judgment.json> [passport.json] -o <dir>")
		return 2
	}

	t, err := loadTranscript(rest[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var j judgment.Judgment
	jData, err := os.ReadFile(rest[1])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read judgment: %v\n", err)
		return 2
	}
	if err := json.Unmarshal(jData, &j); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse judgment: %v\n", err)
		return 2
	}

	var passport *pact.PassportState
	if len(rest) == 3 {
		var p pact.PassportState
		pData, err := os.ReadFile(rest[2])
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read passport state: %v\n", err)
			return 2
		}
		if err := json.Unmarshal(pData, &p); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: parse passport state: %v\n", err)
			return 2
		}
		passport = &p
	}

	manifest, err := bundle.Build(outDir, t, j, passport, time.Now().UnixMilli())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: build bundle: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Bundle written to %s (id=%s)\n", outDir, manifest.BundleID)
	for name, hash := range manifest.Files {
		_, _ = fmt.Fprintf(stdout, "  %s  %s\n", hash, name)
	}
	return 0
}

// extractOutputFlag splits "-o <dir>" out of args, wherever it appears,
// and returns the remaining positional arguments alongside the value.
func extractOutputFlag(args []string) (rest []string, outDir string, err error) {
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" || args[i] == "--o" || args[i] == "-output" {
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("-o requires a directory argument")
			}
			outDir = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return rest, outDir, nil
}
