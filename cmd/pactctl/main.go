// Command pactctl is the out-of-core CLI wrapping the PACT protocol core:
// transcript verification, policy judgment, and evidence-bundle
// packaging/verification. It continues cmd/helm/main.go's
// dispatch-by-subcommand-string shape (no cobra/viper; subcommands read
// their positional arguments directly, without the flag package) and
// cmd/helm/verify_cmd.go's exit-code convention.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing; it never calls os.Exit itself.
func Run(args []string, stdout, stderr io.Writer) int {
	configureLogging(config.Load())

	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "judge":
		return runJudgeCmd(args[2:], stdout, stderr)
	case "bundle":
		return runBundleCmd(args[2:], stdout, stderr)
	case "bundle-verify":
		return runBundleVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// configureLogging sets the default slog level from cfg.LogLevel,
// continuing cmd/helm/main.go's log/slog usage. Store-backed subcommands
// (none of the four named in spec.md §6 touch the event store directly
// today) would read cfg.DatabaseURL the same way.
func configureLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetLogLoggerLevel(level)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "pactctl - PACT protocol evidence verification CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pactctl verify <transcript.json>")
	fmt.Fprintln(w, "  pactctl judge <transcript.json> <policy.json>")
	fmt.Fprintln(w, "  pactctl bundle <transcript.json> <judgment.json> [passport.json] -o <dir>")
	fmt.Fprintln(w, "  pactctl bundle-verify <dir>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Exit codes: 0 = verified/allowed, 1 = integrity or policy failure, 2 = runtime error")
}
