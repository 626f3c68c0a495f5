// Package eventstore implements component C9: an append-only log of
// passport events keyed by (transcript_hash, signer_key) for idempotent
// inserts, plus parallel credit-account/exposure/event tables.
//
// Three backends share one Store interface, continuing the teacher's
// store package shape: PostgresStore (grounded on store/receipt_store.go's
// database/sql + "ON CONFLICT ... DO NOTHING" idempotent insert pattern),
// SQLiteStore (grounded on store/receipt_store_sqlite.go's migrate-on-open
// + pure-Go modernc.org/sqlite driver, avoiding cgo), and InMemoryStore
// (grounded on finance/budget.go's mutex-guarded map, for tests and
// callers with no database).
package eventstore

import (
	"context"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// Agent is the identity row behind an agent's events.
type Agent struct {
	SignerKey    string `json:"signer_key"`
	IdentityHash string `json:"identity_hash"`
	CreatedAtMs  int64  `json:"created_at_ms"`
}

// CreditAccount is the per-signer row backing credit terms.
type CreditAccount struct {
	SignerKey  string           `json:"signer_key"`
	State      pact.CreditState `json:"state"`
	UpdatedAtMs int64           `json:"updated_at_ms"`
}

// CreditEvent is one applied idempotent credit-exposure mutation, keyed
// by transcript hash the same way passport events are.
type CreditEvent struct {
	TranscriptHash string  `json:"transcript_hash"`
	SignerKey      string  `json:"signer_key"`
	Counterparty   string  `json:"counterparty_key"`
	Kind           string  `json:"kind"`
	AmountUSD      float64 `json:"amount_usd"`
	AppliedAtMs    int64   `json:"applied_at_ms"`
}

// Store is the required operation set from spec.md §4.9.
type Store interface {
	// UpsertAgent records (or no-ops if already present) the identity row
	// for signerKey.
	UpsertAgent(ctx context.Context, signerKey, identityHash string, createdAtMs int64) error

	// InsertEvent inserts event, keyed by (TranscriptStableID, SignerKey).
	// wasInserted is false when the key was already present (idempotent).
	InsertEvent(ctx context.Context, event pact.PassportEvent) (wasInserted bool, err error)

	// HasTranscriptHash reports whether any event for hash exists. If
	// signerKey is non-empty the check is scoped to that signer.
	HasTranscriptHash(ctx context.Context, hash, signerKey string) (bool, error)

	// GetEventsByAgent returns signerKey's events ordered by ts ASC.
	GetEventsByAgent(ctx context.Context, signerKey string) ([]pact.PassportEvent, error)

	// GetRecentFailures returns signerKey's terminal settlement failures
	// within windowMs of nowMs, optionally filtered to codes sharing
	// codePrefix (empty matches all). nowMs is caller-supplied rather than
	// wall-clock so windowed queries stay deterministic and testable, the
	// same explicit-clock convention pkg/credit and pkg/passport use.
	GetRecentFailures(ctx context.Context, signerKey string, nowMs, windowMs int64, codePrefix string) ([]pact.PassportEvent, error)

	// GetRecentDisputes returns signerKey's dispute-resolution events
	// within windowMs of nowMs, optionally filtered to a specific outcome
	// (empty DisputeOutcome matches all).
	GetRecentDisputes(ctx context.Context, signerKey string, nowMs, windowMs int64, outcome pact.DisputeOutcome) ([]pact.PassportEvent, error)

	// UpsertCreditAccount replaces signerKey's stored credit state.
	UpsertCreditAccount(ctx context.Context, account CreditAccount) error

	// GetCreditAccount fetches signerKey's stored credit state, if any.
	GetCreditAccount(ctx context.Context, signerKey string) (*CreditAccount, error)

	// GetCreditExposure fetches signerKey's current exposure bookkeeping.
	GetCreditExposure(ctx context.Context, signerKey string) (pact.CreditExposure, error)

	// PutCreditExposure replaces signerKey's exposure bookkeeping.
	PutCreditExposure(ctx context.Context, signerKey string, exposure pact.CreditExposure) error

	// InsertCreditEvent inserts event, keyed by TranscriptHash; wasInserted
	// is false when the hash was already applied (idempotent).
	InsertCreditEvent(ctx context.Context, event CreditEvent) (wasInserted bool, err error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func withinWindow(tsMs, nowMs, windowMs int64) bool {
	age := nowMs - tsMs
	return age >= 0 && age <= windowMs
}

func hasPrefix(s, prefix string) bool {
	return len(prefix) == 0 || (len(s) >= len(prefix) && s[:len(prefix)] == prefix)
}
