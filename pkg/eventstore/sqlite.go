package eventstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a pure-Go, cgo-free Store backend, grounded on
// store/receipt_store_sqlite.go's migrate-on-open + modernc.org/sqlite
// driver choice.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-open db and runs its migration, matching
// NewSQLiteReceiptStore's constructor shape.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS eventstore_agents (
	signer_key TEXT PRIMARY KEY,
	identity_hash TEXT,
	created_at_ms INTEGER
);
CREATE TABLE IF NOT EXISTS eventstore_events (
	transcript_hash TEXT,
	signer_key TEXT,
	kind TEXT,
	ts_ms INTEGER,
	counterparty_key TEXT,
	value REAL,
	failure_code TEXT,
	stage TEXT,
	fault_domain TEXT,
	terminality TEXT,
	dispute_outcome TEXT,
	PRIMARY KEY (transcript_hash, signer_key)
);
CREATE TABLE IF NOT EXISTS eventstore_credit_accounts (
	signer_key TEXT PRIMARY KEY,
	tier TEXT,
	max_outstanding_usd REAL,
	max_per_intent_usd REAL,
	max_per_counterparty_usd REAL,
	collateral_ratio REAL,
	required_escrow INTEGER,
	disabled_until_ms INTEGER,
	reason TEXT,
	updated_at_ms INTEGER
);
CREATE TABLE IF NOT EXISTS eventstore_credit_exposure (
	signer_key TEXT PRIMARY KEY,
	outstanding_usd REAL,
	per_counterparty_usd TEXT
);
CREATE TABLE IF NOT EXISTS eventstore_credit_events (
	transcript_hash TEXT PRIMARY KEY,
	signer_key TEXT,
	counterparty_key TEXT,
	kind TEXT,
	amount_usd REAL,
	applied_at_ms INTEGER
);
`)
	return err
}

func (s *SQLiteStore) UpsertAgent(ctx context.Context, signerKey, identityHash string, createdAtMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO eventstore_agents (signer_key, identity_hash, created_at_ms) VALUES (?, ?, ?)
	`, signerKey, identityHash, createdAtMs)
	if err != nil {
		return fmt.Errorf("eventstore: upsert agent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, event pact.PassportEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO eventstore_events (
			transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
			failure_code, stage, fault_domain, terminality, dispute_outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.TranscriptStableID, event.SignerKey, string(event.Kind), event.TsMs, event.CounterpartyKey, event.Value,
		event.FailureCode, event.Stage, string(event.FaultDomain), string(event.Terminality), string(event.DisputeOutcome))
	if err != nil {
		return false, fmt.Errorf("eventstore: insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("eventstore: insert event rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) HasTranscriptHash(ctx context.Context, hash, signerKey string) (bool, error) {
	var query string
	var args []interface{}
	if signerKey != "" {
		query = `SELECT EXISTS(SELECT 1 FROM eventstore_events WHERE transcript_hash = ? AND signer_key = ?)`
		args = []interface{}{hash, signerKey}
	} else {
		query = `SELECT EXISTS(SELECT 1 FROM eventstore_events WHERE transcript_hash = ?)`
		args = []interface{}{hash}
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("eventstore: has transcript hash: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) GetEventsByAgent(ctx context.Context, signerKey string) ([]pact.PassportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events WHERE signer_key = ? ORDER BY ts_ms ASC
	`, signerKey)
	if err != nil {
		return nil, fmt.Errorf("eventstore: get events by agent: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLiteStore) GetRecentFailures(ctx context.Context, signerKey string, nowMs, windowMs int64, codePrefix string) ([]pact.PassportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events
		WHERE signer_key = ? AND kind = ? AND terminality = ?
		  AND ts_ms <= ? AND ts_ms >= ?
		  AND failure_code LIKE ?
		ORDER BY ts_ms ASC
	`, signerKey, string(pact.EventSettlementFailure), string(pact.Terminal), nowMs, nowMs-windowMs, codePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("eventstore: get recent failures: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLiteStore) GetRecentDisputes(ctx context.Context, signerKey string, nowMs, windowMs int64, outcome pact.DisputeOutcome) ([]pact.PassportEvent, error) {
	query := `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events
		WHERE signer_key = ? AND kind = ? AND ts_ms <= ? AND ts_ms >= ?
	`
	args := []interface{}{signerKey, string(pact.EventDisputeResolved), nowMs, nowMs - windowMs}
	if outcome != "" {
		query += ` AND dispute_outcome = ?`
		args = append(args, string(outcome))
	}
	query += ` ORDER BY ts_ms ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: get recent disputes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *SQLiteStore) UpsertCreditAccount(ctx context.Context, account CreditAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_credit_accounts (
			signer_key, tier, max_outstanding_usd, max_per_intent_usd, max_per_counterparty_usd,
			collateral_ratio, required_escrow, disabled_until_ms, reason, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (signer_key) DO UPDATE SET
			tier = excluded.tier,
			max_outstanding_usd = excluded.max_outstanding_usd,
			max_per_intent_usd = excluded.max_per_intent_usd,
			max_per_counterparty_usd = excluded.max_per_counterparty_usd,
			collateral_ratio = excluded.collateral_ratio,
			required_escrow = excluded.required_escrow,
			disabled_until_ms = excluded.disabled_until_ms,
			reason = excluded.reason,
			updated_at_ms = excluded.updated_at_ms
	`, account.SignerKey, string(account.State.Tier), account.State.MaxOutstandingUSD, account.State.MaxPerIntentUSD,
		account.State.MaxPerCounterpartyUSD, account.State.CollateralRatio, account.State.RequiredEscrow,
		account.State.DisabledUntilMs, account.State.Reason, account.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("eventstore: upsert credit account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCreditAccount(ctx context.Context, signerKey string) (*CreditAccount, error) {
	var a CreditAccount
	var tier, reason sql.NullString
	a.SignerKey = signerKey
	err := s.db.QueryRowContext(ctx, `
		SELECT tier, max_outstanding_usd, max_per_intent_usd, max_per_counterparty_usd,
		       collateral_ratio, required_escrow, disabled_until_ms, reason, updated_at_ms
		FROM eventstore_credit_accounts WHERE signer_key = ?
	`, signerKey).Scan(&tier, &a.State.MaxOutstandingUSD, &a.State.MaxPerIntentUSD, &a.State.MaxPerCounterpartyUSD,
		&a.State.CollateralRatio, &a.State.RequiredEscrow, &a.State.DisabledUntilMs, &reason, &a.UpdatedAtMs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("eventstore: get credit account: %w", err)
	}
	a.State.Tier = pact.CreditTier(tier.String)
	a.State.Reason = reason.String
	return &a, nil
}

func (s *SQLiteStore) GetCreditExposure(ctx context.Context, signerKey string) (pact.CreditExposure, error) {
	var exposure pact.CreditExposure
	var perCounterpartyJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT outstanding_usd, per_counterparty_usd FROM eventstore_credit_exposure WHERE signer_key = ?
	`, signerKey).Scan(&exposure.OutstandingUSD, &perCounterpartyJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return pact.CreditExposure{}, nil
		}
		return pact.CreditExposure{}, fmt.Errorf("eventstore: get credit exposure: %w", err)
	}
	exposure.PerCounterpartyUSD = decodePerCounterparty(perCounterpartyJSON)
	return exposure, nil
}

func (s *SQLiteStore) PutCreditExposure(ctx context.Context, signerKey string, exposure pact.CreditExposure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_credit_exposure (signer_key, outstanding_usd, per_counterparty_usd)
		VALUES (?, ?, ?)
		ON CONFLICT (signer_key) DO UPDATE SET
			outstanding_usd = excluded.outstanding_usd,
			per_counterparty_usd = excluded.per_counterparty_usd
	`, signerKey, exposure.OutstandingUSD, encodePerCounterparty(exposure.PerCounterpartyUSD))
	if err != nil {
		return fmt.Errorf("eventstore: put credit exposure: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertCreditEvent(ctx context.Context, event CreditEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO eventstore_credit_events (transcript_hash, signer_key, counterparty_key, kind, amount_usd, applied_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.TranscriptHash, event.SignerKey, event.Counterparty, event.Kind, event.AmountUSD, event.AppliedAtMs)
	if err != nil {
		return false, fmt.Errorf("eventstore: insert credit event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("eventstore: insert credit event rows affected: %w", err)
	}
	return n > 0, nil
}
