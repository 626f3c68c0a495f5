package eventstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"

	_ "github.com/lib/pq"
)

// PostgresStore is the durable SQL-based Store implementation, grounded
// on store/receipt_store.go's database/sql + "ON CONFLICT ... DO NOTHING"
// idempotent-insert pattern.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened *sql.DB. Schema migration is
// the caller's responsibility (see Migrate).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables this store needs if they don't already
// exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS eventstore_agents (
	signer_key TEXT PRIMARY KEY,
	identity_hash TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS eventstore_events (
	transcript_hash TEXT NOT NULL,
	signer_key TEXT NOT NULL REFERENCES eventstore_agents(signer_key),
	kind TEXT NOT NULL,
	ts_ms BIGINT NOT NULL,
	counterparty_key TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	failure_code TEXT,
	stage TEXT,
	fault_domain TEXT,
	terminality TEXT,
	dispute_outcome TEXT,
	PRIMARY KEY (transcript_hash, signer_key)
);
CREATE TABLE IF NOT EXISTS eventstore_credit_accounts (
	signer_key TEXT PRIMARY KEY REFERENCES eventstore_agents(signer_key),
	tier TEXT NOT NULL,
	max_outstanding_usd DOUBLE PRECISION NOT NULL,
	max_per_intent_usd DOUBLE PRECISION NOT NULL,
	max_per_counterparty_usd DOUBLE PRECISION NOT NULL,
	collateral_ratio DOUBLE PRECISION NOT NULL,
	required_escrow BOOLEAN NOT NULL,
	disabled_until_ms BIGINT NOT NULL DEFAULT 0,
	reason TEXT,
	updated_at_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS eventstore_credit_exposure (
	signer_key TEXT PRIMARY KEY REFERENCES eventstore_agents(signer_key),
	outstanding_usd DOUBLE PRECISION NOT NULL,
	per_counterparty_usd JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS eventstore_credit_events (
	transcript_hash TEXT PRIMARY KEY,
	signer_key TEXT NOT NULL REFERENCES eventstore_agents(signer_key),
	counterparty_key TEXT NOT NULL,
	kind TEXT NOT NULL,
	amount_usd DOUBLE PRECISION NOT NULL,
	applied_at_ms BIGINT NOT NULL
);
`)
	return err
}

func (s *PostgresStore) UpsertAgent(ctx context.Context, signerKey, identityHash string, createdAtMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_agents (signer_key, identity_hash, created_at_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (signer_key) DO NOTHING
	`, signerKey, identityHash, createdAtMs)
	if err != nil {
		return fmt.Errorf("eventstore: upsert agent: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, event pact.PassportEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_events (
			transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
			failure_code, stage, fault_domain, terminality, dispute_outcome
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transcript_hash, signer_key) DO NOTHING
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

func (s *PostgresStore) HasTranscriptHash(ctx context.Context, hash, signerKey string) (bool, error) {
	var query string
	var args []interface{}
	if signerKey != "" {
		query = `SELECT EXISTS(SELECT 1 FROM eventstore_events WHERE transcript_hash = $1 AND signer_key = $2)`
		args = []interface{}{hash, signerKey}
	} else {
		query = `SELECT EXISTS(SELECT 1 FROM eventstore_events WHERE transcript_hash = $1)`
		args = []interface{}{hash}
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("eventstore: has transcript hash: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetEventsByAgent(ctx context.Context, signerKey string) ([]pact.PassportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events
		WHERE signer_key = $1
		ORDER BY ts_ms ASC
	`, signerKey)
	if err != nil {
		return nil, fmt.Errorf("eventstore: get events by agent: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *PostgresStore) GetRecentFailures(ctx context.Context, signerKey string, nowMs, windowMs int64, codePrefix string) ([]pact.PassportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events
		WHERE signer_key = $1 AND kind = $2 AND terminality = $3
		  AND ts_ms <= $4 AND ts_ms >= $5
		  AND failure_code LIKE $6
		ORDER BY ts_ms ASC
	`, signerKey, string(pact.EventSettlementFailure), string(pact.Terminal), nowMs, nowMs-windowMs, codePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("eventstore: get recent failures: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (s *PostgresStore) GetRecentDisputes(ctx context.Context, signerKey string, nowMs, windowMs int64, outcome pact.DisputeOutcome) ([]pact.PassportEvent, error) {
	query := `
		SELECT transcript_hash, signer_key, kind, ts_ms, counterparty_key, value,
		       failure_code, stage, fault_domain, terminality, dispute_outcome
		FROM eventstore_events
		WHERE signer_key = $1 AND kind = $2 AND ts_ms <= $3 AND ts_ms >= $4
	`
	args := []interface{}{signerKey, string(pact.EventDisputeResolved), nowMs, nowMs - windowMs}
	if outcome != "" {
		query += ` AND dispute_outcome = $5`
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

func scanEvents(rows *sql.Rows) ([]pact.PassportEvent, error) {
	var events []pact.PassportEvent
	for rows.Next() {
		var e pact.PassportEvent
		var kind, faultDomain, terminality, disputeOutcome string
		var failureCode, stage sql.NullString
		if err := rows.Scan(&e.TranscriptStableID, &e.SignerKey, &kind, &e.TsMs, &e.CounterpartyKey, &e.Value,
			&failureCode, &stage, &faultDomain, &terminality, &disputeOutcome); err != nil {
			return nil, fmt.Errorf("eventstore: scan event: %w", err)
		}
		e.Kind = pact.PassportEventKind(kind)
		e.FailureCode = failureCode.String
		e.Stage = stage.String
		e.FaultDomain = pact.FaultDomain(faultDomain)
		e.Terminality = pact.Terminality(terminality)
		e.DisputeOutcome = pact.DisputeOutcome(disputeOutcome)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: scan events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) UpsertCreditAccount(ctx context.Context, account CreditAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_credit_accounts (
			signer_key, tier, max_outstanding_usd, max_per_intent_usd, max_per_counterparty_usd,
			collateral_ratio, required_escrow, disabled_until_ms, reason, updated_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (signer_key) DO UPDATE SET
			tier = EXCLUDED.tier,
			max_outstanding_usd = EXCLUDED.max_outstanding_usd,
			max_per_intent_usd = EXCLUDED.max_per_intent_usd,
			max_per_counterparty_usd = EXCLUDED.max_per_counterparty_usd,
			collateral_ratio = EXCLUDED.collateral_ratio,
			required_escrow = EXCLUDED.required_escrow,
			disabled_until_ms = EXCLUDED.disabled_until_ms,
			reason = EXCLUDED.reason,
			updated_at_ms = EXCLUDED.updated_at_ms
	`, account.SignerKey, string(account.State.Tier), account.State.MaxOutstandingUSD, account.State.MaxPerIntentUSD,
		account.State.MaxPerCounterpartyUSD, account.State.CollateralRatio, account.State.RequiredEscrow,
		account.State.DisabledUntilMs, account.State.Reason, account.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("eventstore: upsert credit account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCreditAccount(ctx context.Context, signerKey string) (*CreditAccount, error) {
	var a CreditAccount
	var tier, reason sql.NullString
	a.SignerKey = signerKey
	err := s.db.QueryRowContext(ctx, `
		SELECT tier, max_outstanding_usd, max_per_intent_usd, max_per_counterparty_usd,
		       collateral_ratio, required_escrow, disabled_until_ms, reason, updated_at_ms
		FROM eventstore_credit_accounts WHERE signer_key = $1
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

func (s *PostgresStore) GetCreditExposure(ctx context.Context, signerKey string) (pact.CreditExposure, error) {
	var exposure pact.CreditExposure
	var perCounterpartyJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT outstanding_usd, per_counterparty_usd FROM eventstore_credit_exposure WHERE signer_key = $1
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

func (s *PostgresStore) PutCreditExposure(ctx context.Context, signerKey string, exposure pact.CreditExposure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_credit_exposure (signer_key, outstanding_usd, per_counterparty_usd)
		VALUES ($1, $2, $3)
		ON CONFLICT (signer_key) DO UPDATE SET
			outstanding_usd = EXCLUDED.outstanding_usd,
			per_counterparty_usd = EXCLUDED.per_counterparty_usd
	`, signerKey, exposure.OutstandingUSD, encodePerCounterparty(exposure.PerCounterpartyUSD))
	if err != nil {
		return fmt.Errorf("eventstore: put credit exposure: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertCreditEvent(ctx context.Context, event CreditEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO eventstore_credit_events (transcript_hash, signer_key, counterparty_key, kind, amount_usd, applied_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transcript_hash) DO NOTHING
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
