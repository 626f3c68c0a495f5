package eventstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

func TestPostgresStore_UpsertAgent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO eventstore_agents")).
		WithArgs("a", "hash1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.UpsertAgent(context.Background(), "a", "hash1", 0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertEventAlreadyPresentReturnsFalse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	event := pact.PassportEvent{
		Kind: pact.EventSettlementSuccess, TranscriptStableID: "t1", SignerKey: "a",
		CounterpartyKey: "b", TsMs: 10, Value: 1.0,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO eventstore_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.InsertEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasTranscriptHashScoped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM eventstore_events WHERE transcript_hash = $1 AND signer_key = $2)")).
		WithArgs("t1", "a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.HasTranscriptHash(context.Background(), "t1", "a")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCreditAccountNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tier, max_outstanding_usd")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	account, err := store.GetCreditAccount(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, account)
}
