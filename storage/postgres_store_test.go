package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func TestPostgresStoreGet(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key = $1`)).
		WithArgs("console-session").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"cookies":[]}`)))

	got, err := ps.Get(context.Background(), "console-session")
	require.NoError(t, err)
	require.Equal(t, `{"cookies":[]}`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissing(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key = $1`)).
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	_, err := ps.Get(context.Background(), "absent")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetFailure(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key = $1`)).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := ps.Get(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresStorePutUpserts(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO kv_store .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("k", []byte("v")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ps.Put(context.Background(), "k", []byte("v")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDelete(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_store WHERE key = $1`)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ps.Delete(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMigrate(t *testing.T) {
	ps, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS kv_store`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ps.migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
