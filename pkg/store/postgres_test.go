package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresKVPut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO aec_kv").
		WithArgs("wf/1", []byte("state")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	kv := NewPostgresKV(db)
	require.NoError(t, kv.Put(context.Background(), "wf/1", []byte("state")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM aec_kv").
		WithArgs("wf/missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	kv := NewPostgresKV(db)
	_, err = kv.Get(context.Background(), "wf/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("wf/a", []byte("1")).
		AddRow("wf/b", []byte("2"))
	mock.ExpectQuery("SELECT key, value FROM aec_kv").
		WithArgs("wf/").
		WillReturnRows(rows)

	kv := NewPostgresKV(db)
	entries, err := kv.Scan(context.Background(), "wf/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "wf/a", entries[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}
