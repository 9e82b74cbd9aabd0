package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardExecutorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id` FROM `posts`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))

	exec := NewStandardExecutor(db)
	rows, err := exec.QueryContext(context.Background(), "SELECT `id` FROM `posts`")
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var id string
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, "p1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStandardExecutorNilDB(t *testing.T) {
	exec := NewStandardExecutor(nil)
	_, err := exec.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.ExecContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestInTransactionCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts`").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = InTransaction(context.Background(), db, func(exec QueryExecutor) error {
		_, execErr := exec.ExecContext(context.Background(), "INSERT INTO `posts` (`id`) VALUES (?)", "p1")
		return execErr
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = InTransaction(context.Background(), db, func(QueryExecutor) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransactionNilDB(t *testing.T) {
	err := InTransaction(context.Background(), nil, func(QueryExecutor) error { return nil })
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
