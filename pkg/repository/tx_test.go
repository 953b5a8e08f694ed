package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/JaimeStill/lodestar/pkg/repository"
)

func scanName(s repository.Scanner) (string, error) {
	var name string
	err := s.Scan(&name)
	return name, err
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM decisions WHERE id = $1")).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Digitise"))
	mock.ExpectCommit()

	got, err := repository.WithTx(context.Background(), db, func(tx *sql.Tx) (string, error) {
		return repository.QueryOne(context.Background(), tx,
			"SELECT category FROM decisions WHERE id = $1", []any{"d-1"}, scanName)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got != "Digitise" {
		t.Errorf("got %q, want Digitise", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := repository.WithTx(context.Background(), db, func(tx *sql.Tx) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryOneNoRows(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"category"}))

	_, err := repository.QueryOne(context.Background(), db, "SELECT category FROM decisions", nil, scanName)
	if !errors.Is(repository.MapError(err, errNotFound, errDuplicate), errNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestQueryManyEmpty(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"category"}))

	got, err := repository.QueryMany(context.Background(), db, "SELECT category FROM decisions", nil, scanName)
	if err != nil {
		t.Fatalf("QueryMany: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}
