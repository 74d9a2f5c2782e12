package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "sqlmock")), mock
}

func TestReorderTicketsCommitsWholeColumn(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tickets").
		WithArgs(sqlmock.AnyArg(), "ticket-1", "proj-1", "todo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tickets").
		WithArgs(sqlmock.AnyArg(), "ticket-2", "proj-1", "todo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ReorderTickets(context.Background(), "proj-1", "todo", []string{"ticket-1", "ticket-2"})
	if err != nil {
		t.Fatalf("ReorderTickets: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReorderTicketsRollsBackOnMissingTicket(t *testing.T) {
	store, mock := newMockStorage(t)

	// The second ticket left the column concurrently; nothing from the
	// reorder may persist.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tickets").
		WithArgs(sqlmock.AnyArg(), "ticket-1", "proj-1", "todo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tickets").
		WithArgs(sqlmock.AnyArg(), "ticket-2", "proj-1", "todo").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.ReorderTickets(context.Background(), "proj-1", "todo", []string{"ticket-1", "ticket-2"})
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("ReorderTickets error = %v, want ErrTicketNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
