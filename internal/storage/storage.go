package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrOrgNotFound           = errors.New("organization not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrMemberNotFound        = errors.New("member not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrProjectMemberNotFound = errors.New("project member not found")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrSprintNotFound        = errors.New("sprint not found")
	ErrCommentNotFound       = errors.New("comment not found")
	ErrLabelNotFound         = errors.New("label not found")
	ErrSlugTaken             = errors.New("organization slug already taken")
	ErrPrefixTaken           = errors.New("ticket prefix already taken")
	ErrEmailTaken            = errors.New("email already registered")
	ErrAlreadyMember         = errors.New("user is already a member")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping() error {
	return s.db.Ping()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
