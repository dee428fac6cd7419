// Package store implements the conversation and message data-access service
// on top of gorm. It trusts its caller for authorization: membership checks
// belong to the HTTP surface.
package store

import (
	"time"

	"direct-chat/internal/apperr"

	"gorm.io/gorm"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	SearchLimit         = 10
	MaxContentLength    = 4000
)

var (
	ErrUserNotFound         = apperr.NotFound("user")
	ErrConversationNotFound = apperr.NotFound("conversation")
	ErrSelfContact          = apperr.ValidationField("username", "cannot add yourself as a contact")
	ErrSelfConversation     = apperr.ValidationField("participantId", "cannot start a conversation with yourself")
	ErrUnknownParticipant   = apperr.ValidationField("participantId", "participant does not exist")
	ErrEmptyContent         = apperr.ValidationField("content", "content is required")
	ErrContentTooLong       = apperr.ValidationField("content", "content is too long")
	ErrUsernameTaken        = apperr.ValidationField("username", "username is already taken")
	ErrEmailTaken           = apperr.ValidationField("email", "email is already registered")
	ErrBadCredentials       = apperr.Unauthorized("wrong login or password")
)

type Store struct {
	db           *gorm.DB
	dedupeDirect bool
	now          func() time.Time
}

type Option func(*Store)

// WithDirectDedupe makes CreateConversation reuse an existing direct
// conversation between the same two users.
func WithDirectDedupe(on bool) Option {
	return func(s *Store) { s.dedupeDirect = on }
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the underlying connection.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
