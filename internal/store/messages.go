package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"

	"gorm.io/gorm"
)

type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default limit and clamps it to MaxMessageLimit.
func (p Page) Normalize() (Page, error) {
	if p.Limit < 0 {
		return p, apperr.ValidationField("limit", "limit must be a non-negative integer")
	}
	if p.Offset < 0 {
		return p, apperr.ValidationField("offset", "offset must be a non-negative integer")
	}
	if p.Limit == 0 {
		p.Limit = DefaultMessageLimit
	}
	if p.Limit > MaxMessageLimit {
		p.Limit = MaxMessageLimit
	}
	return p, nil
}

// ListMessages returns a page of messages oldest first, each with its sender.
func (s *Store) ListMessages(ctx context.Context, conversationID uint, page Page) ([]models.Message, error) {
	page, err := page.Normalize()
	if err != nil {
		return nil, err
	}

	msgs := []models.Message{}
	err = s.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return msgs, nil
}

// CreateMessage persists a message. The caller must have checked that
// senderID is a member of conversationID.
//
// createdAt is strictly increasing within a conversation: a message never
// gets a timestamp at or before the conversation's latest one.
func (s *Store) CreateMessage(ctx context.Context, senderID string, conversationID uint, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		createdAt := s.now().Truncate(time.Millisecond)

		var last models.Message
		err := tx.Select("id", "created_at").
			Where("conversation_id = ?", conversationID).
			Order("created_at desc, id desc").
			Take(&last).Error
		switch {
		case err == nil:
			if !createdAt.After(last.CreatedAt) {
				createdAt = last.CreatedAt.Add(time.Millisecond)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		msg.CreatedAt = createdAt
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, wrap(err)
	}

	sender, err := s.GetUser(ctx, senderID)
	if err == nil {
		msg.Sender = sender
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return &msg, nil
}
