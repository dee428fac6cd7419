package store

import (
	"context"
	"errors"
	"sort"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"

	"gorm.io/gorm"
)

// ListConversations returns the user's conversations, most recently active first.
// UnreadCount is always zero.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	db := s.db.WithContext(ctx)
	out := []models.ConversationSummary{}

	var ids []uint
	if err := db.Model(&models.ConversationMember{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	var convs []models.Conversation
	if err := db.Where("id IN ?", ids).Find(&convs).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	for _, conv := range convs {
		summary := models.ConversationSummary{Conversation: conv}

		var last models.Message
		err := db.Preload("Sender").
			Where("conversation_id = ?", conv.ID).
			Order("created_at desc, id desc").
			Take(&last).Error
		switch {
		case err == nil:
			summary.LastMessage = &last
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.Internal(err)
		}

		if !conv.IsGroup {
			var other models.ConversationMember
			err := db.Preload("User").
				Where("conversation_id = ? AND user_id <> ?", conv.ID, userID).
				Take(&other).Error
			switch {
			case err == nil:
				summary.OtherUser = other.User
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, apperr.Internal(err)
			}
		}

		out = append(out, summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].EffectiveAt(), out[j].EffectiveAt()
		if ti.Equal(tj) {
			return out[i].ID > out[j].ID
		}
		return ti.After(tj)
	})
	return out, nil
}

// GetConversation loads a conversation with its members. It does not filter
// by membership.
func (s *Store) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at asc, user_id asc")
		}).
		Preload("Members.User").
		Where("id = ?", id).
		Take(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, apperr.Internal(err)
	}
	return &conv, nil
}

// IsMember reports whether userID belongs to conversation id. A missing
// conversation yields ErrConversationNotFound.
func (s *Store) IsMember(ctx context.Context, id uint, userID string) (bool, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return false, err
	}
	return conv.HasMember(userID), nil
}

// CreateConversation creates a direct conversation and both membership rows
// in one transaction. created is false only when dedupe is on and an existing
// direct conversation was returned.
func (s *Store) CreateConversation(ctx context.Context, userID, participantID string) (conv *models.Conversation, created bool, err error) {
	if participantID == userID {
		return nil, false, ErrSelfConversation
	}

	var id uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", participantID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrUnknownParticipant
		}

		if s.dedupeDirect {
			existing, err := findDirect(tx, userID, participantID)
			if err != nil {
				return err
			}
			if existing != 0 {
				id = existing
				return nil
			}
		}

		now := s.now()
		c := models.Conversation{IsGroup: false, CreatedAt: now}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		members := []models.ConversationMember{
			{ConversationID: c.ID, UserID: userID, JoinedAt: now},
			{ConversationID: c.ID, UserID: participantID, JoinedAt: now},
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		id = c.ID
		created = true
		return nil
	})
	if err != nil {
		return nil, false, wrap(err)
	}

	conv, err = s.GetConversation(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// findDirect returns the id of the oldest non-group conversation whose
// members are exactly a and b, or 0.
func findDirect(tx *gorm.DB, a, b string) (uint, error) {
	var ids []uint
	err := tx.Model(&models.ConversationMember{}).
		Select("conversation_members.conversation_id").
		Joins("JOIN conversations ON conversations.id = conversation_members.conversation_id").
		Where("conversations.is_group = ?", false).
		Group("conversation_members.conversation_id").
		Having("COUNT(*) = 2 AND SUM(CASE WHEN conversation_members.user_id IN ? THEN 1 ELSE 0 END) = 2", []string{a, b}).
		Order("conversation_members.conversation_id asc").
		Limit(1).
		Pluck("conversation_members.conversation_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}
