package store

import (
	"context"

	"direct-chat/internal/apperr"
	"direct-chat/internal/models"

	"gorm.io/gorm/clause"
)

func (s *Store) GetContacts(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Joins("JOIN contacts ON contacts.contact_id = users.id").
		Where("contacts.user_id = ?", userID).
		Order("contacts.created_at asc, contacts.id asc").
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// AddContact resolves identifier (username or email) and adds the edge
// userID -> target. Adding an existing contact returns it unchanged.
func (s *Store) AddContact(ctx context.Context, userID, identifier string) (*models.User, error) {
	target, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if target.ID == userID {
		return nil, ErrSelfContact
	}

	edge := models.Contact{UserID: userID, ContactID: target.ID, CreatedAt: s.now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return target, nil
}
