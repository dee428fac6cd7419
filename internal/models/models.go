package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	FirstName    string    `gorm:"size:120" json:"firstName"`
	LastName     string    `gorm:"size:120" json:"lastName"`
	AvatarURL    *string   `gorm:"size:512" json:"avatarUrl"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Conversation is immutable after creation; only its members and messages grow.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      *string   `gorm:"size:120" json:"name"`
	IsGroup   bool      `gorm:"not null;default:false" json:"isGroup"`
	CreatedAt time.Time `json:"createdAt"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
}

type ConversationMember struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;size:36;index" json:"userId"`
	JoinedAt       time.Time `gorm:"not null" json:"joinedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index:idx_messages_conversation_created,priority:1;not null" json:"conversationId"`
	SenderID       string    `gorm:"size:36;index;not null" json:"senderId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2;not null" json:"createdAt"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// Contact is a directed address-book edge; no reciprocal edge is implied.
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_contacts_edge,priority:1" json:"userId"`
	ContactID string    `gorm:"size:36;not null;uniqueIndex:idx_contacts_edge,priority:2" json:"contactId"`
	CreatedAt time.Time `json:"createdAt"`

	Contact *User `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
}

// ConversationSummary is the inbox view of a conversation.
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"lastMessage"`
	OtherUser   *User    `json:"otherUser,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}

// EffectiveAt is the last message time, or the creation time for an empty conversation.
func (s ConversationSummary) EffectiveAt() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.CreatedAt
}

// HasMember reports whether userID is in the loaded member list.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// All returns every model in dependency order for migration.
func All() []any {
	return []any{
		&User{},
		&Conversation{},
		&ConversationMember{},
		&Message{},
		&Contact{},
	}
}
