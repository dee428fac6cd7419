package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"direct-chat/internal/apperr"
	"direct-chat/internal/database"
	"direct-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return New(db, opts...)
}

// fixedClock returns a clock frozen at start that advance moves forward.
func fixedClock(s *Store, start time.Time) (advance func(time.Duration)) {
	now := start
	s.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func seedUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		LastName:     "Tester",
		PasswordHash: "x",
	}
	require.NoError(t, s.db.Create(&u).Error)
	return &u
}

func memberIDs(conv *models.Conversation) []string {
	ids := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func TestCreateConversationThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	conv, created, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, conv.IsGroup)
	assert.Nil(t, conv.Name)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, memberIDs(got))
	for _, m := range got.Members {
		require.NotNil(t, m.User)
		assert.Equal(t, m.UserID, m.User.ID)
	}
}

func TestCreateConversationRejectsBadParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	_, _, err := s.CreateConversation(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfConversation)

	_, _, err = s.CreateConversation(ctx, alice.ID, "nobody")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateConversationRollsBackWithoutMembers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	boom := errors.New("membership insert failed")
	err := s.db.Callback().Create().Before("gorm:create").Register("test:fail_members", func(tx *gorm.DB) {
		if tx.Statement.Table == "conversation_members" {
			_ = tx.AddError(boom)
		}
	})
	require.NoError(t, err)

	_, _, err = s.CreateConversation(ctx, alice.ID, bob.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	var convs, members int64
	require.NoError(t, s.db.Model(&models.Conversation{}).Count(&convs).Error)
	require.NoError(t, s.db.Model(&models.ConversationMember{}).Count(&members).Error)
	assert.Zero(t, convs)
	assert.Zero(t, members)
}

func TestCreateConversationDuplicatesByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	first, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	second, created, err := s.CreateConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateConversationDedupe(t *testing.T) {
	s := newTestStore(t, WithDirectDedupe(true))
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	first, created, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := s.CreateConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	other, created, err := s.CreateConversation(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetConversation(context.Background(), 42)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = s.IsMember(context.Background(), 42, "anyone")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestIsMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")
	conv, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	ok, err := s.IsMember(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, conv.ID, carol.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessagesKeepCallOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// A frozen clock forces every message onto the same instant.
	fixedClock(s, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	conv, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	want := []string{"one", "two", "three", "four", "five"}
	for i, content := range want {
		sender := alice.ID
		if i%2 == 1 {
			sender = bob.ID
		}
		_, err := s.CreateMessage(ctx, sender, conv.ID, content)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, conv.ID, Page{})
	require.NoError(t, err)
	require.Len(t, msgs, len(want))
	for i, m := range msgs {
		assert.Equal(t, want[i], m.Content)
		require.NotNil(t, m.Sender)
		assert.Equal(t, m.SenderID, m.Sender.ID)
		if i > 0 {
			assert.True(t, m.CreatedAt.After(msgs[i-1].CreatedAt), "createdAt must strictly increase")
		}
	}
}

func TestCreateMessageValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	conv, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = s.CreateMessage(ctx, alice.ID, conv.ID, "  \n\t ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = s.CreateMessage(ctx, alice.ID, conv.ID, strings.Repeat("a", MaxContentLength+1))
	assert.ErrorIs(t, err, ErrContentTooLong)

	msg, err := s.CreateMessage(ctx, alice.ID, conv.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Username)
}

func TestListMessagesPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	conv, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		_, err := s.CreateMessage(ctx, alice.ID, conv.ID, fmt.Sprintf("m%02d", i))
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, conv.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultMessageLimit)
	assert.Equal(t, "m00", msgs[0].Content)

	msgs, err = s.ListMessages(ctx, conv.ID, Page{Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "m10", msgs[0].Content)
	assert.Equal(t, "m14", msgs[4].Content)

	msgs, err = s.ListMessages(ctx, conv.ID, Page{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = s.ListMessages(ctx, conv.ID, Page{Limit: -1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPageNormalize(t *testing.T) {
	p, err := Page{Limit: 1000}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxMessageLimit, p.Limit)

	_, err = Page{Offset: -3}.Normalize()
	assert.Error(t, err)
}

func TestListConversationsOrderingAndEnrichment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	advance := fixedClock(s, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	withBob, _, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	advance(time.Minute)
	withCarol, _, err := s.CreateConversation(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	list, err := s.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withCarol.ID, list[0].ID, "newer empty conversation first")
	assert.Nil(t, list[0].LastMessage)

	advance(time.Minute)
	_, err = s.CreateMessage(ctx, bob.ID, withBob.ID, "ping")
	require.NoError(t, err)

	list, err = s.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withBob.ID, list[0].ID, "recent message moves conversation up")
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "ping", list[0].LastMessage.Content)
	require.NotNil(t, list[0].OtherUser)
	assert.Equal(t, bob.ID, list[0].OtherUser.ID)
	require.NotNil(t, list[1].OtherUser)
	assert.Equal(t, carol.ID, list[1].OtherUser.ID)
	for _, c := range list {
		assert.Zero(t, c.UnreadCount)
	}
}

func TestListConversationsEmpty(t *testing.T) {
	s := newTestStore(t)
	alice := seedUser(t, s, "alice")

	list, err := s.ListConversations(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAddContactIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	first, err := s.AddContact(ctx, alice.ID, "bob")
	require.NoError(t, err)
	second, err := s.AddContact(ctx, alice.ID, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, first.ID)
	assert.Equal(t, first.ID, second.ID)

	var edges int64
	require.NoError(t, s.db.Model(&models.Contact{}).Where("user_id = ?", alice.ID).Count(&edges).Error)
	assert.EqualValues(t, 1, edges)

	contacts, err := s.GetContacts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0].ID)

	reverse, err := s.GetContacts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, reverse, "contacts are not reciprocal")
}

func TestAddContactFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	_, err := s.AddContact(ctx, alice.ID, "alice")
	assert.ErrorIs(t, err, ErrSelfContact)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.AddContact(ctx, alice.ID, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		seedUser(t, s, fmt.Sprintf("member%02d", i))
	}
	target := seedUser(t, s, "zelda")

	got, err := s.SearchUsers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SearchUsers(ctx, "zzz_no_such_user")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SearchUsers(ctx, "ZeLd")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, target.ID, got[0].ID)

	got, err = s.SearchUsers(ctx, "member")
	require.NoError(t, err)
	assert.Len(t, got, SearchLimit)

	got, err = s.SearchUsers(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, got, "wildcards are matched literally")
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.RegisterUser(ctx, NewUser{Username: "dora", Email: "Dora@Example.com", Password: "explorer1"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "dora@example.com", u.Email)

	_, err = s.RegisterUser(ctx, NewUser{Username: "dora", Email: "other@example.com", Password: "explorer1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = s.RegisterUser(ctx, NewUser{Username: "dora2", Email: "dora@example.com", Password: "explorer1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := s.Authenticate(ctx, "dora@example.com", "explorer1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "dora", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = s.Authenticate(ctx, "nobody", "explorer1")
	assert.ErrorIs(t, err, ErrBadCredentials)
}
