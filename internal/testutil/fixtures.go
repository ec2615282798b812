package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"denguespot-chat/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID            string
	Name          string
	Email         string
	Avatar        string
	Role          string
	IsBanned      bool
	BanReason     string
	IsChatBanned  bool
	ChatBanReason string
	PasswordHash  string
	CreatedAt     time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	o := &UserOptions{
		ID:           nextID("user"),
		Name:         fmt.Sprintf("Test User %d", idCounter.Load()),
		Role:         domain.RoleUser,
		PasswordHash: "$2a$12$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.Email == "" {
		o.Email = fmt.Sprintf("user%d@example.com", idCounter.Load())
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.User{
		ID:            o.ID,
		Name:          o.Name,
		Email:         o.Email,
		Avatar:        o.Avatar,
		Role:          o.Role,
		IsBanned:      o.IsBanned,
		BanReason:     o.BanReason,
		IsChatBanned:  o.IsChatBanned,
		ChatBanReason: o.ChatBanReason,
		PasswordHash:  o.PasswordHash,
		CreatedAt:     o.CreatedAt,
	}
}

// WithUserID sets the user ID
func WithUserID(id string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithUserName sets the display name
func WithUserName(name string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Name = name
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithRole sets the user role
func WithRole(role string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Role = role
	}
}

// WithAdmin marks the user as an admin
func WithAdmin() func(*UserOptions) {
	return func(o *UserOptions) {
		o.Role = domain.RoleAdmin
	}
}

// WithBanned sets the global ban flag and reason
func WithBanned(reason string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.IsBanned = true
		o.BanReason = reason
	}
}

// WithChatBanned sets the chat ban flag and reason
func WithChatBanned(reason string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.IsChatBanned = true
		o.ChatBanReason = reason
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	ID         string
	Room       string
	UserID     string
	UserName   string
	UserAvatar string
	Text       string
	Reactions  domain.Reactions
	IsDeleted  bool
	DeletedBy  string
	CreatedAt  time.Time
}

// NewTestMessage creates a test message with sensible defaults
func NewTestMessage(opts ...func(*MessageOptions)) *domain.Message {
	o := &MessageOptions{
		ID:       nextID("msg"),
		Room:     "patna",
		UserID:   nextID("user"),
		UserName: fmt.Sprintf("Test User %d", idCounter.Load()),
		Text:     "Found standing water near the market",
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.Reactions == nil {
		o.Reactions = domain.NewReactions()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.Message{
		ID:         o.ID,
		Room:       o.Room,
		UserID:     o.UserID,
		UserName:   o.UserName,
		UserAvatar: o.UserAvatar,
		Text:       o.Text,
		Reactions:  o.Reactions,
		IsDeleted:  o.IsDeleted,
		DeletedBy:  o.DeletedBy,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.CreatedAt,
	}
}

// WithMessageID sets the message ID
func WithMessageID(id string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.ID = id
	}
}

// WithMessageRoom sets the room for the message
func WithMessageRoom(room string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Room = room
	}
}

// WithMessageUserID sets the author's user ID
func WithMessageUserID(userID string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.UserID = userID
	}
}

// WithMessageUserName sets the author's snapshotted display name
func WithMessageUserName(name string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.UserName = name
	}
}

// WithText sets the message text
func WithText(text string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Text = text
	}
}

// WithReactions sets the reaction map
func WithReactions(reactions domain.Reactions) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Reactions = reactions
	}
}

// WithDeleted marks the message as soft-deleted
func WithDeleted(by string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.IsDeleted = true
		o.DeletedBy = by
		o.Text = domain.DeletedPlaceholder
	}
}

// WithMessageCreatedAt sets the message creation time
func WithMessageCreatedAt(t time.Time) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.CreatedAt = t
	}
}

// NewTestMessages creates multiple test messages in the same room,
// spaced one second apart in creation order.
func NewTestMessages(room string, count int) []*domain.Message {
	messages := make([]*domain.Message, count)
	base := time.Now().Add(-time.Duration(count) * time.Second)
	for i := 0; i < count; i++ {
		messages[i] = NewTestMessage(
			WithMessageRoom(room),
			WithMessageCreatedAt(base.Add(time.Duration(i)*time.Second)),
		)
	}
	return messages
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
