package domain

import (
	"context"
	"errors"
	"time"
)

// DeletedPlaceholder replaces the body text of soft-deleted messages.
const DeletedPlaceholder = "[Message deleted]"

// MaxMessageLength is the maximum message body length after trimming.
const MaxMessageLength = 500

// MessageRetention is how long messages are kept before the background
// sweep removes them. This is a data-retention policy, not a cache TTL.
const MessageRetention = 7 * 24 * time.Hour

// ReactionEmojis is the fixed set of recognized reaction symbols.
// Anything else is silently ignored.
var ReactionEmojis = []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageDeleted  = errors.New("message already deleted")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrNotAuthorized   = errors.New("not authorized")
)

// Reactions maps an emoji symbol to the set of user ids that reacted
// with it. Each user appears at most once per emoji.
type Reactions map[string][]string

// NewReactions returns an empty reaction map covering every recognized
// emoji, matching the persisted document layout.
func NewReactions() Reactions {
	r := make(Reactions, len(ReactionEmojis))
	for _, e := range ReactionEmojis {
		r[e] = []string{}
	}
	return r
}

// IsValidEmoji reports whether the emoji is one of the recognized symbols.
func IsValidEmoji(emoji string) bool {
	for _, e := range ReactionEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

// Has reports whether the user already reacted with the emoji.
func (r Reactions) Has(emoji, userID string) bool {
	for _, id := range r[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}

// Toggle adds the user to the emoji's set if absent, removes it if
// present, and reports whether the user is now present.
func (r Reactions) Toggle(emoji, userID string) bool {
	ids := r[emoji]
	for i, id := range ids {
		if id == userID {
			r[emoji] = append(ids[:i], ids[i+1:]...)
			return false
		}
	}
	r[emoji] = append(ids, userID)
	return true
}

// Message represents a community chat message. Author name and avatar
// are snapshots copied at send time; later profile changes do not alter
// historical messages.
type Message struct {
	ID         string    `json:"_id"`
	Room       string    `json:"room"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar,omitempty"`
	Text       string    `json:"text"`
	Reactions  Reactions `json:"reactions"`
	IsDeleted  bool      `json:"isDeleted"`
	DeletedBy  string    `json:"deletedBy,omitempty"` // "user" or "admin"
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MessagePage is one page of room history, oldest first.
type MessagePage struct {
	Messages []*Message
	Page     int
	Limit    int
	Total    int
	Pages    int
	HasMore  bool
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	GetByRoom(ctx context.Context, room string, page, limit int) (*MessagePage, error)
	UpdateReactions(ctx context.Context, id string, reactions Reactions) error
	SoftDelete(ctx context.Context, id, deletedBy string) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
