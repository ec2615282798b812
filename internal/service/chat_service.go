package service

import (
	"context"
	"errors"
	"strings"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/observability"
)

// ChatService validates and persists chat operations. Broadcasting is
// the hub's job; the service only touches the store.
type ChatService struct {
	messageRepo domain.MessageRepository
}

func NewChatService(messageRepo domain.MessageRepository) *ChatService {
	return &ChatService{messageRepo: messageRepo}
}

// SendMessage validates, filters and persists a message. The sender's
// display name and avatar are copied onto the message so later profile
// edits do not rewrite history.
func (s *ChatService) SendMessage(ctx context.Context, room string, sender *domain.User, text string) (*domain.Message, error) {
	roomInfo, err := domain.GetRoom(room)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrMessageEmpty
	}
	if len([]rune(text)) > domain.MaxMessageLength {
		return nil, domain.ErrMessageTooLong
	}

	msg := &domain.Message{
		Room:       roomInfo.ID,
		UserID:     sender.ID,
		UserName:   sender.Name,
		UserAvatar: sender.Avatar,
		Text:       FilterProfanity(text),
		Reactions:  domain.NewReactions(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	observability.ChatMessagesSaved.WithLabelValues(msg.Room).Inc()
	return msg, nil
}

// ToggleReaction flips the user's reaction on one emoji and persists the
// updated set. Unknown emoji, missing messages and deleted messages are
// reported as (nil, nil): the caller treats them as silent no-ops, which
// tolerates races with a concurrent moderator delete.
func (s *ChatService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	if !domain.IsValidEmoji(emoji) {
		return nil, nil
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if msg.IsDeleted {
		return nil, nil
	}

	msg.Reactions.Toggle(emoji, userID)

	if err := s.messageRepo.UpdateReactions(ctx, msg.ID, msg.Reactions); err != nil {
		// The message can be soft-deleted between the read and the
		// update; that race ends as a no-op like any other delete.
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message: only the original author or an
// admin may delete. The body is replaced with the fixed placeholder; the
// record itself survives until the retention sweep.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID string, requester *domain.User) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, domain.ErrMessageDeleted
	}

	isOwner := msg.UserID == requester.ID
	if !isOwner && !requester.IsAdmin() {
		return nil, domain.ErrNotAuthorized
	}

	deletedBy := "user"
	if !isOwner {
		deletedBy = "admin"
	}

	if err := s.messageRepo.SoftDelete(ctx, msg.ID, deletedBy); err != nil {
		return nil, err
	}

	msg.IsDeleted = true
	msg.DeletedBy = deletedBy
	msg.Text = domain.DeletedPlaceholder
	return msg, nil
}

// GetRoomMessages returns one page of non-deleted room history. Page 1 is
// the newest window; messages within a page run oldest first. The limit
// is clamped to [10, 50] with a default of 30.
func (s *ChatService) GetRoomMessages(ctx context.Context, room string, page, limit int) (*domain.MessagePage, error) {
	roomInfo, err := domain.GetRoom(room)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 30
	}
	if limit < 10 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	return s.messageRepo.GetByRoom(ctx, roomInfo.ID, page, limit)
}
