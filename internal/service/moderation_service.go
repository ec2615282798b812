package service

import (
	"context"
	"errors"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/observability"
)

// Actions gated by the moderation check.
const (
	ActionJoin   = "join"
	ActionSend   = "send"
	ActionReact  = "react"
	ActionDelete = "delete"
)

// Denial reasons.
const (
	ReasonAccountBanned = "account_banned"
	ReasonChatBanned    = "chat_banned"
	ReasonNotFound      = "not_found"
)

// Decision is the outcome of an authorization check. Detail carries the
// ban reason when present, for surfacing to the denied connection.
type Decision struct {
	Allowed bool
	Reason  string
	Detail  string
	User    *domain.User
}

// ModerationService gates every room-join, send, reaction and delete on
// current ban state. It is a pure check against the user record and is
// re-run per operation, so a ban applied mid-session takes effect on the
// user's next action.
type ModerationService struct {
	userRepo domain.UserRepository
}

func NewModerationService(userRepo domain.UserRepository) *ModerationService {
	return &ModerationService{userRepo: userRepo}
}

// Authorize checks whether the user may perform the action. A global
// ban takes precedence over a chat ban.
func (s *ModerationService) Authorize(ctx context.Context, userID, action string) (Decision, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			observability.ChatOperationsDenied.WithLabelValues(action, ReasonNotFound).Inc()
			return Decision{Reason: ReasonNotFound}, nil
		}
		return Decision{}, err
	}

	if user.IsBanned {
		observability.ChatOperationsDenied.WithLabelValues(action, ReasonAccountBanned).Inc()
		return Decision{Reason: ReasonAccountBanned, Detail: user.BanReason}, nil
	}

	if user.IsChatBanned {
		observability.ChatOperationsDenied.WithLabelValues(action, ReasonChatBanned).Inc()
		detail := user.ChatBanReason
		if detail == "" {
			detail = "Violation of chat rules"
		}
		return Decision{Reason: ReasonChatBanned, Detail: detail}, nil
	}

	return Decision{Allowed: true, User: user}, nil
}
