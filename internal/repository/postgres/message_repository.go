package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/observability"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL.
// Reactions live in a jsonb column; the whole map is small (6 emoji) so
// it is read and written as one value.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message into the database
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	reactions, err := json.Marshal(message.Reactions)
	if err != nil {
		return fmt.Errorf("failed to marshal reactions: %w", err)
	}

	query := `
		INSERT INTO messages (room, user_id, user_name, user_avatar, text, reactions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	start := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		message.Room,
		message.UserID,
		message.UserName,
		message.UserAvatar,
		message.Text,
		reactions,
	).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)
	observability.DBQueryDuration.WithLabelValues("create", "messages").Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID, deleted or not
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `
		SELECT id, room, user_id, user_name, user_avatar, text, reactions,
		       is_deleted, deleted_by, created_at, updated_at
		FROM messages
		WHERE id = $1
	`
	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetByRoom retrieves one page of non-deleted messages for a room. Pages
// count back from the newest message, so page 1 is the most recent window;
// within each page messages run oldest first, ready for display. Rows past
// the retention horizon are excluded even if the sweep has not removed
// them yet.
func (r *MessageRepository) GetByRoom(ctx context.Context, room string, page, limit int) (*domain.MessagePage, error) {
	cutoff := time.Now().Add(-domain.MessageRetention)

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE room = $1 AND is_deleted = FALSE AND created_at > $2
	`
	if err := r.db.QueryRowContext(ctx, countQuery, room, cutoff).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT id, room, user_id, user_name, user_avatar, text, reactions,
		       is_deleted, deleted_by, created_at, updated_at
		FROM messages
		WHERE room = $1 AND is_deleted = FALSE AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	offset := (page - 1) * limit

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, room, cutoff, limit, offset)
	observability.DBQueryDuration.WithLabelValues("get_by_room", "messages").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// The query walks newest to oldest so the offset lands on the right
	// window; flip the page back to display order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}

	return &domain.MessagePage{
		Messages: messages,
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    pages,
		HasMore:  page < pages,
	}, nil
}

// UpdateReactions replaces the message's reaction map
func (r *MessageRepository) UpdateReactions(ctx context.Context, id string, reactions domain.Reactions) error {
	data, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("failed to marshal reactions: %w", err)
	}

	query := `
		UPDATE messages
		SET reactions = $1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, data, id)
	if err != nil {
		return fmt.Errorf("failed to update reactions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// SoftDelete blanks the message text and records who deleted it
func (r *MessageRepository) SoftDelete(ctx context.Context, id, deletedBy string) error {
	query := `
		UPDATE messages
		SET is_deleted = TRUE, deleted_by = $1, text = $2, updated_at = NOW()
		WHERE id = $3 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, deletedBy, domain.DeletedPlaceholder, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteExpired removes messages past the retention horizon and returns
// how many rows were purged.
func (r *MessageRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM messages WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted messages: %w", err)
	}
	return removed, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	msg := &domain.Message{}
	var avatar, deletedBy sql.NullString
	var reactions []byte

	err := row.Scan(
		&msg.ID,
		&msg.Room,
		&msg.UserID,
		&msg.UserName,
		&avatar,
		&msg.Text,
		&reactions,
		&msg.IsDeleted,
		&deletedBy,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.UserAvatar = avatar.String
	msg.DeletedBy = deletedBy.String
	msg.Reactions = domain.NewReactions()
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reactions: %w", err)
		}
	}
	return msg, nil
}
