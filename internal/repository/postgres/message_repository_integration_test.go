//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"denguespot-chat/internal/domain"
	"denguespot-chat/internal/repository/postgres"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresContainer manages PostgreSQL container lifecycle for integration tests
type TestPostgresContainer struct {
	container testcontainers.Container
	db        *sql.DB
	connStr   string
}

// setupPostgres starts a PostgreSQL container and returns a database connection
func setupPostgres(t *testing.T) (*TestPostgresContainer, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Wait for PostgreSQL to be fully ready
	time.Sleep(2 * time.Second)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to connect to PostgreSQL")

	// Run migrations
	err = runMigrations(db)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return &TestPostgresContainer{
		container: container,
		db:        db,
		connStr:   connStr,
	}, cleanup
}

// runMigrations creates the database schema for testing
func runMigrations(db *sql.DB) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS "pgcrypto";

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(100) NOT NULL CHECK (length(name) >= 1),
			email VARCHAR(255) UNIQUE NOT NULL CHECK (email ~* '^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$'),
			password_hash VARCHAR(255) NOT NULL,
			avatar TEXT,
			role VARCHAR(20) DEFAULT 'user' NOT NULL,
			is_banned BOOLEAN DEFAULT FALSE NOT NULL,
			ban_reason TEXT,
			is_chat_banned BOOLEAN DEFAULT FALSE NOT NULL,
			chat_ban_reason TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			room VARCHAR(50) NOT NULL,
			user_id UUID NOT NULL,
			user_name VARCHAR(100) NOT NULL,
			user_avatar TEXT,
			text VARCHAR(500) NOT NULL,
			reactions JSONB DEFAULT '{}' NOT NULL,
			is_deleted BOOLEAN DEFAULT FALSE NOT NULL,
			deleted_by VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const testUserID = "11111111-1111-1111-1111-111111111111"

func newMessage(room, text string) *domain.Message {
	return &domain.Message{
		Room:      room,
		UserID:    testUserID,
		UserName:  "Ravi Kumar",
		Text:      text,
		Reactions: domain.NewReactions(),
	}
}

// TestMessageRepository_Integration tests the MessageRepository with a real PostgreSQL database
func TestMessageRepository_Integration(t *testing.T) {
	pg, cleanup := setupPostgres(t)
	defer cleanup()

	repo := postgres.NewMessageRepository(pg.db)

	t.Run("Create_and_GetByID", func(t *testing.T) {
		msg := newMessage("patna", "Fogging drive this Saturday in ward 12")
		msg.UserAvatar = "https://example.com/avatar.png"

		err := repo.Create(context.Background(), msg)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID, "message ID should be set after creation")
		assert.False(t, msg.CreatedAt.IsZero(), "created_at should be set")

		retrieved, err := repo.GetByID(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, retrieved.ID)
		assert.Equal(t, "patna", retrieved.Room)
		assert.Equal(t, msg.Text, retrieved.Text)
		assert.Equal(t, msg.UserAvatar, retrieved.UserAvatar)
		assert.False(t, retrieved.IsDeleted)
		for _, emoji := range domain.ReactionEmojis {
			assert.Empty(t, retrieved.Reactions[emoji])
		}
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		_, err := repo.GetByID(context.Background(), "22222222-2222-2222-2222-222222222222")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("GetByRoom_Pagination", func(t *testing.T) {
		for i := 0; i < 25; i++ {
			msg := newMessage("delhi", fmt.Sprintf("update %d", i))
			require.NoError(t, repo.Create(context.Background(), msg))
		}

		page1, err := repo.GetByRoom(context.Background(), "delhi", 1, 10)
		require.NoError(t, err)
		assert.Len(t, page1.Messages, 10)
		assert.Equal(t, 25, page1.Total)
		assert.Equal(t, 3, page1.Pages)
		assert.True(t, page1.HasMore)
		assert.Equal(t, "update 15", page1.Messages[0].Text, "page 1 holds the newest window")
		assert.Equal(t, "update 24", page1.Messages[9].Text, "oldest first within the page")

		page3, err := repo.GetByRoom(context.Background(), "delhi", 3, 10)
		require.NoError(t, err)
		assert.Len(t, page3.Messages, 5)
		assert.Equal(t, "update 0", page3.Messages[0].Text, "last page reaches back to the oldest message")
		assert.False(t, page3.HasMore)
	})

	t.Run("GetByRoom_ExcludesDeleted", func(t *testing.T) {
		kept := newMessage("mumbai", "keep me")
		require.NoError(t, repo.Create(context.Background(), kept))
		gone := newMessage("mumbai", "delete me")
		require.NoError(t, repo.Create(context.Background(), gone))
		require.NoError(t, repo.SoftDelete(context.Background(), gone.ID, "admin"))

		page, err := repo.GetByRoom(context.Background(), "mumbai", 1, 30)
		require.NoError(t, err)
		assert.Len(t, page.Messages, 1)
		assert.Equal(t, kept.ID, page.Messages[0].ID)
	})

	t.Run("UpdateReactions", func(t *testing.T) {
		msg := newMessage("patna", "net distribution tomorrow")
		require.NoError(t, repo.Create(context.Background(), msg))

		reactions := domain.NewReactions()
		reactions["👍"] = []string{testUserID}
		require.NoError(t, repo.UpdateReactions(context.Background(), msg.ID, reactions))

		retrieved, err := repo.GetByID(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{testUserID}, retrieved.Reactions["👍"])
	})

	t.Run("UpdateReactions_NotFound", func(t *testing.T) {
		err := repo.UpdateReactions(context.Background(), "22222222-2222-2222-2222-222222222222", domain.NewReactions())
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("SoftDelete", func(t *testing.T) {
		msg := newMessage("patna", "something regrettable")
		require.NoError(t, repo.Create(context.Background(), msg))

		require.NoError(t, repo.SoftDelete(context.Background(), msg.ID, "user"))

		retrieved, err := repo.GetByID(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.True(t, retrieved.IsDeleted)
		assert.Equal(t, "user", retrieved.DeletedBy)
		assert.Equal(t, domain.DeletedPlaceholder, retrieved.Text)

		// A second delete finds no live row
		err = repo.SoftDelete(context.Background(), msg.ID, "admin")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		old := newMessage("pune", "stale announcement")
		require.NoError(t, repo.Create(context.Background(), old))
		_, err := pg.db.Exec(`UPDATE messages SET created_at = NOW() - INTERVAL '8 days' WHERE id = $1`, old.ID)
		require.NoError(t, err)

		fresh := newMessage("pune", "current announcement")
		require.NoError(t, repo.Create(context.Background(), fresh))

		removed, err := repo.DeleteExpired(context.Background(), domain.MessageRetention)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = repo.GetByID(context.Background(), old.ID)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)

		_, err = repo.GetByID(context.Background(), fresh.ID)
		assert.NoError(t, err)
	})
}
