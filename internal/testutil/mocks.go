// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the denguespot-chat application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"denguespot-chat/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc     func(ctx context.Context, user *domain.User) error
	GetByIDFunc    func(ctx context.Context, id string) (*domain.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*domain.User, error)

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}

	for _, u := range m.Users {
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc          func(ctx context.Context, message *domain.Message) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Message, error)
	GetByRoomFunc       func(ctx context.Context, room string, page, limit int) (*domain.MessagePage, error)
	UpdateReactionsFunc func(ctx context.Context, id string, reactions domain.Reactions) error
	SoftDeleteFunc      func(ctx context.Context, id, deletedBy string) error
	DeleteExpiredFunc   func(ctx context.Context, olderThan time.Duration) (int64, error)

	// In-memory storage for simple tests
	Messages map[string]*domain.Message
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized maps
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make(map[string]*domain.Message),
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Messages == nil {
		m.Messages = make(map[string]*domain.Message)
	}
	if message.ID == "" {
		message.ID = nextID("msg")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
		message.UpdatedAt = message.CreatedAt
	}
	m.Messages[message.ID] = message
	return nil
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.Messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (m *MockMessageRepository) GetByRoom(ctx context.Context, room string, page, limit int) (*domain.MessagePage, error) {
	if m.GetByRoomFunc != nil {
		return m.GetByRoomFunc(ctx, room, page, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*domain.Message
	for _, msg := range m.Messages {
		if msg.Room == room && !msg.IsDeleted {
			all = append(all, msg)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	pages := (total + limit - 1) / limit

	// Page 1 is the newest window; within it messages stay oldest first.
	end := total - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	return &domain.MessagePage{
		Messages: all[start:end],
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    pages,
		HasMore:  page < pages,
	}, nil
}

func (m *MockMessageRepository) UpdateReactions(ctx context.Context, id string, reactions domain.Reactions) error {
	if m.UpdateReactionsFunc != nil {
		return m.UpdateReactionsFunc(ctx, id, reactions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.Messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	msg.Reactions = reactions
	msg.UpdatedAt = time.Now()
	return nil
}

func (m *MockMessageRepository) SoftDelete(ctx context.Context, id, deletedBy string) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id, deletedBy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.Messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	msg.IsDeleted = true
	msg.DeletedBy = deletedBy
	msg.Text = domain.DeletedPlaceholder
	msg.UpdatedAt = time.Now()
	return nil
}

func (m *MockMessageRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, olderThan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var removed int64
	for id, msg := range m.Messages {
		if msg.CreatedAt.Before(cutoff) {
			delete(m.Messages, id)
			removed++
		}
	}
	return removed, nil
}
