package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pep299/smartnotes/internal/store"
)

// MockUserStore keeps accounts in memory
type MockUserStore struct {
	// Err is returned by every method when set
	Err error

	mu     sync.Mutex
	users  []*store.User
	nextID int64
}

func (m *MockUserStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return nil, store.ErrDuplicate
		}
	}

	m.nextID++
	user := &store.User{
		ID:           m.nextID,
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.users = append(m.users, user)
	copied := *user
	return &copied, nil
}

func (m *MockUserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return m.exists(func(u *store.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *MockUserStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	return m.exists(func(u *store.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MockUserStore) UserByID(ctx context.Context, id int64) (*store.User, error) {
	return m.find(func(u *store.User) bool { return u.ID == id })
}

func (m *MockUserStore) UserByLogin(ctx context.Context, login string) (*store.User, error) {
	return m.find(func(u *store.User) bool {
		return strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login)
	})
}

func (m *MockUserStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, u := range m.users {
		if u.ID == id {
			u.LastLogin = &at
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *MockUserStore) exists(match func(*store.User) bool) (bool, error) {
	_, err := m.find(match)
	if err == store.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MockUserStore) find(match func(*store.User) bool) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}
