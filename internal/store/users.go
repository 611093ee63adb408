package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.created_at, u.last_login`

const userAggregates = `(SELECT COUNT(*) FROM summary_history h WHERE h.user_id = u.id) AS summary_count,
	(SELECT COALESCE(SUM(h.original_word_count), 0) FROM summary_history h WHERE h.user_id = u.id) AS total_words`

// CreateUser inserts a new user. The email is stored lowercased.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	user := &User{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (:username, :email, :password_hash, :created_at)`, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %s: %w", user.Username, ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	user.ID = id
	return user, nil
}

// UsernameTaken reports whether a username exists, ignoring case
func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE lower(username) = lower(?)`, strings.TrimSpace(username))
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

// EmailTaken reports whether an email exists, ignoring case
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE lower(email) = lower(?)`, strings.TrimSpace(email))
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

// UserByID loads a user
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

// UserByLogin finds a user whose username or email matches login, ignoring case
func (s *Store) UserByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(login)
	var user User
	err := s.db.GetContext(ctx, &user, `
		SELECT `+userColumns+` FROM users u
		WHERE lower(u.username) = lower(?) OR lower(u.email) = lower(?)
		ORDER BY u.id LIMIT 1`, login, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user by login: %w", err)
	}
	return &user, nil
}

// TouchLastLogin records a successful login
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireAffected(res)
}

// SetPassword replaces a user's password hash
func (s *Store) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

// CountUsers returns the number of users
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListUsers returns every user with summary count and words processed, newest first
func (s *Store) ListUsers(ctx context.Context) ([]UserStats, error) {
	users := []UserStats{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`, `+userAggregates+`
		FROM users u
		ORDER BY u.created_at DESC, u.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].IsActive = users[i].LastLogin != nil
	}
	return users, nil
}

// UserStatsByID returns one user with aggregate figures
func (s *Store) UserStatsByID(ctx context.Context, id int64) (*UserStats, error) {
	var user UserStats
	err := s.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`, `+userAggregates+`
		FROM users u
		WHERE u.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user stats %d: %w", id, err)
	}
	user.IsActive = user.LastLogin != nil
	return &user, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
