// Package auth handles accounts, password hashing and cookie sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/pep299/smartnotes/internal/store"
)

const (
	// SessionName is the cookie holding the signed session
	SessionName = "smartnotes_session"

	userIDKey      = "user_id"
	rememberMaxAge = 30 * 24 * 60 * 60

	minUsernameLength = 3
	minPasswordLength = 6
)

var (
	// ErrInvalidCredentials is returned when login and password do not match an account
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	// ErrNoSession is returned when the request carries no logged-in user
	ErrNoSession = errors.New("not logged in")
)

// ValidationError reports a user input problem. Message is shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UserStore is the account storage used by Service
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UserByID(ctx context.Context, id int64) (*store.User, error)
	UserByLogin(ctx context.Context, login string) (*store.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Registration is the sign-up form
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate trims the fields, lowercases the email and checks length rules
func (r *Registration) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if r.Username == "" || r.Email == "" || r.Password == "" {
		return &ValidationError{Message: "All fields are required"}
	}
	if len([]rune(r.Username)) < minUsernameLength {
		return &ValidationError{Message: fmt.Sprintf("Username must be at least %d characters", minUsernameLength)}
	}
	if len(r.Password) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}
	return nil
}

// HashPassword returns a bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Service registers users, checks credentials and manages session cookies
type Service struct {
	users         UserStore
	sessions      *sessions.CookieStore
	adminUsername string
	now           func() time.Time
}

// NewService creates a Service signing cookies with secret
func NewService(users UserStore, secret, adminUsername string) *Service {
	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Service{
		users:         users,
		sessions:      cookies,
		adminUsername: adminUsername,
		now:           time.Now,
	}
}

// Register validates the form and creates the account
func (s *Service) Register(ctx context.Context, reg Registration) (*store.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.users.UsernameTaken(ctx, reg.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &ValidationError{Message: "Username already exists"}
	}

	taken, err = s.users.EmailTaken(ctx, reg.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &ValidationError{Message: "Email already registered"}
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, reg.Username, reg.Email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, &ValidationError{Message: "Username already exists"}
	}
	return user, err
}

// Authenticate checks a username or email with a password and records the login time
func (s *Service) Authenticate(ctx context.Context, login, password string) (*store.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, &ValidationError{Message: "Username/email and password are required"}
	}

	user, err := s.users.UserByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return user, nil
}

// StartSession writes the session cookie for userID. With remember the cookie lasts 30 days,
// otherwise it ends with the browser session.
func (s *Service) StartSession(w http.ResponseWriter, r *http.Request, userID int64, remember bool) error {
	session, _ := s.sessions.Get(r, SessionName)
	session.Values[userIDKey] = userID
	if remember {
		session.Options.MaxAge = rememberMaxAge
	} else {
		session.Options.MaxAge = 0
	}
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// EndSession expires the session cookie
func (s *Service) EndSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.sessions.Get(r, SessionName)
	delete(session.Values, userIDKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CurrentUser loads the user of the request's session
func (s *Service) CurrentUser(r *http.Request) (*store.User, error) {
	session, err := s.sessions.Get(r, SessionName)
	if err != nil {
		return nil, ErrNoSession
	}
	id, ok := session.Values[userIDKey].(int64)
	if !ok {
		return nil, ErrNoSession
	}

	user, err := s.users.UserByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	return user, err
}

// IsAdmin reports whether user is the configured administrator
func (s *Service) IsAdmin(user *store.User) bool {
	return user != nil && s.adminUsername != "" && user.Username == s.adminUsername
}
