// Package auth implements accounts, sessions, API keys and Telegram Mini-App login.
package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

const (
	// SessionTTL is the validity window of a session token.
	SessionTTL = 7 * 24 * time.Hour
	// MaxSessionsPerUser is the number of sessions a user keeps after logging in.
	MaxSessionsPerUser = 3
)

// Option configures the service.
type Option func(*Service)

// WithBotToken sets the Telegram bot token used to verify initData.
func WithBotToken(token string) Option {
	return func(s *Service) { s.botToken = token }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// Service authenticates users.
type Service struct {
	store    *store.Store
	botToken string
	now      func() time.Time
	log      zerolog.Logger

	newAPIKey func() (string, error)
}

// NewService instantiates and returns a new service.
func NewService(s *store.Store, opts ...Option) *Service {
	service := &Service{
		store:     s,
		now:       time.Now,
		log:       zerolog.Nop(),
		newAPIKey: NewAPIKey,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.botToken == "" {
		service.log.Warn().Msg("no telegram bot token configured, telegram initData is trusted without verification")
	}
	return service
}

// Register creates a user with a hashed password and a fresh API key.
func (s *Service) Register(username, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.Validation("username and password are required")
	}

	apiKey, err := s.newAPIKey()
	if err != nil {
		return nil, apperror.Internal(err, "generating api key")
	}
	user := &store.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  HashPassword(password),
		APIKey:    apiKey,
		CreatedAt: s.timestamp(),
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, errors.Wrap(err, "creating user")
	}
	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

// Login checks credentials and issues a session.
func (s *Service) Login(username, password string) (*store.User, *store.Session, error) {
	if username == "" || password == "" {
		return nil, nil, apperror.Validation("username and password are required")
	}
	user, err := s.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, nil, apperror.Auth("invalid credentials")
		}
		return nil, nil, err
	}
	// Telegram users have no password and cannot log in this way.
	if user.Password == "" || subtle.ConstantTimeCompare([]byte(user.Password), []byte(HashPassword(password))) != 1 {
		return nil, nil, apperror.Auth("invalid credentials")
	}

	session, err := s.issueSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// TelegramAuth verifies Mini-App initData, finds or creates the matching user and issues a session.
func (s *Service) TelegramAuth(initData string) (*store.User, *store.Session, error) {
	tgUser, err := parseInitData(initData, s.botToken)
	if err != nil {
		return nil, nil, err
	}

	userID := telegramUserID(tgUser.ID)
	user, created, err := s.store.FindOrCreateUser(userID, func() (*store.User, error) {
		apiKey, err := s.newAPIKey()
		if err != nil {
			return nil, apperror.Internal(err, "generating api key")
		}
		return &store.User{
			ID:         userID,
			Username:   userID,
			APIKey:     apiKey,
			TelegramID: tgUser.ID,
			FirstName:  tgUser.FirstName,
			LastName:   tgUser.LastName,
			CreatedAt:  s.timestamp(),
		}, nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "finding telegram user")
	}
	if created {
		s.log.Info().Str("user_id", user.ID).Str("telegram_username", tgUser.Username).Msg("telegram user created")
	}

	session, err := s.issueSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// VerifySession returns the user owning a live session token.
func (s *Service) VerifySession(token string) (*store.User, error) {
	user, _, err := s.store.ResolveSession(token, s.timestamp())
	return user, err
}

// Logout deletes a session.
func (s *Service) Logout(token string) error {
	if token == "" {
		return apperror.Auth("no session token")
	}
	return s.store.DeleteSession(token)
}

// GetAPIKey returns the API key of a user.
func (s *Service) GetAPIKey(username string) (string, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return "", err
	}
	return user.APIKey, nil
}

// RegenerateAPIKey rotates the API key of a user.
func (s *Service) RegenerateAPIKey(username string) (string, error) {
	apiKey, err := s.newAPIKey()
	if err != nil {
		return "", apperror.Internal(err, "generating api key")
	}
	if _, err := s.store.SetUserAPIKey(username, apiKey); err != nil {
		return "", err
	}
	return apiKey, nil
}

// ResolveAPIKey returns the user owning an API key.
func (s *Service) ResolveAPIKey(apiKey string) (*store.User, error) {
	if apiKey == "" {
		return nil, apperror.Auth("api key required")
	}
	user, err := s.store.GetUserByAPIKey(apiKey)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Auth("invalid api key")
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issueSession(userID string) (*store.Session, error) {
	now := s.timestamp()
	token, err := newSessionToken(userID, now)
	if err != nil {
		return nil, apperror.Internal(err, "generating session token")
	}
	session := &store.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := s.store.CreateSession(&store.CreateSessionRequest{Session: session, MaxPerUser: MaxSessionsPerUser}); err != nil {
		return nil, errors.Wrap(err, "storing session")
	}
	return session, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
