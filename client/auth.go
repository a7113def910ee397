package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

// TelegramAuthTimeout bounds the automatic Telegram login.
const TelegramAuthTimeout = 10 * time.Second

// ErrLoginRequired is returned by Bootstrap when neither a stored session nor Telegram data
// could authenticate the user.
var ErrLoginRequired = errors.New("login required")

// AuthController establishes the session of the client.
type AuthController struct {
	api              *API
	sessions         *SessionFile
	telegramInitData string
	log              zerolog.Logger

	user *store.User
}

// NewAuthController instantiates and returns a new controller. telegramInitData may be empty.
func NewAuthController(api *API, sessions *SessionFile, telegramInitData string, log zerolog.Logger) *AuthController {
	return &AuthController{api: api, sessions: sessions, telegramInitData: telegramInitData, log: log}
}

// User returns the authenticated user, nil before authentication.
func (c *AuthController) User() *store.User {
	return c.user
}

// Bootstrap reuses a stored session if the server accepts it, else logs in with Telegram
// initData when available. It returns ErrLoginRequired when interactive login is needed.
func (c *AuthController) Bootstrap(ctx context.Context) (*store.User, error) {
	session, err := c.sessions.Load()
	if err != nil {
		return nil, err
	}
	if session != nil {
		c.api.SetToken(session.Token)
		user, err := c.api.VerifySession(ctx)
		if err == nil {
			c.user = user
			return user, nil
		}
		if !apperror.Is(err, apperror.KindAuth) {
			return nil, errors.Wrap(err, "verifying stored session")
		}
		c.log.Debug().Msg("stored session rejected")
		c.api.SetToken("")
		if err := c.sessions.Clear(); err != nil {
			return nil, err
		}
	}

	if c.telegramInitData != "" {
		telegramCtx, cancel := context.WithTimeout(ctx, TelegramAuthTimeout)
		defer cancel()
		user, token, err := c.api.TelegramAuth(telegramCtx, c.telegramInitData)
		if err == nil {
			if err := c.establish(user, token); err != nil {
				return nil, err
			}
			return user, nil
		}
		c.log.Warn().Err(err).Msg("telegram auto-login failed")
	}
	return nil, ErrLoginRequired
}

// Login with credentials.
func (c *AuthController) Login(ctx context.Context, username, password string) (*store.User, error) {
	user, token, err := c.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := c.establish(user, token); err != nil {
		return nil, err
	}
	return user, nil
}

// Register an account, then log into it.
func (c *AuthController) Register(ctx context.Context, username, password string) (*store.User, error) {
	if _, err := c.api.Register(ctx, username, password); err != nil {
		return nil, err
	}
	return c.Login(ctx, username, password)
}

// Logout revokes the session and forgets it locally.
func (c *AuthController) Logout(ctx context.Context) error {
	if c.api.Token() != "" {
		if err := c.api.Logout(ctx); err != nil && !apperror.Is(err, apperror.KindAuth) {
			return err
		}
	}
	c.api.SetToken("")
	c.user = nil
	return c.sessions.Clear()
}

func (c *AuthController) establish(user *store.User, token string) error {
	c.api.SetToken(token)
	c.user = user
	if err := c.sessions.Save(&Session{Token: token, UserID: user.ID, Username: user.Username}); err != nil {
		return errors.Wrap(err, "saving session")
	}
	return nil
}
