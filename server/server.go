// Package server exposes the REST API of multichat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/malonaz/multichat/auth"
	"github.com/malonaz/multichat/generation"
	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/internal/logging"
	"github.com/malonaz/multichat/store"
)

const (
	maxBodyBytes    = 10 << 20
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates a new serve command.
func NewServeCmd(config *configuration.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the multichat REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(&logging.Opts{Level: config.Logging.Level, Format: config.Logging.Format})
			if err != nil {
				return errors.Wrap(err, "instantiating logger")
			}
			s, err := store.Open(config.Database.Driver, config.Database.Path, store.WithLogger(log))
			if err != nil {
				return errors.Wrap(err, "opening store")
			}
			defer s.Close()

			server := New(config, s, log)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&config.Port, "port", "p", config.Port, "Port to serve on")
	cmd.Flags().StringVar(&config.Database.Path, "database", config.Database.Path, "Path of the database")
	cmd.Flags().StringVar(&config.Database.Driver, "driver", config.Database.Driver, "Database driver, json or sqlite")
	return cmd
}

// Server serves the REST API.
type Server struct {
	config     *configuration.Config
	store      *store.Store
	auth       *auth.Service
	generation *generation.Service
	upstream   *http.Client
	limiter    *keyLimiter
	log        zerolog.Logger
	now        func() time.Time
}

// New instantiates and returns a new server.
func New(config *configuration.Config, s *store.Store, log zerolog.Logger) *Server {
	upstream := &http.Client{Timeout: config.Timeout()}
	return &Server{
		config: config,
		store:  s,
		auth: auth.NewService(s,
			auth.WithBotToken(config.TelegramBotToken),
			auth.WithLogger(log.With().Str("component", "auth").Logger()),
		),
		generation: generation.NewService(s, &generation.Opts{
			PollinationsURL:    config.Generation.PollinationsURL,
			StableDiffusionURL: config.Generation.StableDiffusionURL,
			Width:              config.Generation.Width,
			Height:             config.Generation.Height,
			HistoryWindow:      config.Generation.HistoryWindow,
			HTTPClient:         upstream,
			Logger:             log.With().Str("component", "generation").Logger(),
		}),
		upstream: upstream,
		limiter:  newKeyLimiter(config.Gateway.RequestsPerSecond(), config.Gateway.RateLimitBurst),
		log:      log,
		now:      time.Now,
	}
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)

	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/telegram", s.handleTelegramAuth)
	mux.HandleFunc("/api/auth/verify-session", s.handleVerifySession)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)

	mux.HandleFunc("/api/chats", s.handleCreateChat)
	mux.HandleFunc("/api/chats/", s.handleChatRoutes)

	mux.HandleFunc("/api/user/", s.withSession(s.handleUserRoutes))
	mux.HandleFunc("/api/keys", s.withSession(s.handleAPIKeys))

	mux.HandleFunc("/api/generate/image", s.handleGenerateImage)
	mux.HandleFunc("/api/generate/video", s.handleGenerateVideo)

	mux.HandleFunc("/api/v1/chat/completions", s.withAPIKey(s.handleChatCompletions))
	mux.HandleFunc("/api/v1/images/generate", s.withAPIKey(s.handleV1Images))
	mux.HandleFunc("/api/v1/videos/generate", s.withAPIKey(s.handleV1Videos))
	mux.HandleFunc("/api/v1/models", s.withAPIKey(s.handleModels))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return s.withRecovery(s.withRequestID(s.withLogging(withCORS(mux))))
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", httpServer.Addr).Msg("server starting")
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}
