package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tgrelay/pkg/logger"
)

// StatusSource reports what the relay currently holds.
type StatusSource interface {
	// Conversations is the number of live conversations.
	Conversations() int

	// Model is the completion model in use.
	Model() string

	// Windows are the user and history context windows.
	Windows() (user, history int)
}

// Server is the status API server.
type Server struct {
	config  Config
	status  StatusSource
	metrics http.Handler
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server. metrics may be nil, in which case
// /metrics is not served.
func NewServer(config Config, status StatusSource, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		status:  status,
		metrics: metrics,
		logger:  log,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/status", s.handleStatus)
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
