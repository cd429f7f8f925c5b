// Package server exposes the watcher over HTTP for external schedulers.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rohankatakam/filewatch/internal/watcher"
	"github.com/sirupsen/logrus"
)

// Runner performs one watch run
type Runner interface {
	Run(ctx context.Context) watcher.Result
}

// Pinger reports whether the checkpoint store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server
type Options struct {
	Addr         string
	RunTimeout   time.Duration
	PingTimeout  time.Duration
	Metrics      http.Handler // nil disables /metrics
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps a fiber app serving the watch endpoints
type Server struct {
	app    *fiber.App
	opts   Options
	runner Runner
	store  Pinger
	logger *logrus.Logger
}

// New builds the server and registers its routes
func New(opts Options, runner Runner, store Pinger, logger *logrus.Logger) *Server {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}

	s := &Server{
		opts:   opts,
		runner: runner,
		store:  store,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "filewatch",
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")
	api.Get("/watch", s.watch)
	api.Post("/watch", s.watch)

	s.app.Get("/healthz", s.health)

	if s.opts.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.opts.Metrics))
	}
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on the configured address
func (s *Server) Listen() error {
	s.logger.WithField("addr", s.opts.Addr).Info("HTTP server listening")
	return s.app.Listen(s.opts.Addr)
}

// Shutdown stops accepting connections and waits for in-flight runs
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) watch(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.RunTimeout)
	defer cancel()

	res := s.runner.Run(ctx)

	status := fiber.StatusOK
	if !res.OK {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(res)
}

type healthResponse struct {
	OK    bool   `json:"ok"`
	Store string `json:"store"`
	Error string `json:"error,omitempty"`
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.PingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(healthResponse{
			OK:    false,
			Store: "unreachable",
			Error: err.Error(),
		})
	}
	return c.JSON(healthResponse{OK: true, Store: "ok"})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.WithFields(logrus.Fields{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   c.Response().StatusCode(),
		"duration": time.Since(start).String(),
	}).Debug("request")
	return err
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"ok": false, "error": err.Error()})
}
