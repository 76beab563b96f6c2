package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/notifications"
	"bioreader/internal/preflight"
	"bioreader/internal/services"
	"bioreader/internal/workflow"
)

// Backend is the set of workflow operations the API exposes.
type Backend interface {
	ValidateOrEnroll(ctx context.Context, req workflow.Request) (workflow.Outcome, error)
	TestConnection(ctx context.Context, port string) (workflow.ConnectionReport, error)
	Initialize(ctx context.Context, port string) (device.Status, error)
	Reinitialize(ctx context.Context) (device.Status, error)
	Ports(ctx context.Context, probe bool) (workflow.PortsReport, error)
	Status() device.Status
	Busy() bool
}

// Options configures a Server.
type Options struct {
	Backend Backend
	// Events backs /api/events. Optional.
	Events *notifications.Hub
	// Preflight is evaluated on each /api/status call. Optional.
	Preflight func(ctx context.Context) preflight.Status
	// Token enables bearer authentication when set.
	Token   string
	Version string
	// LongPoll bounds how long /api/events?wait=true blocks.
	LongPoll time.Duration
	Logger   *slog.Logger
}

// Server is the local HTTP API.
type Server struct {
	opts   Options
	app    *fiber.App
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the fiber app and registers routes.
func NewServer(opts Options) *Server {
	if opts.LongPoll <= 0 {
		opts.LongPoll = 25 * time.Second
	}
	s := &Server{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "api-server")}
	s.app = fiber.New(fiber.Config{
		AppName:               "bioreader",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
	})
	s.app.Use(fiberrecover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/api/health", s.handleHealth)

	api := s.app.Group("/api", s.authenticate)
	api.Get("/status", s.handleStatus)
	api.Post("/validate", s.handleValidate)
	api.Post("/device/initialize", s.handleInitialize)
	api.Post("/device/reinitialize", s.handleReinitialize)
	api.Post("/device/test", s.handleTest)
	api.Get("/ports", s.handlePorts)
	api.Get("/events", s.handleEvents)
	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on bind and serves in the background until Stop is called or
// ctx ends.
func (s *Server) Start(ctx context.Context, bind string) error {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.app.Listener(listener); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_server_started"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.opts.Token != ""),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down. In-flight hardware jobs keep running on the
// worker.
func (s *Server) Stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return
	}
	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	_ = listener.Close()
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	if s.opts.Token == "" {
		return c.Next()
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.opts.Token {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized", Kind: "unauthorized"})
	}
	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("api request",
		logging.String("method", c.Method()),
		logging.String("path", c.Path()),
		logging.Int("status", c.Response().StatusCode()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	status, resp := Describe(err)
	if status >= fiber.StatusInternalServerError {
		logging.WarnWithContext(s.logger, "api request failed", "api_request_failed",
			logging.String("path", c.Path()),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	return c.Status(status).JSON(resp)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Version: s.opts.Version,
		PID:     os.Getpid(),
		Session: s.opts.Backend.Status(),
		Busy:    s.opts.Backend.Busy(),
	}
	if s.opts.Preflight != nil {
		st := s.opts.Preflight(c.UserContext())
		resp.Preflight = &st
	}
	return c.JSON(resp)
}

func (s *Server) handleValidate(c *fiber.Ctx) error {
	var req workflow.Request
	if err := parseBody(c, &req); err != nil {
		return err
	}
	out, err := s.opts.Backend.ValidateOrEnroll(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) handleInitialize(c *fiber.Ctx) error {
	var req PortRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := s.opts.Backend.Initialize(c.UserContext(), req.Port)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (s *Server) handleReinitialize(c *fiber.Ctx) error {
	status, err := s.opts.Backend.Reinitialize(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (s *Server) handleTest(c *fiber.Ctx) error {
	var req PortRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	report, err := s.opts.Backend.TestConnection(c.UserContext(), req.Port)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) handlePorts(c *fiber.Ctx) error {
	report, err := s.opts.Backend.Ports(c.UserContext(), c.QueryBool("probe", false))
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.opts.Events == nil {
		return c.JSON(EventsResponse{Events: []notifications.Event{}})
	}
	since, err := strconv.ParseUint(c.Query("since", "0"), 10, 64)
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "events", "since must be a non-negative integer", err)
	}
	limit := c.QueryInt("limit", 200)
	wait := c.QueryBool("wait", false)

	ctx, cancel := context.WithTimeout(c.UserContext(), s.opts.LongPoll)
	defer cancel()
	events, next, err := s.opts.Events.Fetch(ctx, since, limit, wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if events == nil {
		events = []notifications.Event{}
	}
	return c.JSON(EventsResponse{Events: events, Next: next})
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return services.Wrap(services.ErrValidation, "api", c.Path(), "invalid request body", err)
	}
	return nil
}
