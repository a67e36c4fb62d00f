// Package companion implements the background companion service: per-client timer mirrors,
// the tray summary and the collaborator storage endpoints.
package companion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/store"
	"github.com/verte-zerg/focustimer/internal/syncclient"
	"github.com/verte-zerg/focustimer/internal/timer"
)

// Store is the persistence the collaborator endpoints need.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	CreateFocusSession(ctx context.Context, clientID string, sess model.Session) error
	CompleteFocusSession(ctx context.Context, id string, c store.Completion) error
	GetFocusSession(ctx context.Context, id string) (model.Session, error)
	InsertReview(ctx context.Context, resp model.ReviewResponse) (int64, error)
}

// Config holds companion server configuration.
type Config struct {
	Addr string
}

// Server is the companion HTTP service.
type Server struct {
	echo    *echo.Echo
	store   Store
	timers  *Timers
	sink    notify.Sink
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics
	config  Config
	newID   func() string
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used by the timer mirrors.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithSink sets where companion notifications go. Defaults to the logger.
func WithSink(sink notify.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithIDGenerator sets the generator for collaborator session ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// NewServer creates a companion server.
func NewServer(st Store, logger *zap.Logger, cfg Config, opts ...Option) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	logger = logging.OrNop(logger)
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7420"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   st,
		clock:   clock.Real{},
		logger:  logger,
		metrics: NewMetrics(),
		config:  cfg,
		newID:   newSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = notify.LogSink(logger)
	}
	s.timers = NewTimers(s.clock, logger.Named("mirror"), s.onFinish)

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

// Echo exposes the router, for tests and extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Timers exposes the mirror registry.
func (s *Server) Timers() *Timers {
	return s.timers
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	t := s.echo.Group("/api/timer")
	t.POST("/start", s.handleStart, requireClientID)
	t.POST("/pause", s.handlePause, requireClientID)
	t.POST("/resume", s.handleResume, requireClientID)
	t.POST("/stop", s.handleStop, requireClientID)
	t.POST("/complete", s.handleComplete, requireClientID)
	t.GET("/status", s.handleStatus, requireClientID)
	t.POST("/test-notification", s.handleTestNotification)
	t.GET("/tray-status", s.handleTrayStatus)

	s.echo.POST(api.PathFocusSessions, s.handleCreateSession)
	s.echo.GET(api.PathFocusSessions+"/:id", s.handleGetSession)
	s.echo.PUT(api.PathFocusSessions+"/:id", s.handleCompleteSession)
	s.echo.GET(api.PathPreferences, s.handleGetPreferences)
	s.echo.PUT(api.PathPreferences, s.handlePutPreferences)
	s.echo.POST(api.PathReviews, s.handleSubmitReview)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting companion server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down companion server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		duration := time.Since(start)
		status := c.Response().Status
		s.metrics.RecordRequest(c.Path(), status, duration.Seconds())
		s.logger.Debug("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// handleError renders every failure in the shared envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	if err := c.JSON(status, api.Fail(message)); err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

func (s *Server) onFinish(clientID string, c timer.Completion) {
	s.metrics.RecordFinished(string(c.Session.SessionType))
	s.sink.Notify(notify.Notification{
		Family: model.FamilySessionComplete,
		Title:  "Session complete",
		Body:   fmt.Sprintf("%s session finished", c.Session.SessionType),
		At:     c.EndedAt,
	})
	s.logger.Info("background timer finished",
		zap.String("client_id", clientID),
		zap.String("type", string(c.Session.SessionType)),
	)
}

func requireClientID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(syncclient.HeaderClientID) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "missing "+syncclient.HeaderClientID+" header")
		}
		return next(c)
	}
}

func clientID(c echo.Context) string {
	return c.Request().Header.Get(syncclient.HeaderClientID)
}
