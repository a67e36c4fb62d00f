// Package syncclient mirrors timer commands to the companion background service.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// HeaderClientID carries the per-instance client identifier.
const HeaderClientID = "X-Client-Id"

// Companion timer routes.
const (
	PathStart            = "/api/timer/start"
	PathPause            = "/api/timer/pause"
	PathResume           = "/api/timer/resume"
	PathStop             = "/api/timer/stop"
	PathComplete         = "/api/timer/complete"
	PathStatus           = "/api/timer/status"
	PathTestNotification = "/api/timer/test-notification"
	PathTrayStatus       = "/api/timer/tray-status"
)

// ErrClosed is returned after Cleanup.
var ErrClosed = errors.New("background sync client is closed")

// StartRequest is the body of the start verb.
type StartRequest struct {
	SessionType     model.SessionType `json:"sessionType"`
	PlannedDuration int               `json:"plannedDuration"`
	TaskID          string            `json:"taskId,omitempty"`
	CategoryID      string            `json:"categoryId,omitempty"`
}

// CompleteRequest is the body of the complete verb.
type CompleteRequest struct {
	QualityRating *int   `json:"qualityRating,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Status is the companion's view of one client's timer.
type Status struct {
	IsRunning       bool              `json:"isRunning"`
	IsPaused        bool              `json:"isPaused"`
	SessionType     model.SessionType `json:"sessionType,omitempty"`
	PlannedDuration int               `json:"plannedDuration"`
	RemainingTime   int               `json:"remainingTime"`
	StartTime       *time.Time        `json:"startTime,omitempty"`
	SessionID       string            `json:"sessionId,omitempty"`
}

// TrayStatus is the display-only summary across all clients.
type TrayStatus struct {
	ActiveTimers  int               `json:"activeTimers"`
	IsRunning     bool              `json:"isRunning"`
	IsPaused      bool              `json:"isPaused"`
	SessionType   model.SessionType `json:"sessionType,omitempty"`
	RemainingTime int               `json:"remainingTime"`
	Label         string            `json:"label"`
}

// Client is the Background Sync Client.
type Client struct {
	transport *api.Transport
	clientID  string
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
}

// New creates a client with a fresh client id.
func New(t *api.Transport, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		transport: t,
		clientID:  NewClientID(),
		logger:    logging.OrNop(logger),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewWithID creates a client that speaks for an existing client id, so another process
// can query a known mirror. An empty id falls back to a fresh one.
func NewWithID(t *api.Transport, id string, logger *zap.Logger) *Client {
	c := New(t, logger)
	if id != "" {
		c.clientID = id
	}
	return c
}

var idCounter atomic.Int64

// NewClientID returns an id of the form client_<number>_<base36>.
// The number combines wall-clock milliseconds with a process-local counter.
func NewClientID() string {
	n := time.Now().UnixMilli() + idCounter.Add(1)
	suffix := strconv.FormatInt(rand.Int64N(36*36*36*36*36*36), 36)
	for len(suffix) < 6 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("client_%d_%s", n, suffix)
}

// ClientID returns the per-instance identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Start mirrors startTimer.
func (c *Client) Start(ctx context.Context, req StartRequest) (Status, error) {
	var out Status
	err := c.verb(ctx, "start", PathStart, req, &out)
	return out, err
}

// Pause mirrors pauseTimer.
func (c *Client) Pause(ctx context.Context) (Status, error) {
	var out Status
	err := c.verb(ctx, "pause", PathPause, nil, &out)
	return out, err
}

// Resume mirrors resumeTimer.
func (c *Client) Resume(ctx context.Context) (Status, error) {
	var out Status
	err := c.verb(ctx, "resume", PathResume, nil, &out)
	return out, err
}

// Stop mirrors stopTimer.
func (c *Client) Stop(ctx context.Context) (Status, error) {
	var out Status
	err := c.verb(ctx, "stop", PathStop, nil, &out)
	return out, err
}

// Complete mirrors completeSession.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (Status, error) {
	var out Status
	err := c.verb(ctx, "complete", PathComplete, req, &out)
	return out, err
}

// Status fetches the companion's view of this client's timer.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.call(ctx, api.Call{
		Method:         http.MethodGet,
		Path:           PathStatus,
		Header:         c.header(),
		Verb:           "get status",
		FailureMessage: "Failed to get background timer status",
	}, &out)
	return out, err
}

// TestNotification asks the companion to show a test notification.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.call(ctx, api.Call{
		Method:         http.MethodPost,
		Path:           PathTestNotification,
		Verb:           "test notification",
		FailureMessage: "Failed to send test notification",
	}, nil)
}

// TrayStatus fetches the tray summary. It is not client scoped.
func (c *Client) TrayStatus(ctx context.Context) (TrayStatus, error) {
	var out TrayStatus
	err := c.call(ctx, api.Call{
		Method:         http.MethodGet,
		Path:           PathTrayStatus,
		Verb:           "get tray status",
		FailureMessage: "Failed to get tray status",
	}, &out)
	return out, err
}

// Cleanup cancels in-flight requests and releases the client id. Safe to call repeatedly.
func (c *Client) Cleanup() {
	c.once.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.logger.Debug("background sync client cleaned up", zap.String("client_id", c.clientID))
	})
}

func (c *Client) verb(ctx context.Context, verb, path string, body, out any) error {
	return c.call(ctx, api.Call{
		Method:         http.MethodPost,
		Path:           path,
		Body:           body,
		Header:         c.header(),
		Verb:           verb,
		FailureMessage: fmt.Sprintf("Failed to %s background timer", verb),
	}, out)
}

func (c *Client) call(ctx context.Context, call api.Call, out any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := mergeCancel(ctx, c.ctx)
	defer cancel()
	return c.transport.Do(ctx, call, out)
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set(HeaderClientID, c.clientID)
	return h
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(ctx, base context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(base, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
