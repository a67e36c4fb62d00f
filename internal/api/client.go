package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

// Collaborator API paths.
const (
	PathFocusSessions = "/focus-sessions"
	PathPreferences   = "/settings/notification-preferences"
	PathReviews       = "/reviews"
)

// CreateSessionRequest is the body of POST /focus-sessions.
type CreateSessionRequest struct {
	LocalID         string            `json:"localId,omitempty"`
	SessionType     model.SessionType `json:"sessionType"`
	PlannedDuration int               `json:"plannedDuration"`
	StartTime       time.Time         `json:"startTime"`
	TaskID          string            `json:"taskId,omitempty"`
	CategoryID      string            `json:"categoryId,omitempty"`
}

// CompleteSessionRequest is the body of PUT /focus-sessions/{id}.
type CompleteSessionRequest struct {
	Completed      bool   `json:"completed"`
	QualityRating  *int   `json:"qualityRating,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ActualDuration int    `json:"actualDuration"`
}

// Client talks to the collaborator storage layer.
type Client struct {
	t *Transport
}

// NewClient creates a collaborator client over t.
func NewClient(t *Transport) *Client {
	return &Client{t: t}
}

// CreateSession registers a new focus session and returns it with the server id.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (model.Session, error) {
	var out model.Session
	err := c.t.Do(ctx, Call{
		Method:         http.MethodPost,
		Path:           PathFocusSessions,
		Body:           req,
		Verb:           "create session",
		FailureMessage: "Failed to create focus session",
	}, &out)
	return out, err
}

// CompleteSession attaches completion data to the session with id.
func (c *Client) CompleteSession(ctx context.Context, id string, req CompleteSessionRequest) error {
	return c.t.Do(ctx, Call{
		Method:         http.MethodPut,
		Path:           PathFocusSessions + "/" + url.PathEscape(id),
		Body:           req,
		Verb:           "complete session",
		FailureMessage: "Failed to complete focus session",
	}, nil)
}

// GetPreferences fetches the notification preferences.
func (c *Client) GetPreferences(ctx context.Context) (model.NotificationPreferences, error) {
	var out model.NotificationPreferences
	err := c.t.Do(ctx, Call{
		Method:         http.MethodGet,
		Path:           PathPreferences,
		Verb:           "load preferences",
		FailureMessage: "Failed to load notification preferences",
	}, &out)
	return out, err
}

// PutPreferences replaces the notification preferences.
func (c *Client) PutPreferences(ctx context.Context, p model.NotificationPreferences) error {
	return c.t.Do(ctx, Call{
		Method:         http.MethodPut,
		Path:           PathPreferences,
		Body:           p,
		Verb:           "save preferences",
		FailureMessage: "Failed to save notification preferences",
	}, nil)
}

// SubmitReview forwards a review response.
func (c *Client) SubmitReview(ctx context.Context, r model.ReviewResponse) error {
	return c.t.Do(ctx, Call{
		Method:         http.MethodPost,
		Path:           PathReviews,
		Body:           r,
		Verb:           "submit review",
		FailureMessage: "Failed to submit review",
	}, nil)
}
