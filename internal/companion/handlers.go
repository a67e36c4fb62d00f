package companion

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/review"
	"github.com/verte-zerg/focustimer/internal/store"
	"github.com/verte-zerg/focustimer/internal/syncclient"
	"github.com/verte-zerg/focustimer/internal/timer"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func newSessionID() string {
	return uuid.New().String()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStart(c echo.Context) error {
	var req syncclient.StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	st, err := s.timers.Start(clientID(c), req)
	switch {
	case errors.Is(err, timer.ErrInvalidDuration):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, timer.ErrSessionActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, api.OK(st))
}

func (s *Server) handlePause(c echo.Context) error {
	return c.JSON(http.StatusOK, api.OK(s.timers.Pause(clientID(c))))
}

func (s *Server) handleResume(c echo.Context) error {
	return c.JSON(http.StatusOK, api.OK(s.timers.Resume(clientID(c))))
}

func (s *Server) handleStop(c echo.Context) error {
	return c.JSON(http.StatusOK, api.OK(s.timers.Stop(clientID(c))))
}

func (s *Server) handleComplete(c echo.Context) error {
	var req syncclient.CompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, api.OK(s.timers.Complete(clientID(c), req)))
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, api.OK(s.timers.Status(clientID(c))))
}

func (s *Server) handleTestNotification(c echo.Context) error {
	s.sink.Notify(notify.Notification{
		Family: model.FamilySessionComplete,
		Title:  "Test notification",
		Body:   "Notifications are working",
		At:     s.clock.Now(),
	})
	return c.JSON(http.StatusOK, api.OK(map[string]bool{"sent": true}))
}

func (s *Server) handleTrayStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, api.OK(s.timers.Tray()))
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req api.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !req.SessionType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown session type")
	}
	if req.PlannedDuration <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, timer.ErrInvalidDuration.Error())
	}
	now := s.clock.Now()
	sess := model.Session{
		ID:              s.newID(),
		LocalID:         req.LocalID,
		TaskID:          req.TaskID,
		CategoryID:      req.CategoryID,
		SessionType:     req.SessionType,
		StartTime:       req.StartTime,
		PlannedDuration: req.PlannedDuration,
		CreatedAt:       now,
	}
	if sess.StartTime.IsZero() {
		sess.StartTime = now
	}
	if err := s.store.CreateFocusSession(c.Request().Context(), clientID(c), sess); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, api.OK(sess))
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.store.GetFocusSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "focus session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.OK(sess))
}

func (s *Server) handleCompleteSession(c echo.Context) error {
	var req api.CompleteSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.QualityRating != nil && (*req.QualityRating < 1 || *req.QualityRating > 5) {
		return echo.NewHTTPError(http.StatusBadRequest, "quality rating must be from 1 to 5")
	}
	err := s.store.CompleteFocusSession(c.Request().Context(), c.Param("id"), store.Completion{
		QualityRating:  req.QualityRating,
		Notes:          req.Notes,
		ActualDuration: req.ActualDuration,
		CompletedAt:    s.clock.Now(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "focus session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.OK(nil))
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	prefs := model.DefaultPreferences()
	raw, ok, err := s.store.Get(notify.PreferencesKey)
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
			s.logger.Warn("stored notification preferences are corrupt, serving defaults", zap.Error(err))
			prefs = model.DefaultPreferences()
		}
	}
	return c.JSON(http.StatusOK, api.OK(prefs))
}

func (s *Server) handlePutPreferences(c echo.Context) error {
	var prefs model.NotificationPreferences
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := s.store.Set(notify.PreferencesKey, string(data)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.OK(prefs))
}

func (s *Server) handleSubmitReview(c echo.Context) error {
	var resp model.ReviewResponse
	if err := c.Bind(&resp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	prompt, ok := review.PromptFor(resp.PromptType)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown prompt type")
	}
	if err := review.ValidateAnswers(prompt, resp.Answers); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if resp.CompletedAt.IsZero() {
		resp.CompletedAt = s.clock.Now()
	}
	if _, err := s.store.InsertReview(c.Request().Context(), resp); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, api.OK(nil))
}
