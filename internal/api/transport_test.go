package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestTransport(url string, retries int) *Transport {
	return NewTransport(TransportConfig{BaseURL: url, MaxRetries: retries, Backoff: time.Millisecond})
}

func TestDoDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Test"))
		writeJSON(w, http.StatusOK, OK(map[string]int{"value": 7}))
	}))
	defer srv.Close()

	var out struct{ Value int }
	err := newTestTransport(srv.URL, 0).Do(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "/x",
		Body:   map[string]string{"a": "b"},
		Header: http.Header{"X-Test": []string{"abc"}},
		Verb:   "probe",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Value)
}

func TestDoErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		check   func(t *testing.T, err error)
		message string
	}{
		{
			name:    "non-ok status",
			status:  http.StatusBadRequest,
			body:    Fail("ignored"),
			message: "Failed to probe thing",
			check: func(t *testing.T, err error) {
				var rerr *RequestError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, http.StatusBadRequest, rerr.Status)
			},
		},
		{
			name:    "application failure",
			status:  http.StatusOK,
			body:    Fail("Session already running"),
			message: "Session already running",
			check: func(t *testing.T, err error) {
				var aerr *ApplicationError
				require.ErrorAs(t, err, &aerr)
			},
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    "not an envelope",
			message: "invalid probe response",
			check: func(t *testing.T, err error) {
				var perr *ProtocolError
				require.ErrorAs(t, err, &perr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			err := newTestTransport(srv.URL, 0).Do(context.Background(), Call{
				Method:         http.MethodGet,
				Path:           "/",
				Verb:           "probe",
				FailureMessage: "Failed to probe thing",
			}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			tt.check(t, err)
		})
	}
}

func TestNetworkErrorMessageIsUnchanged(t *testing.T) {
	tr := NewTransport(TransportConfig{
		BaseURL:    "http://companion.invalid",
		MaxRetries: -1,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("Network error")
		})},
	})
	err := tr.Do(context.Background(), Call{Method: http.MethodPost, Path: "/api/timer/start", Verb: "start"}, nil)
	require.Error(t, err)
	assert.Equal(t, "Network error", err.Error())
	assert.True(t, IsNetwork(err))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, Fail("busy"))
			return
		}
		writeJSON(w, http.StatusOK, OK(nil))
	}))
	defer srv.Close()

	require.NoError(t, newTestTransport(srv.URL, 2).Do(context.Background(), Call{Method: http.MethodGet, Path: "/", Verb: "status"}, nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRetriesPostOnlyWhenSafe(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		idempotent bool
		wantCalls  int32
	}{
		{name: "server error not retried", status: http.StatusServiceUnavailable, wantCalls: 1},
		{name: "rate limited retried", status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "idempotent verb retried", status: http.StatusServiceUnavailable, idempotent: true, wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.status, Fail("busy"))
			}))
			defer srv.Close()

			err := newTestTransport(srv.URL, 2).Do(context.Background(),
				Call{Method: http.MethodPost, Path: "/api/timer/start", Verb: "start", Idempotent: tt.idempotent}, nil)
			var rerr *RequestError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestDoDoesNotRetryPostAfterNetworkError(t *testing.T) {
	var calls atomic.Int32
	tr := NewTransport(TransportConfig{
		BaseURL:    "http://companion.invalid",
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection reset")
		})},
	})

	err := tr.Do(context.Background(), Call{Method: http.MethodPost, Path: "/api/timer/complete", Verb: "complete"}, nil)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, Fail("nope"))
	}))
	defer srv.Close()

	err := newTestTransport(srv.URL, 3).Do(context.Background(), Call{Method: http.MethodPost, Path: "/", Verb: "probe"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestTransport(srv.URL, 1).Do(context.Background(), Call{Method: http.MethodGet, Path: "/", Verb: "probe", FailureMessage: "Failed to probe"}, nil)
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientSessionsAndPreferences(t *testing.T) {
	var savedPrefs model.NotificationPreferences
	var completed CompleteSessionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /focus-sessions", func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, OK(model.Session{
			ID:              "srv-1",
			LocalID:         req.LocalID,
			SessionType:     req.SessionType,
			PlannedDuration: req.PlannedDuration,
			StartTime:       req.StartTime,
		}))
	})
	mux.HandleFunc("PUT /focus-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "srv-1", r.PathValue("id"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&completed))
		writeJSON(w, http.StatusOK, OK(nil))
	})
	mux.HandleFunc("PUT /settings/notification-preferences", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&savedPrefs))
		writeJSON(w, http.StatusOK, OK(savedPrefs))
	})
	mux.HandleFunc("GET /settings/notification-preferences", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, OK(savedPrefs))
	})
	mux.HandleFunc("POST /reviews", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Fail("review storage offline"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(newTestTransport(srv.URL, 0))
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sess, err := c.CreateSession(ctx, CreateSessionRequest{LocalID: "l-1", SessionType: model.SessionDeepWork, PlannedDuration: 50, StartTime: start})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sess.ID)
	assert.Equal(t, "l-1", sess.LocalID)

	rating := 5
	require.NoError(t, c.CompleteSession(ctx, "srv-1", CompleteSessionRequest{Completed: true, QualityRating: &rating, ActualDuration: 50}))
	assert.True(t, completed.Completed)
	assert.Equal(t, 5, *completed.QualityRating)

	prefs := model.DefaultPreferences()
	prefs.BreakReminders.Frequency = model.FrequencySmart
	require.NoError(t, c.PutPreferences(ctx, prefs))
	got, err := c.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, got)

	err = c.SubmitReview(ctx, model.ReviewResponse{PromptType: model.PromptDaily})
	assert.EqualError(t, err, "review storage offline")
}
