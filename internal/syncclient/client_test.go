package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/model"
)

type recorded struct {
	method   string
	path     string
	clientID string
	body     map[string]any
}

type fakeCompanion struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	env      any
}

func (f *fakeCompanion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method:   r.Method,
		path:     r.URL.Path,
		clientID: r.Header.Get(HeaderClientID),
		body:     body,
	})
	status, env := f.status, f.env
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	if env == nil {
		env = api.OK(Status{IsRunning: true, RemainingTime: 1500})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func (f *fakeCompanion) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(api.NewTransport(api.TransportConfig{BaseURL: srv.URL, MaxRetries: -1}), nil)
	t.Cleanup(c.Cleanup)
	return c
}

func TestClientIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^client_\d+_[0-9a-z]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewClientID()
		assert.Regexp(t, re, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestVerbsSendClientIDAndBody(t *testing.T) {
	fc := &fakeCompanion{}
	c := newTestClient(t, fc)
	ctx := context.Background()

	st, err := c.Start(ctx, StartRequest{SessionType: model.SessionDeepWork, PlannedDuration: 25, TaskID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1500, st.RemainingTime)
	req := fc.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, PathStart, req.path)
	assert.Equal(t, c.ClientID(), req.clientID)
	assert.Equal(t, "deep_work", req.body["sessionType"])
	assert.Equal(t, float64(25), req.body["plannedDuration"])
	assert.Equal(t, "t1", req.body["taskId"])
	assert.NotContains(t, req.body, "categoryId")

	verbs := []struct {
		path string
		call func() error
	}{
		{PathPause, func() error { _, err := c.Pause(ctx); return err }},
		{PathResume, func() error { _, err := c.Resume(ctx); return err }},
		{PathStop, func() error { _, err := c.Stop(ctx); return err }},
	}
	for _, v := range verbs {
		require.NoError(t, v.call())
		req := fc.last()
		assert.Equal(t, v.path, req.path)
		assert.Equal(t, c.ClientID(), req.clientID)
		assert.Nil(t, req.body)
	}

	rating := 3
	_, err = c.Complete(ctx, CompleteRequest{QualityRating: &rating, Notes: "ok"})
	require.NoError(t, err)
	req = fc.last()
	assert.Equal(t, PathComplete, req.path)
	assert.Equal(t, float64(3), req.body["qualityRating"])

	_, err = c.Status(ctx)
	require.NoError(t, err)
	req = fc.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, c.ClientID(), req.clientID)
}

func TestUnscopedQueriesOmitClientID(t *testing.T) {
	fc := &fakeCompanion{}
	c := newTestClient(t, fc)
	ctx := context.Background()

	require.NoError(t, c.TestNotification(ctx))
	assert.Equal(t, PathTestNotification, fc.last().path)
	assert.Empty(t, fc.last().clientID)

	_, err := c.TrayStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, fc.last().method)
	assert.Equal(t, PathTrayStatus, fc.last().path)
	assert.Empty(t, fc.last().clientID)
}

func TestVerbFailureMessages(t *testing.T) {
	fc := &fakeCompanion{status: http.StatusInternalServerError, env: api.Fail("boom")}
	c := newTestClient(t, fc)
	ctx := context.Background()

	_, err := c.Pause(ctx)
	assert.EqualError(t, err, "Failed to pause background timer")
	_, err = c.Start(ctx, StartRequest{SessionType: model.SessionBreak, PlannedDuration: 10})
	assert.EqualError(t, err, "Failed to start background timer")
	_, err = c.Complete(ctx, CompleteRequest{})
	var rerr *api.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "complete", rerr.Verb)
}

func TestApplicationErrorMessage(t *testing.T) {
	fc := &fakeCompanion{env: api.Fail("Timer is not running")}
	c := newTestClient(t, fc)

	_, err := c.Resume(context.Background())
	assert.EqualError(t, err, "Timer is not running")
	var aerr *api.ApplicationError
	assert.ErrorAs(t, err, &aerr)
}

func TestNetworkErrorPropagates(t *testing.T) {
	tr := api.NewTransport(api.TransportConfig{
		BaseURL:    "http://companion.invalid",
		MaxRetries: -1,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("Network error")
		})},
	})
	c := New(tr, nil)
	defer c.Cleanup()

	_, err := c.Start(context.Background(), StartRequest{SessionType: model.SessionDeepWork, PlannedDuration: 25})
	assert.EqualError(t, err, "Network error")
	var nerr *api.NetworkError
	assert.ErrorAs(t, err, &nerr)
}

func TestCleanupIsIdempotentAndCancelsInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer close(release)

	c := New(api.NewTransport(api.TransportConfig{BaseURL: srv.URL, MaxRetries: -1}), nil)
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Status(context.Background())
		errCh <- err
	}()

	<-entered
	c.Cleanup()
	c.Cleanup()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}

	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestNewWithIDReusesKnownID(t *testing.T) {
	fc := &fakeCompanion{}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	tr := api.NewTransport(api.TransportConfig{BaseURL: srv.URL})

	c := NewWithID(tr, "client_1_abcdef", nil)
	t.Cleanup(c.Cleanup)
	_, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client_1_abcdef", fc.last().clientID)

	fresh := NewWithID(tr, "", nil)
	t.Cleanup(fresh.Cleanup)
	assert.NotEmpty(t, fresh.ClientID())
}
