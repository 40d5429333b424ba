package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollranking/internal/poll"
	"pollranking/internal/store"
	"pollranking/internal/token"
)

type fakeStats struct {
	counts  map[string]int
	stopped bool
}

func (f *fakeStats) ConnectionCount(pollID string) int { return f.counts[pollID] }
func (f *fakeStats) Stats() map[string]int {
	return map[string]int{"total_connections": 3, "active_polls": 1}
}
func (f *fakeStats) IsRunning() bool { return !f.stopped }

type failingHealth struct{ err error }

func (f failingHealth) HealthCheck(context.Context) error { return f.err }

type fixture struct {
	handler http.Handler
	svc     *poll.Service
	signer  *token.Signer
	stats   *fakeStats
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemoryStore(logger)
	t.Cleanup(func() { st.Close() })

	svc := poll.NewService(st, time.Hour, logger)
	signer, err := token.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "pollranking-test", time.Hour)
	require.NoError(t, err)

	stats := &fakeStats{counts: map[string]int{}}
	return &fixture{
		handler: NewRouter(svc, signer, stats, st, nil, logger),
		svc:     svc,
		signer:  signer,
		stats:   stats,
	}
}

func (f *fixture) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCreatePoll(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/polls", `{"topic":"lunch","votesPerVoter":2,"name":" Alice "}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decode[CredentialResponse](t, w)
	require.NotNil(t, resp.Poll)
	assert.Equal(t, "lunch", resp.Poll.Topic)
	assert.False(t, resp.Poll.HasStarted)
	assert.Empty(t, resp.Poll.Participants)
	assert.Empty(t, resp.Poll.Nominations)

	cred, err := f.signer.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Poll.ID, cred.PollID)
	assert.Equal(t, resp.Poll.AdminID, cred.ParticipantID)
	assert.Equal(t, "Alice", cred.Name)
}

func TestCreatePoll_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"topic":`},
		{"blank topic", `{"topic":"  ","votesPerVoter":2,"name":"Alice"}`},
		{"too many votes", `{"topic":"lunch","votesPerVoter":6,"name":"Alice"}`},
		{"missing name", `{"topic":"lunch","votesPerVoter":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/polls", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestJoinPoll(t *testing.T) {
	f := newFixture(t)
	created, _, err := f.svc.CreatePoll(context.Background(), "lunch", 2, "Alice")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/polls/join", `{"pollID":"`+created.ID+`","name":"Bob"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[CredentialResponse](t, w)
	cred, err := f.signer.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, cred.PollID)
	assert.NotEqual(t, created.AdminID, cred.ParticipantID)
	assert.Equal(t, "Bob", cred.Name)
	assert.Empty(t, resp.Poll.Participants, "joining only mints an identity")
}

func TestJoinPoll_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/polls/join", `{"pollID":"does-not-exist","name":"Bob"}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/polls/join", `{"pollID":"bad.id","name":"Bob"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejoinPoll(t *testing.T) {
	f := newFixture(t)
	created, adminID, err := f.svc.CreatePoll(context.Background(), "lunch", 2, "Alice")
	require.NoError(t, err)

	tok, err := f.signer.Issue(created.ID, adminID, "Alice")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/api/polls/rejoin", "", tok)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[PollResponse](t, w)
		assert.Equal(t, map[string]string{adminID: "Alice"}, resp.Poll.Participants)
	}
}

func TestRejoinPoll_Unauthorized(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/polls/rejoin", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/polls/rejoin", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRejoinPoll_ExpiredPoll(t *testing.T) {
	f := newFixture(t)

	tok, err := f.signer.Issue("gone", "user-1", "Alice")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/polls/rejoin", "", tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPoll(t *testing.T) {
	f := newFixture(t)
	created, _, err := f.svc.CreatePoll(context.Background(), "lunch", 2, "Alice")
	require.NoError(t, err)
	f.stats.counts[created.ID] = 2

	w := f.do(t, http.MethodGet, "/api/polls/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[PollResponse](t, w)
	assert.Equal(t, created.ID, resp.Poll.ID)
	assert.Equal(t, 2, resp.ConnectionCount)

	w = f.do(t, http.MethodGet, "/api/polls/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Connections["total_connections"])

	f.stats.stopped = true
	w = f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_StoreDown(t *testing.T) {
	h := NewHealthHandler(failingHealth{err: errors.New("disk gone")}, &fakeStats{})
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Store, "disk gone")
}

func TestMiddleware(t *testing.T) {
	f := newFixture(t)

	t.Run("request id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/health", "", "")
		assert.Len(t, w.Header().Get("X-Request-ID"), 8)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc123")
		w = httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		assert.Equal(t, "abc123", w.Header().Get("X-Request-ID"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := f.do(t, http.MethodOptions, "/api/polls", "", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("recovery", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("logger records status", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Contains(t, buf.String(), "status=418")
		assert.Contains(t, buf.String(), "path=/x")
	})
}

func TestRouter_WebSocketUpgradeThroughMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore(logger)
	t.Cleanup(func() { st.Close() })

	upgrader := gorillaws.Upgrader{}
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(gorillaws.TextMessage, []byte("hello"))
	})

	server := httptest.NewServer(NewRouter(poll.NewService(st, time.Hour, logger), nil, &fakeStats{}, st, ws, logger))
	defer server.Close()

	conn, resp, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStatusWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	assert.Same(t, rec, sw.Unwrap())

	// recorders cannot be hijacked; the error must surface instead of a panic
	_, _, err := sw.Hijack()
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, sw.status)
}
