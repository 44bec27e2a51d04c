package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profiles map[uuid.UUID]*models.Profile

func (p profiles) Profile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	if prof, ok := p[id]; ok {
		return prof, nil
	}
	return nil, errors.New("not found")
}

// identityEcho writes the caller's username, or "anonymous".
var identityEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id.Anonymous() {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(id.Username))
})

func TestAuthenticate(t *testing.T) {
	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)
	p := &models.Profile{ID: uuid.New(), Username: "brienne", Moderator: true}
	logger, _ := test.NewNullLogger()
	h := Authenticate(sessions, profiles{p.ID: p}, logger)(identityEcho)

	token, err := sessions.CreateJWT(p.ID)
	require.NoError(t, err)
	stranger, err := sessions.CreateJWT(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"no token", func(*http.Request) {}, "anonymous"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token}) }, "brienne"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "brienne"},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "anonymous"},
		{"unknown profile", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+stranger) }, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user/current", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/tea", entry.Data["path"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRateLimiter(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rl := NewRateLimiter(2, logger)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/user/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1003"))

	now = now.Add(time.Hour)
	assert.Equal(t, http.StatusOK, call("10.0.0.3:1000"))
	rl.mu.Lock()
	assert.Len(t, rl.clients, 1)
	rl.mu.Unlock()
}
