package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGFaceSwapBot/internal/models"
	"github.com/digkill/TGFaceSwapBot/internal/service"
)

type mockBroadcaster struct {
	text string
	res  service.BroadcastResult
	err  error
}

func (m *mockBroadcaster) Broadcast(_ context.Context, text string) (service.BroadcastResult, error) {
	m.text = text
	return m.res, m.err
}

type mockStats struct {
	stats models.Stats
	err   error
}

func (m *mockStats) Collect(context.Context) (models.Stats, error) {
	return m.stats, m.err
}

func newTestServer(b Broadcaster, st StatsCollector, checks ...HealthCheck) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", "admin", "secret", log, b, st, checks...).Handler()
}

func TestBroadcastRequiresAuth(t *testing.T) {
	h := newTestServer(&mockBroadcaster{}, &mockStats{})

	req := httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"message":"hi"}`))
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBroadcast(t *testing.T) {
	b := &mockBroadcaster{res: service.BroadcastResult{Sent: 3, Total: 4}}
	h := newTestServer(b, &mockStats{})

	req := httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(`{"message":"new filters"}`))
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new filters", b.text)
	var res service.BroadcastResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.BroadcastResult{Sent: 3, Total: 4}, res)
}

func TestBroadcastErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "empty message", body: `{"message":" "}`, err: service.ErrEmptyBroadcast, want: http.StatusBadRequest},
		{name: "store failure", body: `{"message":"x"}`, err: errors.New("db down"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&mockBroadcaster{err: tt.err}, &mockStats{})
			req := httptest.NewRequest(http.MethodPost, "/broadcast", strings.NewReader(tt.body))
			req.SetBasicAuth("admin", "secret")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(&mockBroadcaster{}, &mockStats{stats: models.Stats{TotalUsers: 10, ActiveToday: 4, SwapsToday: 9}})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_users":10,"active_today":4,"swaps_today":9}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestServer(&mockBroadcaster{}, &mockStats{},
		HealthCheck{Name: "mysql", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestServer(&mockBroadcaster{}, &mockStats{},
		HealthCheck{Name: "mysql", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "redis", body["failed_check"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&mockBroadcaster{}, &mockStats{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
