package statusapi_test

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/resolver"
	"github.com/jroosing/goresolv/internal/statusapi"
	"github.com/jroosing/goresolv/internal/statusapi/models"
)

func newTestResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	res := resolver.New(resolver.Config{
		Upstreams: []agent.Params{{Addr: conn.LocalAddr().String(), Timeout: time.Second}},
	})
	t.Cleanup(func() { res.Close() })
	return res
}

func TestHealth(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 0}, res, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCacheEndpoint(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 0}, res, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/cache", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.CacheStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
}

func TestQueriesEndpoint(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 0}, res, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/queries", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.QueriesStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.Active, 0)
}

func TestUpstreamsEndpoint(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 0}, res, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/upstreams", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.UpstreamsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
}

func TestStatsRequiresAPIKeyWhenConfigured(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 0, APIKey: "secret"}, res, nil)

	req := httptest.NewRequest(http.MethodGet, "/status/stats", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/status/stats", nil)
	req2.Header.Set("X-API-Key", "secret")
	w2 := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestAddrReflectsConfiguredHostAndPort(t *testing.T) {
	res := newTestResolver(t)
	srv := statusapi.New(statusapi.Config{Host: "127.0.0.1", Port: 9191}, res, nil)
	assert.Equal(t, "127.0.0.1:9191", srv.Addr())
}
