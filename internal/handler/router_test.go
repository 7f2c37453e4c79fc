package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(mqttConnected func() bool) http.Handler {
	h := NewBridgeHandler(&fakeCardAPI{}, &fakeSecurityAPI{}, zap.NewNop())
	return NewRouter(h, nil, mqttConnected, zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("reports connected broker", func(t *testing.T) {
		router := newTestRouter(func() bool { return true })

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "connected", body["mqtt"])
		assert.Contains(t, body, "uptime_seconds")
	})

	t.Run("reports disconnected broker", func(t *testing.T) {
		router := newTestRouter(func() bool { return false })

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "disconnected", body["mqtt"])
	})
}

func TestAPIRoutesMounted(t *testing.T) {
	router := newTestRouter(func() bool { return true })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/door/open", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(func() bool { return true })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(func() bool { return true })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/door/open", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
