// internal/devices/client_test.go
package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
)

func testDevicesConfig(baseURL string) *config.DevicesConfig {
	return &config.DevicesConfig{
		BaseURL: baseURL,
		APIKey:  "device-key",
		Timeout: 1000,
	}
}

func TestExecute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer device-key", r.Header.Get("Authorization"))

		var req struct {
			Entity string `json:"entity"`
			Action string `json:"action"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "lights", req.Entity)
		assert.Equal(t, "off", req.Action)

		w.Write([]byte(`{"success": true, "state": "off"}`))
	}))
	defer server.Close()

	c := NewClient(testDevicesConfig(server.URL), logger.NewNoOpLogger())

	result, err := c.Execute(context.Background(), "lights", "off", nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "off", result.State)
}

func TestExecute_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(testDevicesConfig(server.URL), logger.NewNoOpLogger())

	_, err := c.Execute(context.Background(), "lights", "off", nil)

	assert.ErrorIs(t, err, ErrExecuteFailed)
}

func TestExecute_DeviceReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "state": "unreachable"}`))
	}))
	defer server.Close()

	c := NewClient(testDevicesConfig(server.URL), logger.NewNoOpLogger())

	result, err := c.Execute(context.Background(), "lights", "off", nil)

	assert.ErrorIs(t, err, ErrExecuteFailed)
	require.NotNil(t, result)
	assert.Equal(t, "unreachable", result.State)
}

func TestExecute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testDevicesConfig(server.URL)
	cfg.Timeout = 50
	c := NewClient(cfg, logger.NewNoOpLogger())

	_, err := c.Execute(context.Background(), "lights", "off", nil)

	assert.ErrorIs(t, err, ErrExecuteTimeout)
}
