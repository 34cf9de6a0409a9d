// internal/devices/client.go
package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/logger"
)

var (
	ErrExecuteFailed  = errors.New("DEVICE_EXECUTE_FAILED")
	ErrExecuteTimeout = errors.New("DEVICE_EXECUTE_TIMEOUT")
)

// ExecuteResult is the device backend's reply.
type ExecuteResult struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

// Executor is the device-control boundary.
type Executor interface {
	Execute(ctx context.Context, entity, action string, params map[string]string) (*ExecuteResult, error)
}

// Client talks to the device-control backend over HTTP.
type Client struct {
	cfg    *config.DevicesConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg *config.DevicesConfig, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "device-client",
		}),
	}
}

type executeRequest struct {
	Entity string            `json:"entity"`
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// Execute runs one device command, bounded by the configured timeout.
func (c *Client) Execute(ctx context.Context, entity, action string, params map[string]string) (*ExecuteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timeout)*time.Millisecond)
	defer cancel()

	body, err := json.Marshal(&executeRequest{Entity: entity, Action: action, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/devices/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded ||
			strings.Contains(err.Error(), "timeout") ||
			strings.Contains(err.Error(), "deadline") {
			return nil, ErrExecuteTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: backend returned %d", ErrExecuteFailed, resp.StatusCode)
	}

	var result ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	c.logger.Info("device command executed", map[string]interface{}{
		"entity":   entity,
		"action":   action,
		"success":  result.Success,
		"duration": time.Since(start).String(),
	})

	if !result.Success {
		return &result, fmt.Errorf("%w: device reported failure", ErrExecuteFailed)
	}
	return &result, nil
}
