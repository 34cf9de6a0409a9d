// internal/retrieval/providers/providers.go
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrProviderTimeout = errors.New("PROVIDER_TIMEOUT")
	ErrProviderError   = errors.New("PROVIDER_ERROR")
)

// getJSON issues a context-bounded GET and decodes the JSON body into out.
// Timeouts collapse to ErrProviderTimeout so callers classify uniformly.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded ||
			strings.Contains(err.Error(), "timeout") ||
			strings.Contains(err.Error(), "deadline") ||
			strings.Contains(err.Error(), "Client.Timeout") {
			return ErrProviderTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned %d", ErrProviderError, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
