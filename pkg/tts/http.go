package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// postJSON posts payload and returns the body of a 200 response, retrying
// rate-limited and 5xx responses up to cfg.MaxRetries times.
func postJSON(ctx context.Context, client *http.Client, cfg *Config, logger *slog.Logger, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(provider, fmt.Errorf("marshal payload: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(provider, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(provider, err)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = parseAPIError(provider, resp.StatusCode, data)
			if IsRetryable(lastErr) {
				logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
				continue
			}
			return nil, lastErr
		}
		if readErr != nil {
			return nil, WrapError(provider, fmt.Errorf("read response: %w", readErr))
		}
		return data, nil
	}

	return nil, lastErr
}

// parseAPIError understands both the OpenAI and the ElevenLabs error shapes.
func parseAPIError(provider string, status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}

	apiErr := &APIError{StatusCode: status, Message: string(body), Provider: provider}
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Error.Message != "":
			apiErr.Message = errResp.Error.Message
			apiErr.Code = errResp.Error.Code
		case errResp.Detail.Message != "":
			apiErr.Message = errResp.Detail.Message
			apiErr.Code = errResp.Detail.Status
		}
	}
	return apiErr
}

// getOK issues a GET and maps a non-200 status to an APIError.
func getOK(ctx context.Context, client *http.Client, provider, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(provider, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return WrapError(provider, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return parseAPIError(provider, resp.StatusCode, data)
	}
	return nil
}
