package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	retryBackoff   = 200 * time.Millisecond
)

func newHTTPClient(timeoutSec int) *http.Client {
	timeout := defaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doWithRetry issues one round trip per attempt, retrying network errors, 429
// and 5xx with a short linear backoff. The request is rebuilt per attempt
// because the body reader is consumed by the round trip. Non-retryable
// statuses are returned to the caller unread.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logutil.GetLogger(ctx).Warn("upstream request failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			logutil.GetLogger(ctx).Warn("upstream request failed",
				zap.Int("attempt", attempt+1), zap.Error(lastErr))
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// clampInput bounds the payload sent upstream, in runes. Zero or negative
// means no limit.
func clampInput(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
