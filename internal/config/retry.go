package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryBaseDelay is the first wait in DoWithBackoff; later waits grow by
// BACKOFF_FACTOR up to MAX_BACKOFF.
var retryBaseDelay = 500 * time.Millisecond

func newRetryBackOff(ctx context.Context, maxRetries int) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.RandomizationFactor = JITTER_FACTOR
	b.Multiplier = BACKOFF_FACTOR
	b.MaxInterval = MAX_BACKOFF
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if maxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	return backoff.WithContext(policy, ctx)
}

// DoWithBackoff sends req, retrying transport errors, 429 and 5xx responses
// with jittered exponential backoff. Other responses, 4xx included, are
// returned to the caller untouched. maxRetries <= 0 retries until ctx is done.
// Only GET-style requests without a body are safe to pass here.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("server responded with status %d", resp.StatusCode)
		}
		return resp, nil
	}, newRetryBackOff(ctx, maxRetries))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("max retries exceeded: %w", err)
	}
	return resp, nil
}
