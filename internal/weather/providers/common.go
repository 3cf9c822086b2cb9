package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errNoHTTPClient  = errors.New("http client not configured")
	errMissingAPIKey = errors.New("api key is not configured")
)

// doRequest executes a single request and turns non-2xx statuses into errors.
// It never retries; the caller's poll loop owns the retry policy.
func doRequest(ctx context.Context, client *http.Client, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := buildRequest()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		err = errRateLimited
	case resp.StatusCode >= 500:
		err = fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	default:
		err = fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	return nil, err
}
