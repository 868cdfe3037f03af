package keypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rawblock/solrank/internal/apperr"
)

// DefaultRetryBudget mirrors the §4.1 default.
const DefaultRetryBudget = 3

// defaultAuthHeader names the header the provider expects the selected
// credential on. Configurable per provider via RequestAdapter.HeaderName.
const defaultAuthHeader = "X-API-Key"

// RequestAdapter issues HTTP GETs against a single provider, rotating
// through the pool on rate limit and retrying transient failures without
// penalising the key (§4.1 Request adapter).
type RequestAdapter struct {
	Pool        *Pool
	Client      *http.Client
	BaseURL     string
	HeaderName  string
	RetryBudget int
}

// NewRequestAdapter builds an adapter with the teacher's convention of a
// generous, explicit client timeout rather than relying on context alone.
func NewRequestAdapter(pool *Pool, baseURL string) *RequestAdapter {
	return &RequestAdapter{
		Pool:        pool,
		Client:      &http.Client{Timeout: 20 * time.Second},
		BaseURL:     baseURL,
		HeaderName:  defaultAuthHeader,
		RetryBudget: DefaultRetryBudget,
	}
}

// Get issues endpoint?params using a pool key, classifying the response
// per §4.1: 429 cools the key and rotates, 401/403 burns it and rotates,
// other 5xx/timeout counts as a retry without penalising the key.
func (a *RequestAdapter) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	budget := a.RetryBudget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}

	var lastErr error
	for attempt := 0; attempt <= budget; attempt++ {
		k, ok := a.Pool.Next()
		if !ok {
			return nil, apperr.Wrap(apperr.ErrProviderUnavailable, "keypool: no active key")
		}

		body, status, err := a.doRequest(ctx, k, endpoint, params)
		if err != nil {
			lastErr = apperr.Wrap(apperr.ErrTransient, err.Error())
			continue
		}

		switch {
		case status >= 200 && status < 300:
			a.Pool.MarkSuccess(k.Identifier)
			return body, nil
		case status == http.StatusTooManyRequests:
			a.Pool.MarkRateLimited(k.Identifier)
			lastErr = apperr.Wrap(apperr.ErrTransient, "rate limited")
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			a.Pool.MarkFailed(k.Identifier)
			lastErr = apperr.Wrap(apperr.ErrProviderBadData, fmt.Sprintf("auth failure status=%d", status))
		case status >= 500:
			lastErr = apperr.Wrap(apperr.ErrTransient, fmt.Sprintf("server error status=%d", status))
		default:
			lastErr = apperr.Wrap(apperr.ErrProviderBadData, fmt.Sprintf("unexpected status=%d", status))
		}
	}

	if lastErr == nil {
		lastErr = apperr.Wrap(apperr.ErrProviderUnavailable, "retry budget exhausted")
	}
	return nil, lastErr
}

func (a *RequestAdapter) doRequest(ctx context.Context, k Key, endpoint string, params url.Values) ([]byte, int, error) {
	u := a.BaseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(a.HeaderName, k.Credential)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
