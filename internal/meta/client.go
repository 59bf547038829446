// Package meta is the Graph API client used for ingestion: paginated ad-set
// listings, per-ad-set daily insights, and batched insight fetches. All calls
// go through a shared adaptive rate limiter fed by the API's usage headers.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/pkg/httpretry"
	"github.com/ignite/audience-pilot/internal/pkg/logger"
)

// maxBatchItems is the Graph API's hard cap on requests per batch call.
const maxBatchItems = 50

// Client talks to the Graph API. It is safe for concurrent use; the embedded
// limiter serializes call pacing across all accounts synced by the process.
type Client struct {
	cfg     config.MetaConfig
	http    httpretry.HTTPDoer
	limiter *RateLimiter
}

// NewClient builds a Graph API client. A nil doer gets a default client
// with the configured timeout.
func NewClient(cfg config.MetaConfig, doer httpretry.HTTPDoer, limiter *RateLimiter) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout()}
	}
	if limiter == nil {
		limiter = NewRateLimiter(cfg)
	}
	return &Client{cfg: cfg, http: doer, limiter: limiter}
}

// Limiter exposes the shared rate limiter for status reporting.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.APIVersion, path)
}

// do executes one Graph API call with rate-limit pacing and throttle-aware
// retries. Permanent API errors and exhausted retries are returned to the
// caller; throttle responses impose a limiter cooldown sized from the
// server's regain-access hint when it provides one, exponential backoff
// otherwise.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("meta: build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("meta: request failed: %w", err)
			continue
		}

		regain := c.limiter.ObserveHeaders(resp.Header)
		payload, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("meta: read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return payload, nil
		}

		apiErr := parseAPIError(payload, resp.StatusCode)
		if !apiErr.IsRateLimit() {
			return nil, apiErr
		}

		cooldown := c.throttleCooldown(regain, attempt)
		c.limiter.SetCooldown(cooldown)
		logger.Warn("meta: throttled, backing off",
			"code", apiErr.Code, "cooldown", cooldown.String(),
			"attempt", attempt, "max", c.cfg.MaxRetries)
		lastErr = apiErr
	}
	return nil, fmt.Errorf("meta: retries exhausted: %w", lastErr)
}

// throttleCooldown sizes the pause after a throttle response. The server's
// regain-access hint wins; otherwise exponential backoff from the configured
// base, capped at the configured maximum.
func (c *Client) throttleCooldown(regain time.Duration, attempt int) time.Duration {
	if regain > 0 {
		if regain > c.cfg.MaxBackoff() {
			return c.cfg.MaxBackoff()
		}
		return regain
	}
	d := time.Duration(c.cfg.BackoffBaseSeconds) * time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > c.cfg.MaxBackoff() {
		d = c.cfg.MaxBackoff()
	}
	return d
}

func parseAPIError(payload []byte, status int) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Error != nil {
		env.Error.HTTPStatus = status
		return env.Error
	}
	return &APIError{
		Message:    fmt.Sprintf("unexpected response (status %d)", status),
		HTTPStatus: status,
	}
}

// ListAdSets fetches every ad set in the account, following pagination until
// the API stops returning a next link.
func (c *Client) ListAdSets(ctx context.Context, accessToken, accountID string) ([]AdSet, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("fields", adSetFields)
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	next := c.endpoint(EnsureActPrefix(accountID)+"/adsets") + "?" + q.Encode()

	var all []AdSet
	for next != "" {
		payload, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("list ad sets for %s: %w", accountID, err)
		}
		var page adSetPage
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, fmt.Errorf("list ad sets for %s: decode page: %w", accountID, err)
		}
		all = append(all, page.Data...)
		next = page.Paging.Next
	}
	return all, nil
}

// insightsRelativeURL is the per-ad-set insights path shared by the single
// and batched fetch paths.
func (c *Client) insightsRelativeURL(adSetID, datePreset string) string {
	q := url.Values{}
	q.Set("fields", insightFields)
	q.Set("date_preset", NormalizeDatePreset(datePreset))
	q.Set("time_increment", "1")
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	return adSetID + "/insights?" + q.Encode()
}

// GetDailyInsights fetches day-granularity insight rows for one ad set.
func (c *Client) GetDailyInsights(ctx context.Context, accessToken, adSetID, datePreset string) ([]InsightRow, error) {
	u := c.endpoint(c.insightsRelativeURL(adSetID, datePreset)) + "&access_token=" + url.QueryEscape(accessToken)
	payload, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("insights for %s: %w", adSetID, err)
	}
	var page insightPage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("insights for %s: decode: %w", adSetID, err)
	}
	return page.Data, nil
}

// batchItem is one sub-request in a batch call.
type batchItem struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
}

// batchResult is one sub-response in a batch call. A null entry in the
// response array means the item never ran and must be retried.
type batchResult struct {
	Code int    `json:"code"`
	Body string `json:"body"`
}

// BatchDailyInsights fetches daily insights for many ad sets using batched
// Graph API calls. Results are keyed by ad-set ID. Per-item permanent
// failures land in the returned error map without failing the whole fetch;
// throttled items are collected and re-sent in a later batch rather than
// retried individually.
func (c *Client) BatchDailyInsights(ctx context.Context, accessToken string, adSetIDs []string, datePreset string) (map[string][]InsightRow, map[string]error, error) {
	rows := make(map[string][]InsightRow, len(adSetIDs))
	itemErrs := make(map[string]error)

	size := c.cfg.BatchSize
	if size <= 0 || size > maxBatchItems {
		size = maxBatchItems
	}

	pending := adSetIDs
	for pass := 0; len(pending) > 0 && pass <= c.cfg.MaxRetries; pass++ {
		var throttled []string
		for start := 0; start < len(pending); start += size {
			end := start + size
			if end > len(pending) {
				end = len(pending)
			}
			chunk := pending[start:end]

			retry, err := c.doBatch(ctx, accessToken, chunk, datePreset, rows, itemErrs)
			if err != nil {
				return rows, itemErrs, err
			}
			throttled = append(throttled, retry...)
		}
		if len(throttled) > 0 && pass < c.cfg.MaxRetries {
			logger.Info("meta: re-batching throttled insight fetches",
				"count", len(throttled), "pass", pass+1)
		} else if len(throttled) > 0 {
			for _, id := range throttled {
				itemErrs[id] = fmt.Errorf("insights for %s: throttled after %d passes", id, pass+1)
			}
			throttled = nil
		}
		pending = throttled
	}
	return rows, itemErrs, nil
}

// doBatch issues one batch call and folds its item results into rows and
// itemErrs. It returns the IDs whose items were throttled or skipped and
// should ride in a later batch.
func (c *Client) doBatch(ctx context.Context, accessToken string, adSetIDs []string, datePreset string, rows map[string][]InsightRow, itemErrs map[string]error) ([]string, error) {
	items := make([]batchItem, len(adSetIDs))
	for i, id := range adSetIDs {
		items[i] = batchItem{Method: http.MethodGet, RelativeURL: c.insightsRelativeURL(id, datePreset)}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("meta: encode batch: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("batch", string(encoded))
	form.Set("include_headers", "false")

	payload, err := c.do(ctx, http.MethodPost, c.endpoint(""), []byte(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("meta: batch call: %w", err)
	}

	var results []*batchResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("meta: decode batch response: %w", err)
	}
	if len(results) != len(adSetIDs) {
		return nil, fmt.Errorf("meta: batch returned %d results for %d items", len(results), len(adSetIDs))
	}

	var throttled []string
	for i, res := range results {
		id := adSetIDs[i]
		if res == nil {
			// Null entries mean the item was skipped, usually under load.
			throttled = append(throttled, id)
			continue
		}
		if res.Code >= 200 && res.Code < 300 {
			var page insightPage
			if err := json.Unmarshal([]byte(res.Body), &page); err != nil {
				itemErrs[id] = fmt.Errorf("insights for %s: decode: %w", id, err)
				continue
			}
			rows[id] = page.Data
			delete(itemErrs, id)
			continue
		}
		apiErr := parseAPIError([]byte(res.Body), res.Code)
		if apiErr.IsRateLimit() {
			throttled = append(throttled, id)
			continue
		}
		itemErrs[id] = apiErr
	}
	return throttled, nil
}
