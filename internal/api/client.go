// Package api is the client for the remote classification service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/logging"
	"github.com/verte-zerg/tuimeta/internal/model"
)

const (
	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
)

// Fallback messages used when the service returns no detail.
const (
	msgPredict    = "Prediction failed"
	msgHistory    = "Failed to fetch history"
	msgStatistics = "Failed to fetch statistics"
	msgDelete     = "Failed to delete prediction"
	msgClear      = "Failed to clear history"
	msgHealth     = "Service health check failed"
)

// Client talks to the classification service over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// New builds a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid service url %q: missing host", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		base: u,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Predict submits text for classification.
func (c *Client) Predict(ctx context.Context, text string) (model.PredictionResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.PredictionResult{}, apperrors.Validation("")
	}
	var out model.PredictionResult
	body := model.PredictionRequest{Text: text}
	if err := c.do(ctx, http.MethodPost, "/predict", nil, body, &out, msgPredict); err != nil {
		return model.PredictionResult{}, err
	}
	return out, nil
}

type historyResponse struct {
	History []model.HistoryItem `json:"history"`
}

// ListHistory fetches history items. Empty filter dimensions are omitted from the query.
func (c *Client) ListHistory(ctx context.Context, filter model.FilterCriteria) ([]model.HistoryItem, error) {
	query := url.Values{}
	if filter.Language != "" {
		query.Set("language", filter.Language)
	}
	if filter.Label != "" {
		query.Set("label", string(filter.Label))
	}
	var out historyResponse
	if err := c.do(ctx, http.MethodGet, "/history", query, nil, &out, msgHistory); err != nil {
		return nil, err
	}
	if out.History == nil {
		return []model.HistoryItem{}, nil
	}
	return out.History, nil
}

type statisticsResponse struct {
	Statistics *model.Statistics `json:"statistics"`
}

// Statistics fetches aggregate counts over the whole history.
func (c *Client) Statistics(ctx context.Context) (model.Statistics, error) {
	var out statisticsResponse
	if err := c.do(ctx, http.MethodGet, "/statistics", nil, nil, &out, msgStatistics); err != nil {
		return model.Statistics{}, err
	}
	if out.Statistics == nil {
		return model.Statistics{}, apperrors.Contract(msgStatistics, errors.New("response has no statistics"))
	}
	return *out.Statistics, nil
}

// DeleteHistoryItem removes one history item.
func (c *Client) DeleteHistoryItem(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation("history item id is empty")
	}
	return c.do(ctx, http.MethodDelete, "/history/"+url.PathEscape(id), nil, nil, nil, msgDelete)
}

// ClearHistory removes every history item.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/history", nil, nil, nil, msgClear)
}

// Health checks that the service answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil, msgHealth)
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, fallback string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	status := 0
	defer func() {
		logging.Request(method, path, requestID, status, time.Since(start), err)
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Network(fallback+": service unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Network(fallback, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		return apperrors.Network(detailMessage(data, fallback), cause)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Contract(fallback, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// detailMessage extracts the service's {detail} payload, falling back when absent.
func detailMessage(data []byte, fallback string) string {
	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return fallback
	}
	// Validation errors arrive as a list of {msg} objects.
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if m := strings.TrimSpace(item.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}
