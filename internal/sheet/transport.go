package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Column positions within a row of the backing sheet.
const (
	ColCompanyName = iota
	ColAddress
	ColStatus
	ColNotes
	ColLat
	ColLng
	ColFollowUpDate

	columnCount
)

// RowTransport is the narrow row-addressable interface the adapter
// consumes. Row numbers are 1-indexed with the header row excluded.
// Implementations must return ErrNotFound for absent rows and wrap
// quota rejections in ErrRateLimited so the adapter's retry policy can
// dispatch on the error class instead of matching message text.
type RowTransport interface {
	// ReadRows returns every data row in order.
	ReadRows(ctx context.Context) ([][]string, error)
	// ReadRow returns the cells of a single row.
	ReadRow(ctx context.Context, row int) ([]string, error)
	// UpdateCells writes only the supplied cells of a row, keyed by
	// column position. Other cells are left untouched.
	UpdateCells(ctx context.Context, row int, cells map[int]string) error
}

const defaultTransportTimeout = 30 * time.Second

// HTTPTransport talks to the sheet service's row API over HTTP.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithAPIKey sets the bearer token sent with every request. An empty
// key leaves requests unauthenticated.
func WithAPIKey(key string) TransportOption {
	return func(t *HTTPTransport) {
		t.apiKey = key
	}
}

// NewHTTPTransport creates a transport for the given row API endpoint.
// The client always carries an explicit request timeout.
func NewHTTPTransport(baseURL string, timeout time.Duration, opts ...TransportOption) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTransportTimeout
	}
	t := &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// rowsPayload mirrors the row API's list response.
type rowsPayload struct {
	Rows [][]string `json:"rows"`
}

// rowPayload mirrors the row API's single-row response.
type rowPayload struct {
	Cells []string `json:"cells"`
}

// errorPayload mirrors the row API's error body.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReadRows fetches the full data range.
func (t *HTTPTransport) ReadRows(ctx context.Context) ([][]string, error) {
	body, err := t.do(ctx, http.MethodGet, t.baseURL+"/rows", nil)
	if err != nil {
		return nil, err
	}

	var payload rowsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode rows response: %w", err)
	}
	return payload.Rows, nil
}

// ReadRow fetches a single row by number.
func (t *HTTPTransport) ReadRow(ctx context.Context, row int) ([]string, error) {
	body, err := t.do(ctx, http.MethodGet, t.baseURL+"/rows/"+strconv.Itoa(row), nil)
	if err != nil {
		return nil, err
	}

	var payload rowPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode row response: %w", err)
	}
	return payload.Cells, nil
}

// UpdateCells writes a partial row update.
func (t *HTTPTransport) UpdateCells(ctx context.Context, row int, cells map[int]string) error {
	// JSON objects key by string; convert column positions.
	out := make(map[string]string, len(cells))
	for col, val := range cells {
		out[strconv.Itoa(col)] = val
	}

	reqBody, err := json.Marshal(map[string]any{"cells": out})
	if err != nil {
		return fmt.Errorf("encode cells payload: %w", err)
	}

	_, err = t.do(ctx, http.MethodPatch, t.baseURL+"/rows/"+strconv.Itoa(row), reqBody)
	return err
}

// do runs one request and classifies the response status into the
// package's typed errors.
func (t *HTTPTransport) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sheet response: %w", err)
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		return respBody, nil
	}
	return nil, classifyHTTPError(resp.StatusCode, respBody)
}

// classifyHTTPError maps a non-2xx response onto the typed error set.
// Quota rejections arrive either as HTTP 429 or as a 403 carrying a
// RESOURCE_EXHAUSTED code in the body.
func classifyHTTPError(status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	case status == http.StatusForbidden && payload.Code == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrRateLimited, payload.Message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", ErrNotFound)
	default:
		if payload.Message != "" {
			return fmt.Errorf("sheet request failed: HTTP %d: %s", status, payload.Message)
		}
		return fmt.Errorf("sheet request failed: HTTP %d", status)
	}
}
