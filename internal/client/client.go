// Package client talks to the cell grid backend over REST.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/circuitbreaker"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRetries    = 1
	DefaultRetryDelay = 200 * time.Millisecond

	nextCursorHeader = "X-Next-Cursor"
	maxHistoryPages  = 50
)

// Config holds the connection settings. Zero values take the defaults
// above; Retries < 0 disables retries.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Breaker    *circuitbreaker.Breaker
	Logger     *slog.Logger
}

// Client implements the backend operations used by the frontend. GETs are
// retried on network errors and 5xx; the role-change POST is sent once.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = DefaultRetries
	} else if retries < 0 {
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.New(5, 30*time.Second,
			circuitbreaker.WithFailureFilter(countsAsFailure),
			circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
				logger.Warn("backend circuit breaker", "from", from.String(), "to", to.String())
			}),
		)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		baseDelay:  delay,
		breaker:    breaker,
		logger:     logger,
	}
}

type groupedResponse struct {
	Groups map[cell.Role]cell.RoleGroup `json:"groups"`
}

// FetchCells lists cells. A nil warehouseID lists every warehouse.
func (c *Client) FetchCells(ctx context.Context, warehouseID *uuid.UUID) ([]cell.Cell, error) {
	var cells []cell.Cell
	if _, err := c.getJSON(ctx, "/v1/cells", warehouseQuery(warehouseID), &cells); err != nil {
		return nil, fmt.Errorf("fetch cells: %w", err)
	}
	return cells, nil
}

// FetchCellsGroupedByRole returns the server-side grouping. Counts are
// recomputed from the returned cells.
func (c *Client) FetchCellsGroupedByRole(ctx context.Context, warehouseID *uuid.UUID) (map[cell.Role]cell.RoleGroup, error) {
	var resp groupedResponse
	if _, err := c.getJSON(ctx, "/v1/cells/by-role", warehouseQuery(warehouseID), &resp); err != nil {
		return nil, fmt.Errorf("fetch cells by role: %w", err)
	}
	groups := make(map[cell.Role]cell.RoleGroup, len(resp.Groups))
	for role, g := range resp.Groups {
		if g.Count != len(g.Cells) {
			c.logger.Warn("group count mismatch", "role", role, "count", g.Count, "cells", len(g.Cells))
			g.Count = len(g.Cells)
		}
		groups[role] = g
	}
	return groups, nil
}

// ChangeCellRole submits a role change. The returned result carries the
// persisted cell on success.
func (c *Client) ChangeCellRole(ctx context.Context, cellID uuid.UUID, newRole cell.Role, reason string) (cell.ChangeRoleResult, error) {
	body := cell.ChangeRoleRequest{NewRole: newRole, Reason: reason}
	var res cell.ChangeRoleResult
	if err := c.postJSON(ctx, "/v1/cells/"+cellID.String()+"/role", body, &res); err != nil {
		return cell.ChangeRoleResult{}, fmt.Errorf("change cell role: %w", err)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrChangeRejected, res.Message)
	}
	if res.Cell == nil {
		return res, ErrBadAcknowledgement
	}
	return res, nil
}

// FetchRoleChangeHistory returns the cell's full history, most recent
// first, following X-Next-Cursor up to maxHistoryPages pages.
func (c *Client) FetchRoleChangeHistory(ctx context.Context, cellID uuid.UUID) ([]cell.RoleChangeRecord, error) {
	path := "/v1/cells/" + cellID.String() + "/history"
	var (
		records []cell.RoleChangeRecord
		cursor  string
	)
	for page := 0; page < maxHistoryPages; page++ {
		var query url.Values
		if cursor != "" {
			query = url.Values{"cursor": []string{cursor}}
		}
		var batch []cell.RoleChangeRecord
		header, err := c.getJSON(ctx, path, query, &batch)
		if err != nil {
			return nil, fmt.Errorf("fetch role history: %w", err)
		}
		records = append(records, batch...)
		cursor = header.Get(nextCursorHeader)
		if cursor == "" || len(batch) == 0 {
			break
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ChangedAt.After(records[j].ChangedAt)
	})
	return records, nil
}

// FetchRoleCatalog returns the valid role values.
func (c *Client) FetchRoleCatalog(ctx context.Context) ([]cell.RoleCatalogEntry, error) {
	var catalog []cell.RoleCatalogEntry
	if _, err := c.getJSON(ctx, "/v1/cells/roles", nil, &catalog); err != nil {
		return nil, fmt.Errorf("fetch role catalog: %w", err)
	}
	return catalog, nil
}

// Ping checks that the backend is ready.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	_, err := c.getJSON(ctx, "/v1/readyz", nil, &status)
	return err
}

func warehouseQuery(id *uuid.UUID) url.Values {
	if id == nil {
		return nil
	}
	return url.Values{"warehouse_id": []string{id.String()}}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) (http.Header, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var header http.Header
		err := c.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			header, err = c.do(ctx, http.MethodGet, target, nil, v)
			return err
		})
		if err == nil {
			return header, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}

		if attempt < c.maxRetries {
			delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
			c.logger.Debug("retrying request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, c.baseURL+path, data, v)
		return err
	})
}

func (c *Client) do(ctx context.Context, method, target string, data []byte, v any) (http.Header, error) {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	if v == nil || len(respBody) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(respBody, v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

func retryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	return errors.Is(err, ErrTransport)
}
