package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/StockAnalyzer/models"
)

var ErrSessionNotFound = errors.New("session not found")

type apiError struct {
	Error string `json:"error"`
}

// Client talks to a running StockAnalyzer service.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *Client) Submit(ctx context.Context, params models.AnalysisParams) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&out).
		SetError(&apiErr).
		Post("/analyze")
	if err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit analysis: %s: %s", resp.Status(), apiErr.Error)
	}
	return out.SessionID, nil
}

func (c *Client) Result(ctx context.Context, sessionID string) (*models.JobRecord, error) {
	var rec models.JobRecord
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("session_id", sessionID).
		SetResult(&rec).
		SetError(&apiErr).
		Get("/results/{session_id}")
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch results: %s: %s", resp.Status(), apiErr.Error)
	}
	return &rec, nil
}

// Wait polls until the session reaches a terminal status. onPoll, when set,
// sees every record fetched.
func (c *Client) Wait(ctx context.Context, sessionID string, interval time.Duration, onPoll func(*models.JobRecord)) (*models.JobRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		rec, err := c.Result(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(rec)
		}
		if rec.Status.Terminal() {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}
