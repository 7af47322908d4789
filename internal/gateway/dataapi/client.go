// Package dataapi implements the Polymarket data-api activity feed used to
// observe the target account's trades.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	brcfg "polycopy/internal/config"
)

// RawTrade is one activity record as delivered upstream. The schema is not
// stable across endpoint versions, so fields stay untyped until the
// normalizer picks them apart.
type RawTrade = map[string]any

// Client wraps the data-api REST endpoints required by polycopy.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient constructs a data-api client from configuration.
func NewClient(cfg brcfg.SourceConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("source.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 source.base_url 失败: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RecentTrades fetches the target's latest TRADE activity, newest first.
// A nil error with an empty slice means the account genuinely has no new
// activity; transport failures always surface as a *TransportError.
func (c *Client) RecentTrades(ctx context.Context, target string, limit int) ([]RawTrade, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("dataapi client not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/activity"
	q := url.Values{}
	q.Set("user", strings.TrimSpace(target))
	q.Set("type", "TRADE")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortDirection", "desc")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polycopy/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindNetwork
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			kind = KindTimeout
		}
		return nil, &TransportError{Op: "activity", Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Op: "activity", Kind: KindNetwork, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{Op: "activity", Kind: KindStatus, Status: resp.StatusCode,
			Err: fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	trades, err := decodeTradeList(body)
	if err != nil {
		return nil, &TransportError{Op: "activity", Kind: KindBody, Err: err}
	}
	return trades, nil
}

// decodeTradeList accepts both historical response shapes: a bare JSON array
// of trade objects, or an object wrapping the array under history/data.
func decodeTradeList(body []byte) ([]RawTrade, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	var list []RawTrade
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	type activityEnvelope struct {
		History []RawTrade `json:"history"`
		Data    []RawTrade `json:"data"`
	}
	var env activityEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("无法解析 activity 响应: %w", err)
	}
	switch {
	case env.History != nil:
		return env.History, nil
	case env.Data != nil:
		return env.Data, nil
	default:
		return nil, fmt.Errorf("activity 响应既不是数组也没有 history/data 字段")
	}
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
