// Package clob speaks the read-only surface of the Polymarket CLOB API:
// server time for connectivity probes and the order book that backs the
// paper executor's fill simulation.
package clob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/exchange"
	"polycopy/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(cfg brcfg.ClobConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("clob.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 clob.base_url 失败: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
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

// ServerTime returns the CLOB server clock. Used by connectivity checks.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	body, err := c.get(ctx, "/time", nil)
	if err != nil {
		return time.Time{}, err
	}
	secs := gjson.Parse(body).Int()
	if secs <= 0 {
		return time.Time{}, fmt.Errorf("clob /time 返回异常: %q", body)
	}
	return time.Unix(secs, 0), nil
}

// GetOrderBook fetches bid/ask levels for one outcome token, sorted best
// price first on both sides.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error) {
	if strings.TrimSpace(tokenID) == "" {
		return nil, fmt.Errorf("token id 为空")
	}
	body, err := c.get(ctx, "/book", url.Values{"token_id": []string{tokenID}})
	if err != nil {
		return nil, err
	}
	doc := gjson.Parse(body)
	book := &exchange.OrderBook{
		TokenID: tokenID,
		Bids:    parseLevels(doc.Get("bids")),
		Asks:    parseLevels(doc.Get("asks")),
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

func parseLevels(arr gjson.Result) []exchange.OrderBookLevel {
	var levels []exchange.OrderBookLevel
	arr.ForEach(func(_, lvl gjson.Result) bool {
		price := convert.ToFloat64(lvl.Get("price").String())
		size := convert.ToFloat64(lvl.Get("size").String())
		if price > 0 && size > 0 {
			levels = append(levels, exchange.OrderBookLevel{Price: price, Size: size})
		}
		return true
	})
	return levels
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (string, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("clob %s 请求失败: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("读取 clob 响应失败: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("clob %s status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw), nil
}
