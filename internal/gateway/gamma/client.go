// Package gamma resolves outcome token ids through the Polymarket Gamma
// market-discovery API. The copy engine only consults it when the activity
// feed omits the asset id of a trade.
package gamma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	brcfg "polycopy/internal/config"
	"polycopy/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

// ErrNotFound means no live up/down market exists for the coin right now.
var ErrNotFound = errors.New("gamma: no active market")

// MarketInfo is the resolved view of one live 15-minute up/down market.
type MarketInfo struct {
	Slug            string
	Question        string
	UpTokenID       string
	DownTokenID     string
	UpPrice         float64
	DownPrice       float64
	AcceptingOrders bool
}

// Client queries the Gamma REST API with a small per-coin cache; the live
// market rotates every fifteen minutes, so entries expire quickly.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]cachedMarket
}

type cachedMarket struct {
	info MarketInfo
	ts   time.Time
}

const marketCacheTTL = 30 * time.Second

func NewClient(cfg brcfg.GammaConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("gamma.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 gamma.base_url 失败: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]cachedMarket),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Resolve maps a coin tag plus an outcome hint onto a tradable token id.
// "up"/"yes" hints pick the Up token, "down"/"no" the Down token; anything
// else defaults to Up, mirroring how the feed labels these markets.
func (c *Client) Resolve(ctx context.Context, coin, outcomeHint string) (string, error) {
	info, err := c.MarketInfo(ctx, coin)
	if err != nil {
		return "", err
	}
	hint := strings.ToLower(strings.TrimSpace(outcomeHint))
	switch {
	case strings.Contains(hint, "down"), strings.Contains(hint, "no"):
		if info.DownTokenID == "" {
			return "", ErrNotFound
		}
		return info.DownTokenID, nil
	default:
		if info.UpTokenID == "" {
			return "", ErrNotFound
		}
		return info.UpTokenID, nil
	}
}

// MarketInfo returns the live up/down market for a coin tag (BTC, ETH, ...).
func (c *Client) MarketInfo(ctx context.Context, coin string) (*MarketInfo, error) {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" || coin == "UNKNOWN" {
		return nil, ErrNotFound
	}

	c.mu.Lock()
	if hit, ok := c.cache[coin]; ok && time.Since(hit.ts) < marketCacheTTL {
		c.mu.Unlock()
		info := hit.info
		return &info, nil
	}
	c.mu.Unlock()

	body, err := c.fetchMarkets(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := pickUpDownMarket(body, coin)
	if !ok {
		return nil, ErrNotFound
	}

	c.mu.Lock()
	c.cache[coin] = cachedMarket{info: info, ts: time.Now()}
	c.mu.Unlock()
	return &info, nil
}

func (c *Client) fetchMarkets(ctx context.Context) (string, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/markets"
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", "100")
	q.Set("order", "startDate")
	q.Set("ascending", "false")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gamma markets 请求失败: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("读取 gamma 响应失败: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("gamma markets status=%d", resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("gamma 响应不是有效 JSON")
	}
	return string(raw), nil
}

// pickUpDownMarket scans the market list for the live "<coin> Up or Down"
// market. Gamma stores clobTokenIds and outcomes as JSON-encoded strings
// inside the JSON document, hence the nested gjson parses.
func pickUpDownMarket(body, coin string) (MarketInfo, bool) {
	needle := strings.ToLower(coin)
	var found MarketInfo
	ok := false
	gjson.Parse(body).ForEach(func(_, market gjson.Result) bool {
		question := market.Get("question").String()
		ql := strings.ToLower(question)
		if !strings.Contains(ql, "up or down") {
			return true
		}
		if !strings.Contains(ql, needle) && !strings.Contains(ql, fullName(coin)) {
			return true
		}
		if !market.Get("acceptingOrders").Bool() {
			return true
		}
		info := MarketInfo{
			Slug:            market.Get("slug").String(),
			Question:        question,
			AcceptingOrders: true,
		}
		tokens := gjson.Parse(market.Get("clobTokenIds").String()).Array()
		outcomes := gjson.Parse(market.Get("outcomes").String()).Array()
		prices := gjson.Parse(market.Get("outcomePrices").String()).Array()
		for i, outcome := range outcomes {
			if i >= len(tokens) {
				break
			}
			price := 0.0
			if i < len(prices) {
				price = convert.ToFloat64(prices[i].String())
			}
			switch strings.ToLower(outcome.String()) {
			case "up", "yes":
				info.UpTokenID = tokens[i].String()
				info.UpPrice = price
			case "down", "no":
				info.DownTokenID = tokens[i].String()
				info.DownPrice = price
			}
		}
		if info.UpTokenID == "" && info.DownTokenID == "" {
			return true
		}
		found = info
		ok = true
		return false
	})
	return found, ok
}

func fullName(coin string) string {
	switch coin {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"
	case "SOL":
		return "solana"
	case "XRP":
		return "xrp"
	default:
		return strings.ToLower(coin)
	}
}
