package copytrade

import (
	"strings"
	"time"

	"polycopy/internal/pkg/convert"
)

// Field alias tables. The activity feed has shipped several schema
// generations; lookups walk each list in order and take the first hit.
var (
	sideFields    = []string{"side", "type", "action"}
	priceFields   = []string{"price", "avgPrice", "average_price"}
	tokenFields   = []string{"asset", "tokenId", "token_id", "assetId"}
	marketFields  = []string{"market", "slug", "title", "question"}
	outcomeFields = []string{"outcome", "outcomeName"}
)

// coinKeywords maps descriptive-label substrings onto category tags.
var coinKeywords = []struct {
	needle string
	coin   string
}{
	{"btc", "BTC"}, {"bitcoin", "BTC"},
	{"eth", "ETH"}, {"ethereum", "ETH"},
	{"sol", "SOL"}, {"solana", "SOL"},
	{"xrp", "XRP"},
}

const defaultPrice = 0.50

// Normalize maps a raw event onto a canonical ActionDescriptor. Missing
// fields degrade to defaults instead of failing: unrecognized direction
// becomes BUY, a missing price becomes 0.50 and is left for the risk gate
// to validate. Normalization itself never rejects an event.
func Normalize(ev RawTradeEvent) *ActionDescriptor {
	act := &ActionDescriptor{
		Side:     normalizeSide(firstString(ev, sideFields)),
		TokenID:  firstString(ev, tokenFields),
		Market:   firstString(ev, marketFields),
		Outcome:  firstString(ev, outcomeFields),
		Price:    defaultPrice,
		Observed: time.Now(),
	}
	for _, field := range priceFields {
		if v, ok := convert.Float64(ev[field]); ok {
			act.Price = v
			break
		}
	}
	act.Coin = inferCoin(act.Market)
	if id, ok := Identity(ev); ok {
		act.Identity = id
	}
	return act
}

func normalizeSide(raw string) Side {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SELL", "SOLD":
		return SideSell
	case "BUY", "BOUGHT":
		return SideBuy
	default:
		// 未识别方向按 BUY 处理, 倾向于跟单而不是漏单
		return SideBuy
	}
}

// inferCoin scans the market label for known ticker substrings. Best effort
// only; labels without a recognized ticker get UNKNOWN.
func inferCoin(label string) string {
	l := strings.ToLower(label)
	for _, kw := range coinKeywords {
		if strings.Contains(l, kw.needle) {
			return kw.coin
		}
	}
	return "UNKNOWN"
}

func firstString(ev RawTradeEvent, fields []string) string {
	for _, field := range fields {
		if v := strings.TrimSpace(convert.ToString(ev[field])); v != "" {
			return v
		}
	}
	return ""
}
