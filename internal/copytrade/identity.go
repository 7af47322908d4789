package copytrade

import (
	"strings"

	"polycopy/internal/pkg/convert"
)

// identityFields is the precedence order for deriving a trade identity.
// The first field with a non-empty value wins, so the identity of an event
// carrying an explicit id never depends on the other fields.
var identityFields = []string{"id", "tradeId", "transactionHash"}

// Identity derives the deduplication key for a raw event. Returns false when
// no candidate field yields a value; such events are skipped entirely and
// never marked seen, so an enriched re-delivery gets evaluated again.
func Identity(ev RawTradeEvent) (string, bool) {
	for _, field := range identityFields {
		if v := strings.TrimSpace(convert.ToString(ev[field])); v != "" {
			return v, true
		}
	}
	// 兜底：timestamp+price 组合键
	ts := strings.TrimSpace(convert.ToString(ev["timestamp"]))
	price := strings.TrimSpace(convert.ToString(ev["price"]))
	if ts == "" {
		return "", false
	}
	return ts + "_" + price, true
}
