package copytrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFullEvent(t *testing.T) {
	act := Normalize(RawTradeEvent{
		"id":      "t1",
		"side":    "BOUGHT",
		"price":   "0.62",
		"market":  "BTC Up or Down",
		"outcome": "Up",
		"asset":   "tok-1",
	})
	require.NotNil(t, act)
	assert.Equal(t, SideBuy, act.Side)
	assert.InDelta(t, 0.62, act.Price, 1e-9)
	assert.Equal(t, "BTC", act.Coin)
	assert.Equal(t, "Up", act.Outcome)
	assert.Equal(t, "tok-1", act.TokenID)
	assert.Equal(t, "t1", act.Identity)
}

func TestNormalizeSideSynonyms(t *testing.T) {
	tests := []struct {
		raw  RawTradeEvent
		want Side
	}{
		{RawTradeEvent{"side": "SELL"}, SideSell},
		{RawTradeEvent{"side": "sold"}, SideSell},
		{RawTradeEvent{"type": "Sold"}, SideSell},
		{RawTradeEvent{"side": "buy"}, SideBuy},
		{RawTradeEvent{"action": "BOUGHT"}, SideBuy},
		{RawTradeEvent{"side": "MERGE"}, SideBuy}, // unrecognized defaults to BUY
		{RawTradeEvent{}, SideBuy},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.raw).Side, "event %v", tt.raw)
	}
}

func TestNormalizePriceAliasesAndDefault(t *testing.T) {
	assert.InDelta(t, 0.31, Normalize(RawTradeEvent{"avgPrice": 0.31}).Price, 1e-9)
	assert.InDelta(t, 0.72, Normalize(RawTradeEvent{"average_price": "0.72"}).Price, 1e-9)
	// missing price falls back to the neutral default, not an error
	assert.InDelta(t, 0.50, Normalize(RawTradeEvent{"side": "BUY"}).Price, 1e-9)
	// unparseable price also degrades to the default
	assert.InDelta(t, 0.50, Normalize(RawTradeEvent{"price": "n/a"}).Price, 1e-9)
}

func TestNormalizeFieldAliases(t *testing.T) {
	act := Normalize(RawTradeEvent{
		"token_id":    "tok-9",
		"slug":        "ethereum-up-or-down",
		"outcomeName": "Down",
	})
	assert.Equal(t, "tok-9", act.TokenID)
	assert.Equal(t, "ethereum-up-or-down", act.Market)
	assert.Equal(t, "Down", act.Outcome)
	assert.Equal(t, "ETH", act.Coin)
}

func TestInferCoin(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"BTC Up or Down 3pm", "BTC"},
		{"Will Bitcoin close above 100k", "BTC"},
		{"solana-up-or-down", "SOL"},
		{"XRP Up or Down", "XRP"},
		{"Will it rain in NYC", "UNKNOWN"},
		{"", "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferCoin(tt.label), "label %q", tt.label)
	}
}
