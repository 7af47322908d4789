package dataapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brcfg "polycopy/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(brcfg.SourceConfig{BaseURL: srv.URL, TimeoutSeconds: 2})
	require.NoError(t, err)
	return c
}

func TestRecentTradesQueryShape(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activity", r.URL.Path)
		gotQuery = map[string]string{
			"user":          r.URL.Query().Get("user"),
			"type":          r.URL.Query().Get("type"),
			"limit":         r.URL.Query().Get("limit"),
			"sortDirection": r.URL.Query().Get("sortDirection"),
		}
		w.Write([]byte(`[]`))
	})

	_, err := c.RecentTrades(context.Background(), "0xabc", 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"user": "0xabc", "type": "TRADE", "limit": "5", "sortDirection": "desc",
	}, gotQuery)
}

func TestRecentTradesBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"t2","side":"BUY"},{"id":"t1","side":"SELL"}]`))
	})

	trades, err := c.RecentTrades(context.Background(), "0xabc", 5)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t2", trades[0]["id"])
	assert.Equal(t, "t1", trades[1]["id"])
}

func TestRecentTradesEnvelopeShapes(t *testing.T) {
	for _, body := range []string{
		`{"history":[{"id":"t1"}]}`,
		`{"data":[{"id":"t1"}]}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		trades, err := c.RecentTrades(context.Background(), "0xabc", 5)
		require.NoError(t, err, "body %s", body)
		require.Len(t, trades, 1)
		assert.Equal(t, "t1", trades[0]["id"])
	}
}

func TestRecentTradesEmptyAndNullBodies(t *testing.T) {
	for _, body := range []string{``, `null`, `[]`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		trades, err := c.RecentTrades(context.Background(), "0xabc", 5)
		require.NoError(t, err, "body %q", body)
		assert.Empty(t, trades)
	}
}

func TestRecentTradesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.RecentTrades(context.Background(), "0xabc", 5)
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindStatus, te.Kind)
	assert.Equal(t, http.StatusTooManyRequests, te.Status)
}

func TestRecentTradesMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	})

	_, err := c.RecentTrades(context.Background(), "0xabc", 5)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindBody, te.Kind)
}

func TestRecentTradesRejectsBadLimit(t *testing.T) {
	c, err := NewClient(brcfg.SourceConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	_, err = c.RecentTrades(context.Background(), "0xabc", 0)
	assert.Error(t, err)
}
