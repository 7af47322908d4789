package clob

import (
	"context"
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
	c, err := NewClient(brcfg.ClobConfig{BaseURL: srv.URL, TimeoutSeconds: 2})
	require.NoError(t, err)
	return c
}

func TestGetOrderBookParsesAndSortsLevels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
		// 上游把价格和数量都编码成字符串
		w.Write([]byte(`{
			"bids": [{"price":"0.55","size":"10"},{"price":"0.58","size":"3"}],
			"asks": [{"price":"0.64","size":"7"},{"price":"0.61","size":"2"}]
		}`))
	})

	book, err := c.GetOrderBook(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", book.TokenID)

	require.Len(t, book.Bids, 2)
	assert.InDelta(t, 0.58, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 3.0, book.Bids[0].Size, 1e-9)

	require.Len(t, book.Asks, 2)
	assert.InDelta(t, 0.61, book.Asks[0].Price, 1e-9)
	assert.InDelta(t, 2.0, book.Asks[0].Size, 1e-9)
}

func TestGetOrderBookDropsZeroLevels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[{"price":"0","size":"5"},{"price":"0.40","size":"0"}],"asks":[]}`))
	})

	book, err := c.GetOrderBook(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
}

func TestGetOrderBookRejectsEmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	_, err := c.GetOrderBook(context.Background(), "  ")
	assert.Error(t, err)
}

func TestServerTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time", r.URL.Path)
		w.Write([]byte(`1756700000`))
	})

	ts, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1756700000), ts.Unix())
}

func TestServerTimeRejectsBadBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oops":true}`))
	})
	_, err := c.ServerTime(context.Background())
	assert.Error(t, err)
}
