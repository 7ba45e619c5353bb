package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	trades := parseMessage([]byte(`{"type":"trade","data":[{"s":"AAPL","p":190.5,"v":12,"t":1709542800123}]}`))
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0].Symbol)
	assert.Equal(t, int64(1709542800123), trades[0].Timestamp)
	assert.Equal(t, 12.0, trades[0].Volume)

	trades = parseMessage([]byte(`{"type":"trade","data":[{"s":"","p":1,"v":1,"t":1},{"s":"MSFT","p":2,"v":1,"t":2}]}`))
	require.Len(t, trades, 1, "entries without a symbol are dropped")
	assert.Equal(t, "MSFT", trades[0].Symbol)

	assert.Nil(t, parseMessage([]byte(`{"type":"ping"}`)))
	assert.Nil(t, parseMessage([]byte(`not json`)))
}

func TestStreamURLEscapesToken(t *testing.T) {
	c := New("a b&c", "wss://ws.finnhub.io", nil, time.Second, 0, nil)
	u, err := c.streamURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.finnhub.io?token=a+b%26c", u)
}

func TestClientStreamsTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var sub map[string]string
		require.NoError(t, conn.ReadJSON(&sub))
		subscribed <- sub["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"trade","data":[{"s":"AAPL","p":1,"v":2,"t":1000},{"s":"AAPL","p":1.01,"v":3,"t":1001}]}`))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New("secret", url, []string{"AAPL"}, time.Millisecond, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "AAPL", <-subscribed)

	trades, errs := c.Read(ctx)
	var got []int64
	for tr := range trades {
		got = append(got, tr.Timestamp)
	}
	assert.Equal(t, []int64{1000, 1001}, got)
	assert.Error(t, <-errs, "server hang-up surfaces as a read error")

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
