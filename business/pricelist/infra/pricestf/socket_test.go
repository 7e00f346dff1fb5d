package pricestf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
)

// newTestSocket stands up a REST server for token fetches and a websocket
// server running the given session, and returns a connected-ready manager.
func newTestSocket(t *testing.T, session func(ctx context.Context, conn *websocket.Conn)) *SocketManager {
	t.Helper()

	var authCalls atomic.Int64
	rest := http.NewServeMux()
	rest.HandleFunc("POST /auth/access", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		writeToken(w, "stream-token")
	})
	restServer := httptest.NewServer(rest)
	t.Cleanup(restServer.Close)

	wsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		session(r.Context(), conn)
	}))
	t.Cleanup(wsServer.Close)

	api, err := NewAPIClient(restServer.URL, time.Millisecond, testLogger())
	require.NoError(t, err)

	manager, err := NewSocketManager(SocketConfig{
		URL:            "ws" + strings.TrimPrefix(wsServer.URL, "http"),
		InitialBackoff: 10 * time.Millisecond,
	}, api, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	return manager
}

func TestSocketManager_AuthHandshakeAndPriceFlow(t *testing.T) {
	type authFrame struct {
		Type string `json:"type"`
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}

	gotToken := make(chan string, 1)
	manager := newTestSocket(t, func(ctx context.Context, conn *websocket.Conn) {
		// Demand in-band auth first, the way the upstream does on connect.
		err := conn.Write(ctx, websocket.MessageText,
			[]byte(`{"type":"AUTH_REQUIRED","data":{}}`))
		if err != nil {
			return
		}

		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var reply authFrame
		if json.Unmarshal(raw, &reply) == nil && reply.Type == "AUTH" {
			gotToken <- reply.Data.AccessToken
		}

		conn.Write(ctx, websocket.MessageText,
			[]byte(`{"type":"PRICE_UPDATED","data":{"sku":"5002;6","buyHalfScrap":18,"sellHalfScrap":20,"updatedAt":"2026-01-02T15:04:05Z"}}`))

		<-ctx.Done()
	})

	items := make(chan domain.Item, 1)
	manager.OnPriceUpdate(func(ctx context.Context, item domain.Item) {
		items <- item
	})

	require.NoError(t, manager.Connect(context.Background()))
	assert.True(t, manager.IsConnected())

	select {
	case token := <-gotToken:
		assert.Equal(t, "stream-token", token)
	case <-time.After(2 * time.Second):
		t.Fatal("no AUTH reply received")
	}

	select {
	case item := <-items:
		assert.Equal(t, "5002;6", item.SKU)
		require.NotNil(t, item.Buy)
		assert.Equal(t, "1", item.Buy.Metal.String())
	case <-time.After(2 * time.Second):
		t.Fatal("price update never reached the handler")
	}
}

func TestSocketManager_IgnoresUnknownMessages(t *testing.T) {
	manager := newTestSocket(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"SOMETHING_ELSE","data":{}}`))
		conn.Write(ctx, websocket.MessageText, []byte(`not json at all`))
		conn.Write(ctx, websocket.MessageText,
			[]byte(`{"type":"PRICE_UPDATED","data":{"sku":"160;3","buyHalfScrap":9,"sellHalfScrap":9,"updatedAt":"2026-01-02T15:04:05Z"}}`))
		<-ctx.Done()
	})

	items := make(chan domain.Item, 1)
	manager.OnPriceUpdate(func(ctx context.Context, item domain.Item) {
		items <- item
	})

	require.NoError(t, manager.Connect(context.Background()))

	select {
	case item := <-items:
		assert.Equal(t, "160;3", item.SKU, "good frames survive bad neighbors")
	case <-time.After(2 * time.Second):
		t.Fatal("price update never reached the handler")
	}
}

func TestIsAuthError(t *testing.T) {
	assert.False(t, isAuthError(nil))
	assert.False(t, isAuthError(context.Canceled))
	assert.True(t, isAuthError(errString("unexpected HTTP response: 401")))
	assert.True(t, isAuthError(errString("ws closed: policy violation")))
}

type errString string

func (e errString) Error() string { return string(e) }
