package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Deposit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wallet/deposit", r.URL.Path)
		assert.Equal(t, "player-1", r.Header.Get(userIDHeader))
		assert.NotEmpty(t, r.Header.Get(idempotencyKeyHeader))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "50", body["amount"])
		assert.Equal(t, "USD", body["currency"])

		_, _ = w.Write([]byte(`{"balance":"5500.00","currency":"BDT"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithUserID("player-1"))

	bal, err := c.Deposit(context.Background(), decimal.NewFromInt(50), "USD")
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(5500)))
	assert.Equal(t, "BDT", bal.Currency)
}

func TestClient_Play(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"round":{"id":"r1","gameType":"dice","betAmount":"10.00","winAmount":"17.50","currency":"BDT","multiplier":"1.75","isWin":true},"balance":"107.50","currency":"BDT"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, WithToken("tok")).Play(context.Background(), "dice", decimal.NewFromInt(10), "BDT")
	require.NoError(t, err)
	require.NotNil(t, res.Round)
	assert.True(t, res.Round.IsWin)
	assert.True(t, res.Round.Multiplier.Equal(decimal.RequireFromString("1.75")))
	assert.True(t, res.Balance.Balance.Equal(decimal.RequireFromString("107.5")))
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"bet failed","message":"insufficient funds"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Bet(context.Background(), "slots", decimal.NewFromInt(10), "BDT")
	require.Error(t, err)
	assert.True(t, IsInsufficientFunds(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bet failed", apiErr.Code)
	assert.Equal(t, "insufficient funds", apiErr.Message)
}

func TestClient_Watch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Equal(t, "player-1", r.Header.Get(userIDHeader))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance_update","data":{"balance":"90.00","currency":"BDT"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance_update","data":{"balance":"107.50","currency":"BDT"}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	var updates []Balance
	err := New(srv.URL, WithUserID("player-1")).Watch(context.Background(), func(b Balance) {
		updates = append(updates, b)
	})
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.True(t, updates[0].Balance.Equal(decimal.NewFromInt(90)))
	assert.True(t, updates[1].Balance.Equal(decimal.RequireFromString("107.5")))
}

func TestClient_WatchStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(srv.URL).Watch(ctx, func(Balance) {})
	assert.NoError(t, err)
}

func TestClient_WebsocketURL(t *testing.T) {
	u, err := New("https://api.example.com/").websocketURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/ws", u)

	_, err = New("ftp://nope").websocketURL()
	assert.Error(t, err)
}
