package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const typeBalanceUpdate = "balance_update"

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Watch streams balance updates to fn until ctx is done or the server closes the
// connection. Updates missed while disconnected are not replayed; callers should
// fetch Balance after reconnecting.
func (c *Client) Watch(ctx context.Context, fn func(Balance)) error {
	url, err := c.websocketURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	c.authorize(header)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != typeBalanceUpdate {
			continue
		}

		var update Balance
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			continue
		}
		fn(update)
	}
}

func (c *Client) websocketURL() (string, error) {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws", nil
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws", nil
	default:
		return "", errors.New("client: base URL must be http or https")
	}
}
