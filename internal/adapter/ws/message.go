package ws

import (
	"encoding/json"

	"github.com/iho/wagerledger/internal/domain"
)

// Message types exchanged over the socket.
const (
	TypeBalanceUpdate = "balance_update"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Message is the envelope of every frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// BalanceUpdate is the payload of a balance_update frame.
type BalanceUpdate struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func encodeBalanceUpdate(delta domain.BalanceDelta) ([]byte, error) {
	data, err := json.Marshal(BalanceUpdate{
		Balance:  delta.NewBalance.Amount.StringFixed(delta.NewBalance.Currency.Precision()),
		Currency: string(delta.NewBalance.Currency),
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Type: TypeBalanceUpdate, Data: data})
}

var pongFrame = []byte(`{"type":"pong"}`)
