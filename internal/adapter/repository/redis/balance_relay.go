package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
	"github.com/iho/wagerledger/internal/usecase"
)

// DefaultPublishTimeout bounds one cross-instance publish. The ledger notifies
// while it holds the user's lock.
const DefaultPublishTimeout = 250 * time.Millisecond

// BalanceRelay implements usecase.BalanceNotifier across instances. Deltas are
// delivered to the local notifier immediately and published on a Redis channel;
// Run delivers deltas published by other instances.
type BalanceRelay struct {
	client         *redis.Client
	channel        string
	origin         string
	local          usecase.BalanceNotifier
	publishTimeout time.Duration
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

// RelayOption configures a BalanceRelay.
type RelayOption func(*BalanceRelay)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) RelayOption {
	return func(r *BalanceRelay) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

type relayMessage struct {
	Origin   string          `json:"origin"`
	UserID   string          `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency domain.Currency `json:"currency"`
	Reason   string          `json:"reason"`
}

// NewBalanceRelay creates a relay. origin must be unique per instance.
func NewBalanceRelay(
	client *redis.Client,
	channel, origin string,
	local usecase.BalanceNotifier,
	logger zerolog.Logger,
	m *metrics.Metrics,
	opts ...RelayOption,
) *BalanceRelay {
	r := &BalanceRelay{
		client:         client,
		channel:        channel,
		origin:         origin,
		local:          local,
		publishTimeout: DefaultPublishTimeout,
		logger:         logger.With().Str("component", "balance_relay").Logger(),
		metrics:        m,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnBalanceChanged delivers locally and publishes to other instances.
func (r *BalanceRelay) OnBalanceChanged(ctx context.Context, delta domain.BalanceDelta) {
	r.local.OnBalanceChanged(ctx, delta)

	payload, err := json.Marshal(relayMessage{
		Origin:   r.origin,
		UserID:   delta.UserID,
		Amount:   delta.NewBalance.Amount,
		Currency: delta.NewBalance.Currency,
		Reason:   delta.Reason,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("encode balance delta")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		r.logger.Warn().Err(err).Str("user_id", delta.UserID).Msg("publish balance delta failed")
		return
	}

	r.observe("out")
}

// Run subscribes to the channel until ctx is done.
func (r *BalanceRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so nothing published after Run
	// starts is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *BalanceRelay) handle(ctx context.Context, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn().Err(err).Msg("decode balance delta")
		return
	}

	if msg.Origin == r.origin {
		return
	}

	r.local.OnBalanceChanged(ctx, domain.BalanceDelta{
		UserID:     msg.UserID,
		NewBalance: domain.Money{Amount: msg.Amount, Currency: msg.Currency},
		Reason:     msg.Reason,
	})

	r.observe("in")
}

func (r *BalanceRelay) observe(direction string) {
	if r.metrics != nil {
		r.metrics.RemoteBroadcast.WithLabelValues(direction).Inc()
	}
}
