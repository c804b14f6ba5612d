package redis

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/wagerledger/internal/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	deltas []domain.BalanceDelta
}

func (n *recordingNotifier) OnBalanceChanged(_ context.Context, delta domain.BalanceDelta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deltas = append(n.deltas, delta)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.deltas)
}

func (n *recordingNotifier) last() domain.BalanceDelta {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deltas[len(n.deltas)-1]
}

func TestBalanceRelay_DeliversAcrossInstances(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	const channel = "test:balance"

	localA, localB := &recordingNotifier{}, &recordingNotifier{}
	relayA := NewBalanceRelay(client, channel, "a", localA, zerolog.Nop(), nil)
	relayB := NewBalanceRelay(client, channel, "b", localB, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 2
	}, time.Second, 10*time.Millisecond)

	relayA.OnBalanceChanged(ctx, domain.BalanceDelta{
		UserID:     "u1",
		NewBalance: domain.MustMoney("125.50", domain.BDT),
		Reason:     domain.ReasonDeposit,
	})

	require.Equal(t, 1, localA.count())
	require.Eventually(t, func() bool { return localB.count() == 1 }, time.Second, 10*time.Millisecond)

	got := localB.last()
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.BDT, got.NewBalance.Currency)
	assert.True(t, got.NewBalance.Amount.Equal(decimal.RequireFromString("125.50")))
	assert.Equal(t, domain.ReasonDeposit, got.Reason)

	// The publisher never hears its own echo.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, localA.count())
}

func TestBalanceRelay_LocalDeliveryWithoutRedis(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()
	mr.Close()

	local := &recordingNotifier{}
	relay := NewBalanceRelay(client, "test:balance", "a", local, zerolog.Nop(), nil)

	relay.OnBalanceChanged(context.Background(), domain.BalanceDelta{
		UserID:     "u1",
		NewBalance: domain.MustMoney("1", domain.USD),
		Reason:     domain.ReasonWin,
	})

	assert.Equal(t, 1, local.count())
}

// newStalledRedis returns the address of a server that accepts connections and
// never answers.
func newStalledRedis(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	return ln.Addr().String()
}

func TestBalanceRelay_SlowRedisDoesNotStallNotify(t *testing.T) {
	client := redislib.NewClient(&redislib.Options{
		Addr:                  newStalledRedis(t),
		ContextTimeoutEnabled: true,
		MaxRetries:            -1,
	})
	defer client.Close()

	local := &recordingNotifier{}
	relay := NewBalanceRelay(client, "test:balance", "a", local, zerolog.Nop(), nil,
		WithPublishTimeout(50*time.Millisecond))

	start := time.Now()
	relay.OnBalanceChanged(context.Background(), domain.BalanceDelta{
		UserID:     "u1",
		NewBalance: domain.MustMoney("10", domain.BDT),
		Reason:     domain.ReasonBet,
	})

	assert.Equal(t, 1, local.count(), "local sockets must still get the delta")
	assert.Less(t, time.Since(start), time.Second, "publish must give up after its timeout")
}
