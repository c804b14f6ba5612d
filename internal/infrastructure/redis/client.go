package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options override what the URL leaves at go-redis defaults.
type Options struct {
	// ClientName is reported by CLIENT LIST so instances can be told apart.
	ClientName  string
	PoolSize    int
	DialTimeout time.Duration
	PingTimeout time.Duration
}

const defaultPingTimeout = 3 * time.Second

// NewClient creates a client from a redis:// URL and verifies it answers PING
// before returning. The client is closed again when the ping fails.
func NewClient(ctx context.Context, redisURL string, o Options) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if o.ClientName != "" {
		opts.ClientName = o.ClientName
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.DialTimeout > 0 {
		opts.DialTimeout = o.DialTimeout
	}
	// Callers bound individual commands with context deadlines.
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	pingTimeout := o.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}

// Check returns a readiness probe for client.
func Check(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
