// Package relay mirrors broadcast frames onto a Redis channel so other
// deployments can follow the live feed without holding a WebSocket open.
package relay

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "relay")

// Channel carries every frame the hub broadcasts.
const Channel = "brute:events:processed_individual"

// Relay is a best-effort publisher. A nil *Relay is valid and publishes
// nothing, so callers can wire it unconditionally.
type Relay struct {
	rdb *redis.Client
}

// Connect parses a redis:// URL, verifies connectivity, and returns a relay.
func Connect(redisURL string) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis URL")
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "redis ping %s", opts.Addr)
	}

	log.WithField("addr", opts.Addr).Info("relay connected")
	return &Relay{rdb: rdb}, nil
}

// New wraps an existing client. Tests pair it with miniredis.
func New(rdb *redis.Client) *Relay {
	return &Relay{rdb: rdb}
}

// Publish mirrors one frame. Failures are logged and swallowed; the mirror
// must never stall the pipeline.
func (r *Relay) Publish(ctx context.Context, frame []byte) {
	if r == nil {
		return
	}
	if err := r.rdb.Publish(ctx, Channel, frame).Err(); err != nil {
		log.WithError(err).Warn("relay publish failed")
	}
}

func (r *Relay) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}
