package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

type RedisConfig struct {
	Channel string
	Timeout time.Duration
	// Consecutive publish failures before the breaker opens.
	TripAfter uint32
	// How long the breaker stays open before letting a probe through.
	OpenFor time.Duration
}

type message struct {
	AccountID string    `json:"account_id"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// Redis publishes notifications as JSON on a pub/sub channel behind a circuit
// breaker and a per-publish timeout.
type Redis struct {
	client  *redis.Client
	cb      *gobreaker.CircuitBreaker
	channel string
	timeout time.Duration
	now     func() time.Time
}

func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.TripAfter == 0 {
		cfg.TripAfter = 5
	}
	if cfg.OpenFor == 0 {
		cfg.OpenFor = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "notify:" + cfg.Channel,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Default().Warn("notifier breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Redis{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(settings),
		channel: cfg.Channel,
		timeout: cfg.Timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Redis) Notify(ctx context.Context, accountID, msg string) error {
	payload, err := json.Marshal(message{AccountID: accountID, Message: msg, SentAt: r.now()})
	if err != nil {
		return fmt.Errorf("Notify: marshal: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, err = r.cb.Execute(func() (interface{}, error) {
		return nil, r.client.Publish(ctx, r.channel, payload).Err()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("Notify: %w", ErrCircuitOpen)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("Notify: %w", ErrTimeout)
		}
		return fmt.Errorf("Notify: publish: %w", err)
	}
	return nil
}

// PingContext reports whether the Redis server is reachable.
func (r *Redis) PingContext(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("PingContext: %w", err)
	}
	return nil
}
