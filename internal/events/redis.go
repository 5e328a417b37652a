package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redisChannelPrefix = "wnf:games:"

func redisChannel(gameID int64) string {
	return fmt.Sprintf("%s%d", redisChannelPrefix, gameID)
}

type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries uint64
}

// ConnectRedis creates a client and pings it with exponential backoff.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	err := backoff.Retry(func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("addr", opts.Addr).Msg("Redis connection failed, retrying")
			return err
		}
		return nil
	}, policy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	log.Ctx(ctx).Info().Str("addr", opts.Addr).Msg("Redis client initialized")
	return client, nil
}

// RedisBus publishes events over Redis pub/sub so every server instance
// sees them.
type RedisBus struct {
	client *redis.Client
	buffer int
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, buffer: defaultSubscriberBuffer}
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannel(event.GameID), data).Err(); err != nil {
		return fmt.Errorf("publish event %s for game %d: %w", event.Type, event.GameID, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, gameID int64) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, redisChannel(gameID))
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe game %d: %w", gameID, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Event, b.buffer),
		done:   make(chan struct{}),
	}
	logger := log.Ctx(ctx).With().
		Str("component", "redis_bus").
		Int64("game_id", gameID).
		Logger()

	sub.wg.Add(1)
	go sub.forward(logger)
	return sub, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *redisSubscription) forward(logger zerolog.Logger) {
	defer s.wg.Done()
	defer close(s.ch)

	messages := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Discarding malformed event")
				continue
			}
			select {
			case s.ch <- event:
			case <-s.done:
				return
			default:
				logger.Warn().Str("event_type", string(event.Type)).Msg("Dropping event for slow subscriber")
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.wg.Wait()
	})
	return err
}
