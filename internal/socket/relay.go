package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

const (
	relayDialTimeout = 3 * time.Second
	relayBuffer      = 256
)

type RedisOptions struct {
	Address  string
	Password string
	Channel  string
}

// RedisRelay carries observer messages between scheduler instances, so an
// observer attached to one node follows a call running on another.
type RedisRelay struct {
	log     *logger.Logger
	client  *redis.Client
	channel string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisRelay(ctx context.Context, opts RedisOptions, log *logger.Logger) (*RedisRelay, error) {
	if opts.Channel == "" {
		return nil, fmt.Errorf("redis relay: channel required")
	}
	rdb := redis.NewClient(&redis.Options{Addr: opts.Address, Password: opts.Password})
	pingCtx, cancel := context.WithTimeout(ctx, relayDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis relay ping %s: %w", opts.Address, err)
	}
	return &RedisRelay{
		log:     log.With("component", "RedisRelay", "channel", opts.Channel),
		client:  rdb,
		channel: opts.Channel,
	}, nil
}

// listen subscribes and hands every foreign call message to deliver until
// Close. The subscription is confirmed before listen returns.
func (r *RedisRelay) listen(deliver func(Message)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("redis relay already listening")
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return fmt.Errorf("redis relay subscribe: %w", err)
	}
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		defer sub.Close()
		incoming := sub.Channel(redis.WithChannelSize(relayBuffer))
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-incoming:
				if !ok {
					return
				}
				msg, err := decodeRelayed(raw.Payload)
				if err != nil {
					r.log.Warn("Dropping undecodable relayed message", "error", err)
					continue
				}
				deliver(msg)
			}
		}
	}(r.done)
	r.log.Info("Redis relay listening")
	return nil
}

func (r *RedisRelay) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode relayed message: %w", err)
	}
	return r.client.Publish(ctx, r.channel, raw).Err()
}

// Close stops listening, waits for the listener to exit and closes the client.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return r.client.Close()
}

// decodeRelayed accepts only call channels with an origin and a payload.
func decodeRelayed(payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, fmt.Errorf("decode relayed message: %w", err)
	}
	switch {
	case !strings.HasPrefix(msg.Channel, sessionPrefix):
		return Message{}, fmt.Errorf("relayed channel %q is not a call channel", msg.Channel)
	case msg.Origin == "":
		return Message{}, fmt.Errorf("relayed message on %s has no origin", msg.Channel)
	case len(msg.Payload) == 0:
		return Message{}, fmt.Errorf("relayed message on %s has no payload", msg.Channel)
	}
	return msg, nil
}
