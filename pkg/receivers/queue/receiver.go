// Package queue drains normalized platform events from a Redis list into the
// event bus, for deployments where the webhook normalizer enqueues to Redis
// instead of Kafka.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dmflow/dmflow/pkg/eventbus"
	"github.com/dmflow/dmflow/pkg/events"
)

const popTimeout = 1 * time.Second

// Config connects the receiver to its Redis list.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Receiver pops platform events off a Redis list and publishes them to the
// event bus.
type Receiver struct {
	config Config
	client redis.UniversalClient
	bus    eventbus.EventPublisher
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewReceiver(ctx context.Context, config Config, bus eventbus.EventPublisher, logger *slog.Logger) (*Receiver, error) {
	if config.Queue == "" {
		return nil, errors.New("queue receiver queue name is required")
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	receiver := &Receiver{
		config: config,
		client: client,
		bus:    bus,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", config.Queue,
		),
	}

	receiver.logger.InfoContext(ctx, "Connected to Redis", "addr", config.Addr, "db", config.DB)

	return receiver, nil
}

func (r *Receiver) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Starting queue receiver")

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue receiver stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue receiver")

			return
		default:
			if err := r.processMessage(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, popTimeout, r.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	event := &events.PlatformEvent{}
	if err := json.Unmarshal([]byte(result[1]), event); err != nil {
		return fmt.Errorf("failed to decode platform event: %w", err)
	}

	if err := event.Validate(); err != nil {
		r.logger.WarnContext(ctx, "Dropping invalid platform event", "error", err)

		return nil
	}

	r.logger.InfoContext(ctx, "Received platform event",
		"account_id", event.AccountID, "trigger_type", event.TriggerType)

	return r.bus.Publish(ctx, event.AccountID, event)
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		return r.client.Close()
	}

	return nil
}
