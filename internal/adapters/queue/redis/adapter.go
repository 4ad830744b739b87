package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eyewearops/syncdeck/internal/core/domain"
	"github.com/eyewearops/syncdeck/internal/core/ports"
)

const (
	JobQueueKey  = "syncdeck:job:queue"
	EventChannel = "syncdeck:job:events"
	StopChannel  = "syncdeck:job:stops"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(url string) (ports.JobQueue, ports.EventPubSub, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, nil, err
	}
	client := redis.NewClient(opts)
	adapter := &RedisAdapter{client: client}
	return adapter, adapter, client, nil
}

// Queue Implementation

func (r *RedisAdapter) Enqueue(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, JobQueueKey, data).Err()
}

func (r *RedisAdapter) Dequeue(ctx context.Context) (*domain.Job, error) {
	// Blocking pop with a short timeout so context cancellation is honored.
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res, err := r.client.BLPop(ctx, 1*time.Second, JobQueueKey).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Timeout, retry
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		// res[0] is key, res[1] is value
		var job domain.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}
}

// PubSub Implementation

func (r *RedisAdapter) PublishEvent(ctx context.Context, event domain.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, EventChannel, data).Err()
}

func (r *RedisAdapter) SubscribeEvents(ctx context.Context) (<-chan domain.StatusEvent, error) {
	pubsub := r.client.Subscribe(ctx, EventChannel)
	ch := make(chan domain.StatusEvent)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		for msg := range pubsub.Channel() {
			var event domain.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (r *RedisAdapter) PublishStop(ctx context.Context, jobID string) error {
	return r.client.Publish(ctx, StopChannel, jobID).Err()
}

func (r *RedisAdapter) SubscribeStop(ctx context.Context) (<-chan string, error) {
	pubsub := r.client.Subscribe(ctx, StopChannel)
	ch := make(chan string)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		for msg := range pubsub.Channel() {
			select {
			case ch <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
