package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/plan-engine/plan"
)

// DefaultChannel is the pub/sub channel carrying case invalidations.
const DefaultChannel = "plan.invalidations"

// =============================================================================
// REDIS FEED - Pub/sub transport for multi-node deployments
// =============================================================================

type Redis struct {
	client  *redis.Client
	channel string
	log     *logrus.Logger
	cancel  context.CancelFunc
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, redisURL, channel string, log *logrus.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: client, channel: channel, log: log}, nil
}

// Subscribe consumes invalidation messages until the context is canceled.
// Message payload is the case id.
func (r *Redis) Subscribe(ctx context.Context, fn Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.log.WithField("case_id", msg.Payload).Debug("invalidation received")
				fn(plan.CaseID(msg.Payload))
			}
		}
	}()
	return nil
}

// Publish emits an invalidation for a case.
func (r *Redis) Publish(ctx context.Context, caseID plan.CaseID) error {
	return r.client.Publish(ctx, r.channel, string(caseID)).Err()
}

func (r *Redis) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	return r.client.Close()
}
