package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel names on the Redis message plane. One subscriber set per property
// is handled at the dispatch layer; the plane itself is per-deployment.
const (
	channelPush    = "doorbell:push"
	channelRoute   = "doorbell:route"
	channelControl = "doorbell:control"

	// pendingRouteKey holds the staged route for the window-open path.
	pendingRouteKey = "doorbell:pending_route"
	pendingRouteTTL = 5 * time.Minute
)

// RedisBus carries push events, route messages, and control messages between
// the agent process and the application server over Redis pub/sub.
//
// PUBLISH returns the receiver count, which maps directly onto "enumerate all
// currently-open foreground router instances".
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) (*RedisBus, error) {
	if rdb == nil {
		return nil, errors.New("transport: redis client is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, log: log}, nil
}

// PublishPush delivers a push event to the agent side.
func (b *RedisBus) PublishPush(ctx context.Context, evt PushEvent) error {
	raw, err := MarshalPush(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelPush, raw).Err()
}

// SubscribePush streams push events until ctx is done.
func (b *RedisBus) SubscribePush(ctx context.Context) (<-chan PushEvent, error) {
	sub := b.rdb.Subscribe(ctx, channelPush)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan PushEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				evt, err := UnmarshalPush([]byte(m.Payload))
				if err != nil {
					b.log.Warn("push envelope unmarshal failed", "err", err)
					continue
				}
				out <- evt
			}
		}
	}()
	return out, nil
}

// Broadcast publishes a route message and returns how many router instances
// received it.
func (b *RedisBus) Broadcast(ctx context.Context, msg RouteMessage) (int, error) {
	raw, err := MarshalRoute(msg)
	if err != nil {
		return 0, err
	}
	n, err := b.rdb.Publish(ctx, channelRoute, raw).Result()
	return int(n), err
}

// OpenWindow stages the route for the application's startup path when no
// router instance is open. The key expires so a stale ring does not route a
// window opened much later.
func (b *RedisBus) OpenWindow(ctx context.Context, msg RouteMessage) error {
	raw, err := MarshalRoute(msg)
	if err != nil {
		return err
	}
	return b.rdb.Set(ctx, pendingRouteKey, raw, pendingRouteTTL).Err()
}

// TakePendingRoute atomically claims the staged route, if any.
func (b *RedisBus) TakePendingRoute(ctx context.Context) (RouteMessage, bool, error) {
	raw, err := b.rdb.GetDel(ctx, pendingRouteKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return RouteMessage{}, false, nil
	}
	if err != nil {
		return RouteMessage{}, false, err
	}
	msg, err := UnmarshalRoute(raw)
	if err != nil {
		return RouteMessage{}, false, err
	}
	return msg, true, nil
}

// SubscribeRoutes streams route messages to a foreground router process.
func (b *RedisBus) SubscribeRoutes(ctx context.Context) (<-chan RouteMessage, error) {
	sub := b.rdb.Subscribe(ctx, channelRoute)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan RouteMessage, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				msg, err := UnmarshalRoute([]byte(m.Payload))
				if err != nil {
					b.log.Warn("route message unmarshal failed", "err", err)
					continue
				}
				out <- msg
			}
		}
	}()
	return out, nil
}

// PublishControl sends a lifecycle control message to the agent.
func (b *RedisBus) PublishControl(ctx context.Context, msg ControlMessage) error {
	raw, err := MarshalControl(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelControl, raw).Err()
}

// SubscribeControl streams control messages on the agent side.
func (b *RedisBus) SubscribeControl(ctx context.Context) (<-chan ControlMessage, error) {
	sub := b.rdb.Subscribe(ctx, channelControl)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan ControlMessage, 4)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				msg, err := UnmarshalControl([]byte(m.Payload))
				if err != nil {
					b.log.Warn("control message unmarshal failed", "err", err)
					continue
				}
				out <- msg
			}
		}
	}()
	return out, nil
}
