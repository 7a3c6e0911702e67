package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"doorbell-signal/internal/push"
	"doorbell-signal/internal/subscription"
	"doorbell-signal/internal/transport"
	"doorbell-signal/pkg/utils"
)

// RingEvent is a visitor's doorbell press, arriving via the public webhook or
// the device MQTT feed.
type RingEvent struct {
	PropertyID   string `json:"property_id"`
	PropertyName string `json:"property_name"`
	CallerLabel  string `json:"caller_label,omitempty"`

	// RoomName is the conferencing room for this attempt. Generated when the
	// device did not supply one.
	RoomName string `json:"room_name,omitempty"`
}

// Subscribers resolves the property's subscriber set.
type Subscribers interface {
	ListByProperty(ctx context.Context, propertyID string) ([]subscription.Subscription, error)
}

// PushPublisher delivers one push event to the background delivery agent
// side. Production is the Redis bus.
type PushPublisher interface {
	PublishPush(ctx context.Context, evt transport.PushEvent) error
}

// Activity records ring events; best-effort.
type Activity interface {
	LogRing(ctx context.Context, propertyID, callerLabel, roomName string) error
}

// Dispatcher turns one visitor ring into one push delivery per subscribed
// device. Per-target failures are logged and counted but never abort the
// remaining fan-out: one dead registration must not silence the others.
type Dispatcher struct {
	subs     Subscribers
	pub      PushPublisher
	activity Activity
	tags     *push.TagSource
	clock    func() time.Time
	log      *slog.Logger
}

// Options wires a Dispatcher.
type Options struct {
	Subscribers Subscribers
	Publisher   PushPublisher
	Activity    Activity
	Tags        *push.TagSource
	Clock       func() time.Time
	Logger      *slog.Logger
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		subs:     opts.Subscribers,
		pub:      opts.Publisher,
		activity: opts.Activity,
		tags:     opts.Tags,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if d.tags == nil {
		d.tags = push.NewTagSource()
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// DispatchRing fans the ring out to every subscriber and returns how many
// deliveries were published.
func (d *Dispatcher) DispatchRing(ctx context.Context, evt RingEvent) (int, error) {
	if evt.PropertyID == "" {
		return 0, fmt.Errorf("dispatch: property_id required")
	}
	if evt.CallerLabel == "" {
		evt.CallerLabel = "Visitor"
	}
	if evt.RoomName == "" {
		evt.RoomName = "room-" + uuid.NewString()
	}

	utils.RingEventsTotal.Inc()
	if d.activity != nil {
		if err := d.activity.LogRing(ctx, evt.PropertyID, evt.CallerLabel, evt.RoomName); err != nil {
			d.log.Warn("ring activity log failed", "property", evt.PropertyID, "err", err)
		}
	}

	subs, err := d.subs.ListByProperty(ctx, evt.PropertyID)
	if err != nil {
		return 0, fmt.Errorf("dispatch: resolving subscribers: %w", err)
	}
	if len(subs) == 0 {
		d.log.Info("ring with no subscribers", "property", evt.PropertyID)
		return 0, nil
	}

	body := fmt.Sprintf("%s is at the door.", evt.CallerLabel)
	if evt.PropertyName != "" {
		body = fmt.Sprintf("%s is ringing at %s", evt.CallerLabel, evt.PropertyName)
	}

	payload := push.Encode(push.Payload{
		Title: "🔔 " + evt.CallerLabel,
		Body:  body,
		Tag:   d.tags.Next(),
		Data: push.RoutingData{
			RoomName:     evt.RoomName,
			PropertyName: evt.PropertyName,
		},
	})
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("dispatch: encoding payload: %w", err)
	}

	delivered := 0
	for _, sub := range subs {
		pushEvt := transport.PushEvent{
			SubscriptionID: sub.ID,
			Body:           raw,
			ReceivedAt:     d.clock().UTC(),
		}
		if err := d.pub.PublishPush(ctx, pushEvt); err != nil {
			utils.PushesDispatchedTotal.WithLabelValues("error").Inc()
			d.log.Error("push publish failed", "subscription", sub.ID, "err", err)
			continue
		}
		utils.PushesDispatchedTotal.WithLabelValues("ok").Inc()
		delivered++
	}

	d.log.Info("ring dispatched",
		"property", evt.PropertyID,
		"room", evt.RoomName,
		"subscribers", len(subs),
		"delivered", delivered,
	)
	return delivered, nil
}
