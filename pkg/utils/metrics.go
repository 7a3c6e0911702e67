package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorbell_active_calls",
		Help: "Number of call sessions currently ringing or active",
	})

	RingEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorbell_ring_events_total",
		Help: "Total visitor ring events received",
	})

	PushesDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorbell_pushes_dispatched_total",
		Help: "Push deliveries published, by outcome",
	}, []string{"outcome"})

	NotificationsDisplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorbell_notifications_displayed_total",
		Help: "OS notifications successfully displayed by the delivery agent",
	})

	NotificationDisplayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorbell_notification_display_failures_total",
		Help: "OS notification display requests that failed",
	})

	RoutingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorbell_routing_messages_total",
		Help: "Routing messages sent after notification interactions, by path",
	}, []string{"path"})
)
