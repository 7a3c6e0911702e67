package main

import (
	"doorbell-signal/internal/auth"
	"doorbell-signal/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to
// internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Visitor trigger (public). NOTE: this endpoint should sit behind a
	// device-authenticating proxy in production; the MQTT feed is the
	// primary path.
	r.POST("/webhooks/ring", h.Ring)

	// Token issuance.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		subs := v1.Group("/subscriptions")
		{
			subs.POST("", h.Subscribe)
			subs.DELETE("/:id", h.Unsubscribe)
			subs.GET("/status", h.SubscriptionStatus)
			subs.POST("/permission-denied", h.ReportPermissionDenied)
		}

		calls := v1.Group("/calls")
		{
			calls.POST("/start", h.StartInAppCall)
			calls.POST("/answer", h.AnswerCall)
			calls.POST("/decline", h.DeclineCall)
			calls.POST("/end", h.EndCall)
			calls.GET("/state", h.CallState)
		}

		props := v1.Group("/properties/:property_id", auth.RequirePropertyParam("property_id"))
		{
			props.GET("/activity", h.ListActivity)
		}
	}
}
