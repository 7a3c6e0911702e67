package httpapi

import (
	"errors"
	"net/http"
	"time"

	"doorbell-signal/internal/activity"
	"doorbell-signal/internal/auth"
	"doorbell-signal/internal/calls"
	"doorbell-signal/internal/dispatch"
	"doorbell-signal/internal/router"
	"doorbell-signal/internal/subscription"
	"doorbell-signal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Subs       *subscription.Service
	Activity   *activity.Service
	Router     *router.Router
	Dispatcher *dispatch.Dispatcher

	// Accounts resolves login credentials to an owner identity. Kept as a
	// function so tests can stub it without a user store.
	Accounts func(userID, secret string) ([]string, bool)
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

// Login issues a JWT token pair for a property owner.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Accounts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Secret == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, secret required"})
		return
	}
	propertyIDs, ok := h.Accounts(req.UserID, req.Secret)
	if !ok || len(propertyIDs) == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, propertyIDs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Ring webhook ---

type ringRequest struct {
	PropertyID   string `json:"property_id"`
	PropertyName string `json:"property_name"`
	CallerLabel  string `json:"caller_label"`
	RoomName     string `json:"room_name"`
}

// Ring is the public visitor trigger. A press with no usable body is still
// a press; only a missing property id is rejected.
func (h Handlers) Ring(c *gin.Context) {
	if h.Dispatcher == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch not configured"})
		return
	}
	var req ringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PropertyID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property_id required"})
		return
	}

	delivered, err := h.Dispatcher.DispatchRing(c.Request.Context(), dispatch.RingEvent{
		PropertyID:   req.PropertyID,
		PropertyName: req.PropertyName,
		CallerLabel:  req.CallerLabel,
		RoomName:     req.RoomName,
	})
	if err != nil {
		logger.FromGin(c).Error("ring dispatch failed", "property", req.PropertyID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}

// --- Subscriptions ---

type subscribeRequest struct {
	PropertyID string `json:"property_id"`
	Endpoint   string `json:"endpoint"`
	DeviceInfo string `json:"device_info"`
}

func (h Handlers) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !auth.AuthorizedForProperty(c.Request.Context(), req.PropertyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
		return
	}
	sub, err := h.Subs.Register(c.Request.Context(), req.PropertyID, req.Endpoint, req.DeviceInfo)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property_id, endpoint required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h Handlers) Unsubscribe(c *gin.Context) {
	propertyID := c.Query("property_id")
	if !auth.AuthorizedForProperty(c.Request.Context(), propertyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
		return
	}
	err := h.Subs.Unregister(c.Request.Context(), propertyID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		case errors.Is(err, subscription.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property_id, id required"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unsubscribe failed"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

type permissionDeniedRequest struct {
	PropertyID string `json:"property_id"`
	Endpoint   string `json:"endpoint"`
}

// ReportPermissionDenied records a client-side permission refusal so Status
// can distinguish it from never having subscribed.
func (h Handlers) ReportPermissionDenied(c *gin.Context) {
	var req permissionDeniedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !auth.AuthorizedForProperty(c.Request.Context(), req.PropertyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
		return
	}
	if err := h.Subs.MarkPermissionDenied(c.Request.Context(), req.PropertyID, req.Endpoint); err != nil {
		if errors.Is(err, subscription.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property_id, endpoint required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) SubscriptionStatus(c *gin.Context) {
	propertyID := c.Query("property_id")
	endpoint := c.Query("endpoint")
	if !auth.AuthorizedForProperty(c.Request.Context(), propertyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
		return
	}
	status, err := h.Subs.Status(c.Request.Context(), propertyID, endpoint)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property_id, endpoint required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// --- Call control ---

// propertyKey picks the activity-record key for the current call.
// Push-originated calls carry only the display name on the wire; the record
// is keyed by it when no id exists.
func propertyKey(info calls.Info) string {
	if info.PropertyID != "" {
		return info.PropertyID
	}
	return info.PropertyName
}

func (h Handlers) AnswerCall(c *gin.Context) {
	if !h.Router.Answer() {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no ringing call"})
		return
	}
	c.JSON(http.StatusOK, h.Router.Snapshot())
}

func (h Handlers) DeclineCall(c *gin.Context) {
	info := h.Router.Snapshot()
	room := h.Router.CurrentRoom()
	if !h.Router.Decline() {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no ringing call"})
		return
	}
	if h.Activity != nil {
		if err := h.Activity.LogDeclined(c.Request.Context(), propertyKey(info), info.CallerLabel, room); err != nil {
			logger.FromGin(c).Warn("decline activity log failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, h.Router.Snapshot())
}

// EndCall hangs up and persists the call duration. The duration comes out of
// the state machine exactly once; this handler is its only consumer.
func (h Handlers) EndCall(c *gin.Context) {
	info := h.Router.Snapshot()
	room := h.Router.CurrentRoom()
	dur, ok := h.Router.End()
	if !ok {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "no active call"})
		return
	}
	if h.Activity != nil {
		if err := h.Activity.LogCompleted(c.Request.Context(), propertyKey(info), info.CallerLabel, room, dur); err != nil {
			logger.FromGin(c).Warn("end activity log failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"duration_seconds": dur})
}

func (h Handlers) CallState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Snapshot())
}

type inAppCallRequest struct {
	PropertyID   string `json:"property_id"`
	PropertyName string `json:"property_name"`
	CallerLabel  string `json:"caller_label"`
}

// StartInAppCall rings the local context without any push involved, e.g.
// checking the door camera proactively.
func (h Handlers) StartInAppCall(c *gin.Context) {
	var req inAppCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !auth.AuthorizedForProperty(c.Request.Context(), req.PropertyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
		return
	}
	if req.CallerLabel == "" {
		req.CallerLabel = calls.DefaultCallerLabel
	}
	if !h.Router.TriggerInAppCall(req.PropertyID, req.PropertyName, req.CallerLabel) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already in progress"})
		return
	}
	c.JSON(http.StatusOK, h.Router.Snapshot())
}

// --- Activity ---

// ListActivity lists a property's recent history. Property access is checked
// by the route middleware before this runs.
func (h Handlers) ListActivity(c *gin.Context) {
	propertyID := c.Param("property_id")
	recs, err := h.Activity.ListByProperty(c.Request.Context(), propertyID, 100)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "activity lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}
