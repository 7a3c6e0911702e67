package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"doorbell-signal/internal/activity"
	"doorbell-signal/internal/auth"
	"doorbell-signal/internal/calls"
	"doorbell-signal/internal/config"
	"doorbell-signal/internal/dispatch"
	"doorbell-signal/internal/router"
	"doorbell-signal/internal/subscription"
	"doorbell-signal/internal/tones"
	"doorbell-signal/internal/transport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type capturePublisher struct {
	events []transport.PushEvent
}

func (p *capturePublisher) PublishPush(_ context.Context, evt transport.PushEvent) error {
	p.events = append(p.events, evt)
	return nil
}

type testEnv struct {
	h        Handlers
	actRepo  *activity.MemoryRepo
	pub      *capturePublisher
	clock    *time.Time
	engine   *gin.Engine
}

// identity injects a fixed owner identity in place of the JWT middleware.
func identity(propertyIDs ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "owner-1", propertyIDs)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Unix(1700000000, 0).UTC()
	env := &testEnv{clock: &now}

	subs := subscription.NewService(subscription.NewMemoryRepo())
	env.actRepo = activity.NewMemoryRepo()
	act := activity.NewService(env.actRepo)
	env.pub = &capturePublisher{}

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	rt := router.New(router.Options{
		NewSession: func() *calls.Session {
			return calls.NewSession(calls.Options{
				Player: tones.NopPlayer{},
				Clock:  func() time.Time { return *env.clock },
				// Long intervals keep timers quiet during tests.
				RingbackInterval: time.Hour,
				TickInterval:     time.Hour,
			})
		},
	})

	env.h = Handlers{
		Auth:     mgr,
		Subs:     subs,
		Activity: act,
		Router:   rt,
		Dispatcher: dispatch.New(dispatch.Options{
			Subscribers: subs,
			Publisher:   env.pub,
			Activity:    act,
		}),
		Accounts: func(userID, secret string) ([]string, bool) {
			if userID == "owner-1" && secret == "hunter2" {
				return []string{"prop-1"}, true
			}
			return nil, false
		},
	}

	r := gin.New()
	r.POST("/webhooks/ring", env.h.Ring)
	r.POST("/v1/auth/login", env.h.Login)
	v1 := r.Group("/v1")
	v1.Use(identity("prop-1"))
	{
		v1.POST("/subscriptions", env.h.Subscribe)
		v1.DELETE("/subscriptions/:id", env.h.Unsubscribe)
		v1.GET("/subscriptions/status", env.h.SubscriptionStatus)
		v1.POST("/subscriptions/permission-denied", env.h.ReportPermissionDenied)
		v1.POST("/calls/start", env.h.StartInAppCall)
		v1.POST("/calls/answer", env.h.AnswerCall)
		v1.POST("/calls/decline", env.h.DeclineCall)
		v1.POST("/calls/end", env.h.EndCall)
		v1.GET("/calls/state", env.h.CallState)
		props := v1.Group("/properties/:property_id", auth.RequirePropertyParam("property_id"))
		props.GET("/activity", env.h.ListActivity)
	}
	env.engine = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestLogin_IssuesTokens(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/login", gin.H{"user_id": "owner-1", "secret": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", resp)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/login", gin.H{"user_id": "owner-1", "secret": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRingWebhook_DispatchesToSubscribers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/subscriptions", gin.H{
		"property_id": "prop-1", "endpoint": "ep-1", "device_info": "phone",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/webhooks/ring", gin.H{
		"property_id": "prop-1", "property_name": "Lake House", "caller_label": "Courier",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("ring: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["delivered"] != 1 {
		t.Fatalf("expected 1 delivery, got %d", resp["delivered"])
	}
	if len(env.pub.events) != 1 {
		t.Fatalf("expected 1 push event, got %d", len(env.pub.events))
	}
}

func TestRingWebhook_RequiresPropertyID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhooks/ring", gin.H{"property_name": "Lake House"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubscribe_RejectsForeignProperty(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/subscriptions", gin.H{
		"property_id": "prop-9", "endpoint": "ep-1",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestSubscriptionStatus_DistinguishesDenialFromAbsence(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/subscriptions/status?property_id=prop-1&endpoint=ep-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != string(subscription.StatusNotSubscribed) {
		t.Fatalf("expected not_subscribed, got %q", resp["status"])
	}

	w = env.do(t, http.MethodPost, "/v1/subscriptions/permission-denied", gin.H{
		"property_id": "prop-1", "endpoint": "ep-1",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("report denial: expected 204, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/subscriptions/status?property_id=prop-1&endpoint=ep-1", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != string(subscription.StatusPermissionDenied) {
		t.Fatalf("expected permission_denied, got %q", resp["status"])
	}
}

func TestUnsubscribe_UnknownIDIs404(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/v1/subscriptions/nope?property_id=prop-1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCallLifecycle_EndReportsDurationToActivity(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/calls/start", gin.H{
		"property_id": "prop-1", "property_name": "Lake House", "caller_label": "Courier",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/calls/state", nil)
	var info calls.Info
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.State != calls.StateRinging {
		t.Fatalf("expected ringing, got %q", info.State)
	}

	w = env.do(t, http.MethodPost, "/v1/calls/answer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d", w.Code)
	}

	*env.clock = env.clock.Add(7 * time.Second)

	w = env.do(t, http.MethodPost, "/v1/calls/end", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", w.Code)
	}
	var resp map[string]int
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["duration_seconds"] != 7 {
		t.Fatalf("expected duration 7, got %d", resp["duration_seconds"])
	}

	recs := env.actRepo.Records()
	if len(recs) != 1 || recs[0].Type != activity.RecordCallCompleted {
		t.Fatalf("expected one completed record, got %+v", recs)
	}
	if recs[0].DurationSeconds != 7 {
		t.Fatalf("expected recorded duration 7, got %d", recs[0].DurationSeconds)
	}

	w = env.do(t, http.MethodGet, "/v1/calls/state", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.State != calls.StateIdle {
		t.Fatalf("expected idle after end, got %q", info.State)
	}
}

func TestDecline_LogsDeclinedRecord(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/v1/calls/start", gin.H{
		"property_id": "prop-1", "property_name": "Lake House",
	})
	w := env.do(t, http.MethodPost, "/v1/calls/decline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("decline: expected 200, got %d", w.Code)
	}

	recs := env.actRepo.Records()
	if len(recs) != 1 || recs[0].Type != activity.RecordCallDeclined {
		t.Fatalf("expected one declined record, got %+v", recs)
	}
}

func TestCallControl_ConflictWhenNoCall(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/calls/answer", "/v1/calls/decline", "/v1/calls/end"} {
		if w := env.do(t, http.MethodPost, path, nil); w.Code != http.StatusConflict {
			t.Errorf("%s: expected 409, got %d", path, w.Code)
		}
	}
}

func TestStartInAppCall_SecondCallConflicts(t *testing.T) {
	env := newTestEnv(t)

	body := gin.H{"property_id": "prop-1", "property_name": "Lake House"}
	if w := env.do(t, http.MethodPost, "/v1/calls/start", body); w.Code != http.StatusOK {
		t.Fatalf("first start: expected 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/calls/start", body); w.Code != http.StatusConflict {
		t.Fatalf("second start: expected 409, got %d", w.Code)
	}
}

func TestListActivity_ScopedByPropertyParam(t *testing.T) {
	env := newTestEnv(t)

	// A ring leaves a record behind regardless of subscribers.
	if w := env.do(t, http.MethodPost, "/webhooks/ring", gin.H{"property_id": "prop-1"}); w.Code != http.StatusAccepted {
		t.Fatalf("ring: expected 202, got %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/v1/properties/prop-1/activity", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Records []activity.Record `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Type != activity.RecordRing {
		t.Fatalf("expected one ring record, got %+v", resp.Records)
	}
}

func TestListActivity_ForeignPropertyIsForbidden(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/properties/prop-9/activity", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestEnvAccounts_ParsesAndVerifies(t *testing.T) {
	t.Setenv("OWNER_ACCOUNTS", "alice:pw1:prop-1|prop-2;bob:pw2:prop-3")
	resolve := EnvAccounts()

	props, ok := resolve("alice", "pw1")
	if !ok || len(props) != 2 || props[0] != "prop-1" {
		t.Fatalf("unexpected resolution: %v %v", props, ok)
	}
	if _, ok := resolve("alice", "wrong"); ok {
		t.Fatalf("wrong secret must not resolve")
	}
	if _, ok := resolve("carol", "pw"); ok {
		t.Fatalf("unknown user must not resolve")
	}
}
