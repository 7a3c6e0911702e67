package calls

import (
	"sync"
	"testing"
	"time"

	"doorbell-signal/internal/tones"
)

// recordingPlayer counts tone playbacks per kind.
type recordingPlayer struct {
	mu    sync.Mutex
	plays map[tones.Kind]int
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{plays: map[tones.Kind]int{}}
}

func (p *recordingPlayer) Play(kind tones.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays[kind]++
}

func (p *recordingPlayer) count(kind tones.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays[kind]
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSession(p tones.Player, clk *fakeClock) *Session {
	return NewSession(Options{
		Player: p,
		Clock:  clk.now,
		// Long intervals so background tickers never fire during a test;
		// tick behavior is exercised via onRingTick/onDurationTick directly.
		RingbackInterval: time.Hour,
		TickInterval:     time.Hour,
	})
}

func TestSession_HappyPathDurationFromClock(t *testing.T) {
	p := newRecordingPlayer()
	clk := newFakeClock()
	s := newTestSession(p, clk)

	if !s.StartIncomingCall("prop-1", "Lake House", "") {
		t.Fatalf("start rejected")
	}
	if s.State() != StateRinging {
		t.Fatalf("expected ringing, got %v", s.State())
	}
	if got := s.Snapshot().CallerLabel; got != DefaultCallerLabel {
		t.Fatalf("expected default caller label, got %q", got)
	}

	if !s.Answer() {
		t.Fatalf("answer rejected")
	}
	if s.State() != StateActive {
		t.Fatalf("expected active, got %v", s.State())
	}
	if p.count(tones.Connect) != 1 {
		t.Fatalf("expected one connect tone")
	}

	clk.advance(5 * time.Second)
	dur, ok := s.End()
	if !ok {
		t.Fatalf("end rejected")
	}
	if dur != 5 {
		t.Fatalf("expected 5s duration, got %d", dur)
	}
	if s.State() != StateEnded {
		t.Fatalf("expected ended, got %v", s.State())
	}
	if p.count(tones.Disconnect) != 1 {
		t.Fatalf("expected one disconnect tone")
	}
}

func TestSession_DurationFrozenAndReturnedOnce(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(tones.NopPlayer{}, clk)

	s.StartIncomingCall("p", "Home", "Courier")
	s.Answer()
	clk.advance(3 * time.Second)

	if dur, ok := s.End(); !ok || dur != 3 {
		t.Fatalf("expected (3, true), got (%d, %v)", dur, ok)
	}
	// Second End must not re-emit a duration.
	if dur, ok := s.End(); ok || dur != 0 {
		t.Fatalf("expected (0, false) on repeated end, got (%d, %v)", dur, ok)
	}
	// The frozen value stays observable.
	if got := s.Snapshot().DurationSeconds; got != 3 {
		t.Fatalf("expected frozen duration 3, got %d", got)
	}
}

func TestSession_DeclineEmitsNoDuration(t *testing.T) {
	p := newRecordingPlayer()
	clk := newFakeClock()
	s := newTestSession(p, clk)

	s.StartIncomingCall("p", "Home", "")
	clk.advance(10 * time.Second)
	if !s.Decline() {
		t.Fatalf("decline rejected")
	}
	if s.State() != StateEnded {
		t.Fatalf("expected ended, got %v", s.State())
	}
	if got := s.Snapshot().DurationSeconds; got != 0 {
		t.Fatalf("declined call must not accumulate duration, got %d", got)
	}
	if p.count(tones.Disconnect) != 1 {
		t.Fatalf("expected disconnect tone on decline")
	}
	// End after decline must not report anything.
	if _, ok := s.End(); ok {
		t.Fatalf("end after decline must be a no-op")
	}
}

func TestSession_OperationsWhileIdleAreNoops(t *testing.T) {
	p := newRecordingPlayer()
	s := newTestSession(p, newFakeClock())

	if s.Answer() {
		t.Fatalf("answer while idle must be a no-op")
	}
	if s.Decline() {
		t.Fatalf("decline while idle must be a no-op")
	}
	if _, ok := s.End(); ok {
		t.Fatalf("end while idle must be a no-op")
	}
	if p.count(tones.Connect)+p.count(tones.Disconnect) != 0 {
		t.Fatalf("no tones may play for no-op operations")
	}
}

func TestSession_DoubleAnswerIsIdempotent(t *testing.T) {
	p := newRecordingPlayer()
	clk := newFakeClock()
	s := newTestSession(p, clk)

	s.StartIncomingCall("p", "Home", "")
	if !s.Answer() {
		t.Fatalf("first answer rejected")
	}
	if s.Answer() {
		t.Fatalf("second answer must be a no-op")
	}
	if p.count(tones.Connect) != 1 {
		t.Fatalf("connect tone must not re-trigger, played %d times", p.count(tones.Connect))
	}

	clk.advance(2 * time.Second)
	if dur, _ := s.End(); dur != 2 {
		t.Fatalf("double answer must not distort duration, got %d", dur)
	}
}

func TestSession_SecondIncomingCallRejected(t *testing.T) {
	s := newTestSession(tones.NopPlayer{}, newFakeClock())

	if !s.StartIncomingCall("p", "Home", "") {
		t.Fatalf("first start rejected")
	}
	if s.StartIncomingCall("p2", "Cabin", "") {
		t.Fatalf("start while ringing must be rejected")
	}
	s.Answer()
	if s.StartIncomingCall("p2", "Cabin", "") {
		t.Fatalf("start while active must be rejected")
	}
}

func TestSession_StrayRingTickAfterTransitionIsNoop(t *testing.T) {
	p := newRecordingPlayer()
	s := newTestSession(p, newFakeClock())

	s.StartIncomingCall("p", "Home", "")
	staleEpoch := 1 // epoch captured by the ring loop at start
	s.Answer()

	ringsBefore := p.count(tones.Ringback)
	// Simulate a ring tick that was already in flight when Answer ran.
	if s.onRingTick(staleEpoch) {
		t.Fatalf("stale ring tick must report expiry")
	}
	if p.count(tones.Ringback) != ringsBefore {
		t.Fatalf("stale ring tick must not play audio")
	}
}

func TestSession_StrayDurationTickAfterEndIsNoop(t *testing.T) {
	clk := newFakeClock()
	s := newTestSession(tones.NopPlayer{}, clk)

	s.StartIncomingCall("p", "Home", "")
	s.Answer()
	activeEpoch := 2 // epoch captured by the tick loop at answer
	if !s.onDurationTick(activeEpoch) {
		t.Fatalf("tick during active must count")
	}

	clk.advance(time.Second)
	dur, _ := s.End()

	// A tick racing with End must neither count nor resurrect the counter.
	if s.onDurationTick(activeEpoch) {
		t.Fatalf("stale duration tick must report expiry")
	}
	if got := s.Snapshot().DurationSeconds; got != dur {
		t.Fatalf("duration changed after end: %d != %d", got, dur)
	}
}

func TestSession_StrayTickAfterDeclineIsNoop(t *testing.T) {
	p := newRecordingPlayer()
	s := newTestSession(p, newFakeClock())

	s.StartIncomingCall("p", "Home", "")
	staleEpoch := 1
	s.Decline()

	if s.onRingTick(staleEpoch) {
		t.Fatalf("ring tick after decline must be a no-op")
	}
	if p.count(tones.Ringback) != 1 { // only the initial ring at start
		t.Fatalf("no ringback may play after decline, got %d", p.count(tones.Ringback))
	}
}

func TestSession_RingbackRepeatsWhileRinging(t *testing.T) {
	p := newRecordingPlayer()
	s := NewSession(Options{
		Player:           p,
		RingbackInterval: 5 * time.Millisecond,
		TickInterval:     time.Hour,
	})

	s.StartIncomingCall("p", "Home", "")
	deadline := time.Now().Add(2 * time.Second)
	for p.count(tones.Ringback) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.count(tones.Ringback) < 3 {
		t.Fatalf("expected repeating ringback, got %d plays", p.count(tones.Ringback))
	}
	s.Decline()
}
