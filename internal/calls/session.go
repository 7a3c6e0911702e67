package calls

import (
	"log/slog"
	"sync"
	"time"

	"doorbell-signal/internal/tones"
)

// Session owns the lifecycle of one incoming call attempt:
//
//	Idle --StartIncomingCall--> Ringing --Answer--> Active --End--> Ended
//	                            Ringing --Decline--> Ended
//
// Exactly one session is live per foreground context at a time; a second
// StartIncomingCall while Ringing/Active is rejected (no call-waiting).
//
// Two periodic tasks run while a session is live: the repeating ringback tone
// (every ringInterval while Ringing) and the 1-second duration tick (while
// Active). Both are cancelled deterministically on every exit transition; a
// tick already in flight when the state changes observes a stale epoch and
// does nothing. No audio or counter side effect can fire after the state has
// left Ringing/Active.
type Session struct {
	mu sync.Mutex

	state        State
	callerLabel  string
	propertyID   string
	propertyName string

	// durationSecs counts whole seconds while Active, for observers. The
	// value returned by End is derived from the clock so tick jitter cannot
	// accumulate.
	durationSecs int
	answeredAt   time.Time

	// epoch increments on every transition. Periodic tasks capture the epoch
	// they were started under and abandon ticks that outlived it.
	epoch int

	ringStop chan struct{}
	tickStop chan struct{}

	player tones.Player
	clock  func() time.Time
	log    *slog.Logger

	ringInterval time.Duration
	tickInterval time.Duration
}

// Options configures a Session. Zero values get safe defaults.
type Options struct {
	Player tones.Player
	Logger *slog.Logger

	// Clock is injectable for deterministic tests.
	Clock func() time.Time

	// RingbackInterval defaults to 1.5s, TickInterval to 1s.
	RingbackInterval time.Duration
	TickInterval     time.Duration
}

func NewSession(opts Options) *Session {
	s := &Session{
		state:        StateIdle,
		player:       opts.Player,
		clock:        opts.Clock,
		log:          opts.Logger,
		ringInterval: opts.RingbackInterval,
		tickInterval: opts.TickInterval,
	}
	if s.player == nil {
		s.player = tones.NopPlayer{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.ringInterval <= 0 {
		s.ringInterval = 1500 * time.Millisecond
	}
	if s.tickInterval <= 0 {
		s.tickInterval = time.Second
	}
	return s
}

// StartIncomingCall transitions Idle -> Ringing and starts the repeating
// ringback. callerLabel may be empty; a generic label is substituted.
//
// Returns false without side effects when the session is not Idle: a second
// incoming call for a context that is already ringing or active is rejected.
func (s *Session) StartIncomingCall(propertyID, propertyName, callerLabel string) bool {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}
	if callerLabel == "" {
		callerLabel = DefaultCallerLabel
	}
	s.state = StateRinging
	s.callerLabel = callerLabel
	s.propertyID = propertyID
	s.propertyName = propertyName
	s.durationSecs = 0
	s.epoch++
	epoch := s.epoch
	stop := make(chan struct{})
	s.ringStop = stop
	s.mu.Unlock()

	s.log.Info("call ringing", "property", propertyName, "caller", callerLabel)
	s.player.Play(tones.Ringback)
	go s.ringLoop(epoch, stop)
	return true
}

// Answer transitions Ringing -> Active: ringback stops, a single connect tone
// plays, and the duration counter starts. Answer on any other state is a
// no-op (duplicate UI events and at-least-once routing are tolerated).
func (s *Session) Answer() bool {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return false
	}
	s.stopRingLocked()
	s.state = StateActive
	s.answeredAt = s.clock()
	s.epoch++
	epoch := s.epoch
	stop := make(chan struct{})
	s.tickStop = stop
	prop := s.propertyName
	s.mu.Unlock()

	s.log.Info("call answered", "property", prop)
	s.player.Play(tones.Connect)
	go s.tickLoop(epoch, stop)
	return true
}

// Decline transitions Ringing -> Ended. No duration is meaningful and none is
// emitted. Decline outside Ringing is a no-op.
func (s *Session) Decline() bool {
	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		return false
	}
	s.stopRingLocked()
	s.state = StateEnded
	s.epoch++
	prop := s.propertyName
	s.mu.Unlock()

	s.log.Info("call declined", "property", prop)
	s.player.Play(tones.Disconnect)
	return true
}

// End transitions Active -> Ended and returns the accumulated whole-second
// duration exactly once (ok=true). The caller persists it as an activity
// record; the session itself never reports anywhere.
//
// End outside Active is a no-op returning (0, false).
func (s *Session) End() (int, bool) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return 0, false
	}
	s.stopTickLocked()
	s.state = StateEnded
	s.epoch++
	dur := int(s.clock().Sub(s.answeredAt) / time.Second)
	s.durationSecs = dur
	prop := s.propertyName
	s.mu.Unlock()

	s.log.Info("call ended", "property", prop, "duration_s", dur)
	s.player.Play(tones.Disconnect)
	return dur, true
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		State:           s.state,
		CallerLabel:     s.callerLabel,
		PropertyID:      s.propertyID,
		PropertyName:    s.propertyName,
		DurationSeconds: s.durationSecs,
	}
}

// Live reports whether the session currently occupies its context
// (Ringing or Active).
func (s *Session) Live() bool {
	st := s.State()
	return st == StateRinging || st == StateActive
}

func (s *Session) ringLoop(epoch int, stop <-chan struct{}) {
	t := time.NewTicker(s.ringInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !s.onRingTick(epoch) {
				return
			}
		}
	}
}

// onRingTick plays one ringback iteration. It returns false when the tick
// outlived its transition (stale epoch or state left Ringing).
func (s *Session) onRingTick(epoch int) bool {
	s.mu.Lock()
	ok := s.state == StateRinging && s.epoch == epoch
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.player.Play(tones.Ringback)
	return true
}

func (s *Session) tickLoop(epoch int, stop <-chan struct{}) {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !s.onDurationTick(epoch) {
				return
			}
		}
	}
}

// onDurationTick advances the observable duration counter by one second.
// Stale ticks are no-ops, same contract as onRingTick.
func (s *Session) onDurationTick(epoch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.epoch != epoch {
		return false
	}
	s.durationSecs++
	return true
}

func (s *Session) stopRingLocked() {
	if s.ringStop != nil {
		close(s.ringStop)
		s.ringStop = nil
	}
}

func (s *Session) stopTickLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}
