package tones

// Kind identifies one of the fixed call-progress tone patterns.
type Kind string

const (
	// Ringback is the repeating two-stage descending chime played while a
	// call is unanswered.
	Ringback Kind = "ringback"
	// Connect is the single rising tone played when a call is answered.
	Connect Kind = "connect"
	// Disconnect is the single low tone played when a call ends or is declined.
	Disconnect Kind = "disconnect"
)

// Player is the capability interface the call state machine depends on.
//
// Play is fire-and-forget: implementations must never return an error and
// must never block call signaling on audio availability. A call stays fully
// functional without sound.
type Player interface {
	Play(kind Kind)
}

// NopPlayer discards all tones. Useful for headless environments and tests
// that do not assert on audio.
type NopPlayer struct{}

func (NopPlayer) Play(Kind) {}
