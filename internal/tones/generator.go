package tones

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/zaf/g711"
)

// AudioSink receives synthesized audio frames (G.711 u-law) for playout.
//
// The production sink writes to the panel speaker channel; tests use a buffer.
type AudioSink interface {
	WriteFrame(ulaw []byte) error
}

// segment is one leg of a tone pattern: a sine sweep from StartHz to EndHz.
type segment struct {
	StartHz  float64
	EndHz    float64
	Duration time.Duration
	Gap      time.Duration // silence appended after the segment
}

// patterns are fixed; see Kind docs. Amplitudes are conservative to avoid
// clipping after u-law companding.
var patterns = map[Kind][]segment{
	Ringback: {
		{StartHz: 660, EndHz: 660, Duration: 180 * time.Millisecond, Gap: 60 * time.Millisecond},
		{StartHz: 520, EndHz: 520, Duration: 240 * time.Millisecond},
	},
	Connect: {
		{StartHz: 440, EndHz: 720, Duration: 160 * time.Millisecond},
	},
	Disconnect: {
		{StartHz: 260, EndHz: 260, Duration: 220 * time.Millisecond},
	},
}

const defaultSampleRate = 8000

// synthContext is the shared synthesis state. It is created once, lazily,
// and reused for every tone; it is never torn down during the process lifetime.
type synthContext struct {
	sampleRate int
}

// Generator synthesizes the fixed tone patterns without external audio assets
// and writes them to an AudioSink as u-law frames.
//
// All failures (sink unavailable, write rejected) are logged and swallowed.
type Generator struct {
	mu   sync.Mutex
	ctx  *synthContext
	sink AudioSink
	log  *slog.Logger

	sampleRate int
}

// Options configures a Generator. Zero values get safe defaults.
type Options struct {
	Sink       AudioSink
	SampleRate int
	Logger     *slog.Logger
}

func NewGenerator(opts Options) *Generator {
	g := &Generator{
		sink:       opts.Sink,
		sampleRate: opts.SampleRate,
		log:        opts.Logger,
	}
	if g.sampleRate <= 0 {
		g.sampleRate = defaultSampleRate
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Play synthesizes and writes one tone pattern. It never returns an error;
// a failed playout only produces a log line.
func (g *Generator) Play(kind Kind) {
	segs, ok := patterns[kind]
	if !ok {
		g.log.Warn("unknown tone kind", "kind", string(kind))
		return
	}

	ctx := g.context()
	if g.sink == nil {
		g.log.Debug("tone dropped, no audio sink", "kind", string(kind))
		return
	}

	frame := g711.EncodeUlaw(synthesize(ctx, segs))
	if err := g.sink.WriteFrame(frame); err != nil {
		g.log.Warn("tone playout failed", "kind", string(kind), "err", err)
	}
}

// context returns the shared synthesis context, creating it on first use.
func (g *Generator) context() *synthContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx == nil {
		g.ctx = &synthContext{sampleRate: g.sampleRate}
	}
	return g.ctx
}

// synthesize renders the segments as 16-bit little-endian LPCM.
func synthesize(ctx *synthContext, segs []segment) []byte {
	const amplitude = 0.35

	var out []byte
	for _, s := range segs {
		n := int(float64(ctx.sampleRate) * s.Duration.Seconds())
		for i := 0; i < n; i++ {
			t := float64(i) / float64(ctx.sampleRate)
			// Linear frequency ramp across the segment.
			frac := float64(i) / float64(n)
			hz := s.StartHz + (s.EndHz-s.StartHz)*frac
			v := amplitude * math.Sin(2*math.Pi*hz*t)
			sample := int16(v * math.MaxInt16)
			out = binary.LittleEndian.AppendUint16(out, uint16(sample))
		}
		gap := int(float64(ctx.sampleRate) * s.Gap.Seconds())
		for i := 0; i < gap; i++ {
			out = binary.LittleEndian.AppendUint16(out, 0)
		}
	}
	return out
}
