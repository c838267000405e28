package worker

import (
	"encoding/binary"
	"math"

	"sonodict/encoder"
)

// windowGate accumulates capture blocks until a transcription window is
// full. Window length is a tuning knob (MIN_SECONDS), not policy; the
// gate just counts samples.
type windowGate struct {
	target   int
	samples  []int16
	levelRMS float64
}

func newWindowGate(minSeconds float64) *windowGate {
	target := int(float64(encoder.SampleRate) * minSeconds)
	return &windowGate{
		target:  target,
		samples: make([]int16, 0, target),
	}
}

// Push appends one capture block (s16le bytes) and updates the level
// readout. A trailing odd byte is dropped.
func (g *windowGate) Push(block []byte) {
	n := len(block) / 2
	start := len(g.samples)
	for i := 0; i < n; i++ {
		g.samples = append(g.samples, int16(binary.LittleEndian.Uint16(block[i*2:])))
	}
	if n > 0 {
		g.levelRMS = rms(g.samples[start:])
	}
}

func (g *windowGate) Full() bool { return len(g.samples) >= g.target }

// Take returns the accumulated window and resets the gate.
func (g *windowGate) Take() []int16 {
	w := g.samples
	g.samples = make([]int16, 0, g.target)
	return w
}

// LevelRMS is the energy of the most recent block, for the level meter.
func (g *windowGate) LevelRMS() float64 { return g.levelRMS }

// rms computes root-mean-square energy of samples scaled to [-1, 1].
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// normalize scales the window in place so the peak sits at 90% of full
// scale. Quiet dictation gets boosted before upload; silence is left
// alone. Returns the applied gain.
func normalize(samples []int16) float64 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 1
	}
	gain := 0.9 * 32767.0 / float64(peak)
	if gain <= 1 {
		return 1
	}
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}
	return gain
}
