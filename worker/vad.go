package worker

import (
	"encoding/binary"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"sonodict/encoder"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes

	// Fraction of frames that must be voiced for a window to count as
	// containing speech. The energy gate already filtered by loudness;
	// this catches loud non-speech (keyboard, cough).
	vadSpeechRatio = 0.10
)

// voiceGate classifies whole windows. Unlike a streaming detector it
// holds no state between windows; each call is independent.
type voiceGate struct {
	vad *webrtcvad.VAD
}

func newVoiceGate() (*voiceGate, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &voiceGate{vad: v}, nil
}

// HasSpeech walks the window in 20ms frames and reports whether enough
// of them are voiced. A trailing partial frame is ignored.
func (g *voiceGate) HasSpeech(samples []int16) bool {
	frame := make([]byte, vadFrameBytes)
	samplesPerFrame := vadFrameBytes / 2

	var total, voiced int
	for off := 0; off+samplesPerFrame <= len(samples); off += samplesPerFrame {
		for i := 0; i < samplesPerFrame; i++ {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(samples[off+i]))
		}
		active, err := g.vad.Process(encoder.SampleRate, frame)
		if err != nil {
			continue
		}
		total++
		if active {
			voiced++
		}
	}
	if total == 0 {
		return false
	}
	return float64(voiced)/float64(total) >= vadSpeechRatio
}
