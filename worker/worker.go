// Package worker implements the capture-and-transcribe process. It owns
// the microphone and the model client and talks to the controller only
// through stdin/stdout, so a crash here never takes the UI down.
package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sonodict/audio"
	"sonodict/config"
	"sonodict/encoder"
	"sonodict/ipc"
	"sonodict/log"
	"sonodict/transcriber"
)

// CrashExitCode is what the worker exits with when SONODICT_WORKER_CRASH
// is set. Distinct from real failure codes so tests can assert on it.
const CrashExitCode = 197

const levelInterval = time.Second

type session struct {
	cfg *config.Config
	tr  transcriber.Transcriber
	enc encoder.Encoder
	vad *voiceGate
	out *ipc.Writer
}

// Run executes the worker loop until a STOP command arrives or the
// command stream closes. The command stream closing means the controller
// is gone; the worker must not outlive it.
func Run(cfg *config.Config, in io.Reader, outStream io.Writer) error {
	out := ipc.NewWriter(outStream)
	out.Send(ipc.Status(ipc.StatusLoading))

	tr, err := transcriber.New(cfg.Provider)
	if err != nil {
		out.Send(ipc.Errorf("transcriber: %v", err))
		return err
	}
	if cfg.Language != "" {
		tr.SetLanguage(cfg.Language)
	}
	if prompt := cfg.Prompt(); prompt != "" {
		tr.SetPrompt(prompt)
	}
	tr.Warm()

	enc, err := encoder.New(cfg.Format)
	if err != nil {
		out.Send(ipc.Errorf("encoder: %v", err))
		return err
	}

	actx, err := newAudioContext(cfg)
	if err != nil {
		out.Send(ipc.Errorf("audio init: %v", err))
		return err
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, cfg.InputDevice)
	if err != nil {
		out.Send(ipc.Errorf("device lookup: %v", err))
		return err
	}
	capture, err := actx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		BlockMs:    cfg.BlockMs,
	})
	if err != nil {
		out.Send(ipc.Errorf("open capture: %v", err))
		return err
	}
	defer capture.Close()

	if audio.IsBluetooth(capture.DeviceName()) {
		log.Warnf("bluetooth input %q, expect degraded quality", capture.DeviceName())
	}

	blocks := make(chan []byte, 256)
	capture.SetCallback(func(data []byte, _ uint32) {
		block := make([]byte, len(data))
		copy(block, data)
		select {
		case blocks <- block:
		default:
			// Loop is stalled on a slow upload; dropping audio beats
			// blocking the capture thread.
		}
	})
	if err := capture.Start(); err != nil {
		out.Send(ipc.Errorf("start capture: %v", err))
		return err
	}
	defer capture.Stop()

	s := &session{cfg: cfg, tr: tr, enc: enc, out: out}
	if cfg.VADFilter {
		vg, err := newVoiceGate()
		if err != nil {
			log.Warnf("vad unavailable: %v", err)
		} else {
			s.vad = vg
		}
	}

	log.SessionStart(tr.Name(), cfg.Format, capture.DeviceName())
	out.Send(ipc.Status(ipc.StatusListening))

	if os.Getenv("SONODICT_WORKER_CRASH") == "1" {
		log.Error("simulated crash requested")
		os.Exit(CrashExitCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ipc.ReadCommands(in, func(cmd string) {
			if cmd == ipc.CmdStop {
				cancel()
			}
		})
		// EOF: controller died or closed the pipe.
		cancel()
	}()

	gate := newWindowGate(cfg.MinSeconds)
	level := time.NewTicker(levelInterval)
	defer level.Stop()

	texts := 0
	for {
		select {
		case <-ctx.Done():
			log.SessionEnd(texts)
			out.Send(ipc.Status(ipc.StatusStopped))
			return nil
		case block := <-blocks:
			gate.Push(block)
			if gate.Full() {
				if s.handleWindow(ctx, gate.Take()) {
					texts++
				}
			}
		case <-level.C:
			out.Send(ipc.AudioLevel(gate.LevelRMS()))
		}
	}
}

// handleWindow gates, encodes and transcribes one full window. Reports
// whether it produced text.
func (s *session) handleWindow(ctx context.Context, samples []int16) bool {
	audioLen := float64(len(samples)) / float64(encoder.SampleRate)
	winRMS := rms(samples)

	if winRMS < s.cfg.EnergyThreshold {
		s.out.Send(ipc.Status(ipc.StatusNoSpeech))
		s.out.Send(ipc.Status(ipc.StatusListening))
		return false
	}
	if s.vad != nil && !s.vad.HasSpeech(samples) {
		s.out.Send(ipc.Status(ipc.StatusNoSpeech))
		s.out.Send(ipc.Status(ipc.StatusListening))
		return false
	}

	s.out.Send(ipc.Status(ipc.StatusTranscribing))
	normalize(samples)

	encStart := time.Now()
	data, err := s.enc.Encode(samples)
	encodeMs := float64(time.Since(encStart).Milliseconds())
	if err != nil {
		s.out.Send(ipc.Errorf("encode: %v", err))
		s.out.Send(ipc.Status(ipc.StatusListening))
		return false
	}

	trStart := time.Now()
	res, err := s.tr.Transcribe(ctx, data, s.enc.Ext())
	transcribeMs := float64(time.Since(trStart).Milliseconds())

	hasText := false
	if err != nil {
		if ctx.Err() == nil {
			s.out.Send(ipc.Errorf("transcription: %v", err))
		}
	} else if text := strings.TrimSpace(res.Text); text != "" {
		hasText = true
		s.out.Send(ipc.Text(text))
		log.TranscriptionText(text)
	} else {
		s.out.Send(ipc.Status(ipc.StatusNoSpeech))
	}

	log.Window(log.WindowMetrics{
		AudioLengthS: audioLen,
		WindowRMS:    winRMS,
		RawSizeKB:    float64(len(samples)*2) / 1024.0,
		UploadSizeKB: float64(len(data)) / 1024.0,
		EncodeMs:     encodeMs,
		TranscribeMs: transcribeMs,
	}, s.tr.Name(), s.cfg.Format, hasText)

	s.out.Send(ipc.Status(ipc.StatusListening))
	return hasText
}

// newAudioContext picks the capture backend. FAKE_WAV switches to the
// replay source; the value "silence" means a source with no recorded
// audio at all.
func newAudioContext(cfg *config.Config) (audio.Context, error) {
	if cfg.FakeWAV != "" {
		path := cfg.FakeWAV
		if path == "silence" {
			path = ""
		}
		fctx, err := audio.NewFakeContext(path, true)
		if err != nil {
			return nil, fmt.Errorf("fake capture: %w", err)
		}
		return fctx, nil
	}
	return audio.NewContext()
}
