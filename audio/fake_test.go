package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeTestWAV(t *testing.T, samples int) string {
	t.Helper()
	dataSize := samples * 2
	buf := make([]byte, WAVHeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	copy(buf[8:12], "WAVE")
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[WAVHeaderSize+i*2:], uint16(1000+i%100))
	}
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFakeCaptureFeedsAllAudio(t *testing.T) {
	const samples = 3000
	path := writeTestWAV(t, samples)

	ctx, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatal(err)
	}
	capture, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	fake := capture.(*FakeCapture)

	var mu sync.Mutex
	var total uint64
	capture.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		total += uint64(frameCount)
		mu.Unlock()
	})

	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fake.AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("AudioDone never fired")
	}

	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	if total < samples {
		t.Errorf("fed %d frames, want at least %d", total, samples)
	}
}

func TestFakeCaptureEmptySourceFeedsSilence(t *testing.T) {
	ctx, err := NewFakeContext("", false)
	if err != nil {
		t.Fatal(err)
	}
	capture, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan []byte, 1)
	capture.SetCallback(func(data []byte, _ uint32) {
		select {
		case got <- data:
		default:
		}
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	defer capture.Stop()

	select {
	case data := <-got:
		for _, b := range data {
			if b != 0 {
				t.Fatal("expected silence")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no silence blocks delivered")
	}
}

func TestFindDevice(t *testing.T) {
	ctx, err := NewFakeContext("", false)
	if err != nil {
		t.Fatal(err)
	}

	dev, err := FindDevice(ctx, "FAKE")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.Name != "fake" {
		t.Errorf("FindDevice(FAKE) = %v", dev)
	}

	dev, err = FindDevice(ctx, "")
	if err != nil || dev != nil {
		t.Errorf("empty name should mean default device, got %v, %v", dev, err)
	}

	dev, err = FindDevice(ctx, "no-such-mic")
	if err != nil || dev != nil {
		t.Errorf("unmatched name should mean default device, got %v, %v", dev, err)
	}
}

func TestIsBluetooth(t *testing.T) {
	for name, want := range map[string]bool{
		"AirPods Pro":          true,
		"Jabra Elite 65t":      true,
		"Built-in Microphone":  false,
		"USB Audio Device":     false,
		"WH-1000XM4 Hands-Free": true,
	} {
		if got := IsBluetooth(name); got != want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", name, got, want)
		}
	}
}
