package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func tone(freq float64, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return out
}

func TestNew(t *testing.T) {
	for _, format := range []string{"flac", "wav"} {
		t.Run(format, func(t *testing.T) {
			enc, err := New(format)
			if err != nil {
				t.Fatalf("New(%q): %v", format, err)
			}
			if enc.Ext() != format {
				t.Errorf("Ext() = %q, want %q", enc.Ext(), format)
			}
		})
	}
	if _, err := New("mp3"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWavLayout(t *testing.T) {
	samples := tone(440, SampleRate/10)
	data, err := NewWav().Encode(samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(data), wavHeaderSize+len(samples)*2)
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Error("bad RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data size = %d", got)
	}
	// First sample survives the round trip.
	if got := int16(binary.LittleEndian.Uint16(data[wavHeaderSize:])); got != samples[0] {
		t.Errorf("sample[0] = %d, want %d", got, samples[0])
	}
}

func TestFlacEncodesTone(t *testing.T) {
	// Non-aligned length exercises the partial final block.
	samples := tone(440, BlockSize+BlockSize/3)
	data, err := NewFlac().Encode(samples)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty flac output")
	}
	if !bytes.Equal(data[0:4], []byte("fLaC")) {
		t.Errorf("missing fLaC marker, got %q", data[0:4])
	}
}

func TestFlacEmptyWindow(t *testing.T) {
	data, err := NewFlac().Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected header-only flac stream")
	}
}
