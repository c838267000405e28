package ipc

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRoundTripOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	sent := []Message{
		Status("loading"),
		AudioLevel(0.0123),
		Status("listening"),
		Text("probe placed on right lobe"),
		Error("transcribe error: boom"),
	}
	for _, m := range sent {
		if err := w.Send(m); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range sent {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF after drain, got %v", err)
	}
}

func TestReaderSkipsGarbage(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"status","msg":"listening"}`,
		`not json at all`,
		``,
		`{"no_type_field":true}`,
		`{"type":"text","text":"ok"}`,
		`{"type":"audio_lev`, // torn line at worker death
	}, "\n")

	r := NewReader(strings.NewReader(input))

	m, err := r.Next()
	if err != nil || m.Type != TypeStatus {
		t.Fatalf("first message = %+v, %v", m, err)
	}
	m, err = r.Next()
	if err != nil || m.Type != TypeText || m.Text != "ok" {
		t.Fatalf("second message = %+v, %v", m, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReadCommands(t *testing.T) {
	var got []string
	ReadCommands(strings.NewReader("  \nSTOP\n\nIGNORED\n"), func(cmd string) {
		got = append(got, cmd)
	})
	if len(got) != 2 || got[0] != CmdStop || got[1] != "IGNORED" {
		t.Errorf("commands = %v", got)
	}
}

func TestAudioLevelPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).Send(AudioLevel(0.25)); err != nil {
		t.Fatal(err)
	}
	m, err := NewReader(&buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != TypeAudioLevel || m.RMS != 0.25 {
		t.Errorf("got %+v", m)
	}
}
