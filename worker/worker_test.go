package worker

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"sonodict/config"
	"sonodict/encoder"
	"sonodict/ipc"
	"sonodict/transcriber"
)

func testConfig() *config.Config {
	return &config.Config{
		Format:          "wav",
		EnergyThreshold: 0.005,
		MinSeconds:      0.2,
		BlockMs:         250,
		FakeWAV:         "silence",
	}
}

func newTestSession(t *testing.T, tr transcriber.Transcriber) (*session, *bytes.Buffer) {
	t.Helper()
	enc, err := encoder.New("wav")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	return &session{
		cfg: testConfig(),
		tr:  tr,
		enc: enc,
		out: ipc.NewWriter(&buf),
	}, &buf
}

func drainMessages(t *testing.T, buf *bytes.Buffer) []ipc.Message {
	t.Helper()
	r := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	var msgs []ipc.Message
	for {
		m, err := r.Next()
		if err == io.EOF {
			return msgs
		}
		if err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, m)
	}
}

func TestHandleWindowSilenceProducesNoText(t *testing.T) {
	s, buf := newTestSession(t, transcriber.NewFake("should never appear", nil))

	if s.handleWindow(context.Background(), make([]int16, 8000)) {
		t.Fatal("silence window reported text")
	}

	msgs := drainMessages(t, buf)
	var sawNoSpeech bool
	for _, m := range msgs {
		if m.Type == ipc.TypeText {
			t.Errorf("unexpected text message: %q", m.Text)
		}
		if m.Type == ipc.TypeStatus && m.Msg == ipc.StatusNoSpeech {
			sawNoSpeech = true
		}
	}
	if !sawNoSpeech {
		t.Error("expected a no-speech status for a silent window")
	}
}

func TestHandleWindowSpeechProducesText(t *testing.T) {
	s, buf := newTestSession(t, transcriber.NewFake("liver appears normal", nil))

	if !s.handleWindow(context.Background(), toneSamples(440, 0.5, 500)) {
		t.Fatal("loud window reported no text")
	}

	msgs := drainMessages(t, buf)
	var gotText string
	var sawTranscribing, listeningLast bool
	for _, m := range msgs {
		switch {
		case m.Type == ipc.TypeText:
			gotText = m.Text
		case m.Type == ipc.TypeStatus && m.Msg == ipc.StatusTranscribing:
			sawTranscribing = true
		}
		listeningLast = m.Type == ipc.TypeStatus && m.Msg == ipc.StatusListening
	}
	if gotText != "liver appears normal" {
		t.Errorf("text = %q", gotText)
	}
	if !sawTranscribing {
		t.Error("missing transcribing status before upload")
	}
	if !listeningLast {
		t.Error("worker must return to listening after a window")
	}
}

func TestHandleWindowTranscriberError(t *testing.T) {
	s, buf := newTestSession(t, transcriber.NewFake("", io.ErrUnexpectedEOF))

	if s.handleWindow(context.Background(), toneSamples(440, 0.5, 500)) {
		t.Fatal("failed window reported text")
	}

	msgs := drainMessages(t, buf)
	var sawError, listeningLast bool
	for _, m := range msgs {
		if m.Type == ipc.TypeError {
			sawError = true
		}
		listeningLast = m.Type == ipc.TypeStatus && m.Msg == ipc.StatusListening
	}
	if !sawError {
		t.Error("expected an error message")
	}
	if !listeningLast {
		t.Error("worker must keep listening after a failed upload")
	}
}

// runWorker starts Run with piped stdio and returns a message channel plus
// the command writer.
func runWorker(t *testing.T, cfg *config.Config) (<-chan ipc.Message, io.WriteCloser, <-chan error) {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	msgR, msgW := io.Pipe()

	errCh := make(chan error, 1)
	go func() { errCh <- Run(cfg, cmdR, msgW) }()

	msgs := make(chan ipc.Message, 64)
	go func() {
		r := ipc.NewReader(msgR)
		for {
			m, err := r.Next()
			if err != nil {
				close(msgs)
				return
			}
			msgs <- m
		}
	}()

	t.Cleanup(func() {
		cmdW.Close()
		msgR.Close()
	})
	return msgs, cmdW, errCh
}

func waitStatus(t *testing.T, msgs <-chan ipc.Message, want string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				t.Fatalf("message stream closed while waiting for status %q", want)
			}
			if m.Type == ipc.TypeStatus && m.Msg == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for status %q", want)
		}
	}
}

func TestRunStopsOnCommand(t *testing.T) {
	t.Setenv("FAKE_TEXT", "scripted")
	msgs, cmdW, errCh := runWorker(t, testConfig())

	waitStatus(t, msgs, ipc.StatusLoading)
	waitStatus(t, msgs, ipc.StatusListening)

	io.WriteString(cmdW, ipc.CmdStop+"\n")
	waitStatus(t, msgs, ipc.StatusStopped)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after STOP")
	}
}

func TestRunExitsWhenCommandStreamCloses(t *testing.T) {
	t.Setenv("FAKE_TEXT", "scripted")
	msgs, cmdW, errCh := runWorker(t, testConfig())

	waitStatus(t, msgs, ipc.StatusListening)
	cmdW.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after its command stream closed")
	}
}

func TestRunSilenceEmitsNoText(t *testing.T) {
	t.Setenv("FAKE_TEXT", "should never appear")
	cfg := testConfig()
	msgs, cmdW, errCh := runWorker(t, cfg)

	waitStatus(t, msgs, ipc.StatusListening)

	// Let a couple of silent windows elapse, then stop.
	timer := time.After(1500 * time.Millisecond)
	var sawText bool
loop:
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				break loop
			}
			if m.Type == ipc.TypeText {
				sawText = true
			}
		case <-timer:
			break loop
		}
	}
	if sawText {
		t.Error("silent capture produced a text message")
	}

	io.WriteString(cmdW, ipc.CmdStop+"\n")
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after STOP")
	}
}
