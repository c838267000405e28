// Package ipc defines the message channel between the controller process
// and the capture-and-transcribe worker. Messages flow worker -> controller
// as one JSON object per line on the worker's stdout; commands flow
// controller -> worker as one word per line on the worker's stdin.
//
// The channel is best-effort: delivered once, in send order, while the
// worker is alive. There is no versioning and no acknowledgement.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Type string

const (
	TypeStatus     Type = "status"      // lifecycle phase text
	TypeAudioLevel Type = "audio_level" // instantaneous input RMS
	TypeText       Type = "text"        // finalized transcription
	TypeError      Type = "error"       // recoverable failure
)

// Message is the tagged record relayed from the worker. Only the payload
// field matching Type is meaningful.
type Message struct {
	Type Type    `json:"type"`
	Msg  string  `json:"msg,omitempty"`
	RMS  float64 `json:"rms,omitempty"`
	Text string  `json:"text,omitempty"`
}

func Status(msg string) Message { return Message{Type: TypeStatus, Msg: msg} }

func AudioLevel(rms float64) Message { return Message{Type: TypeAudioLevel, RMS: rms} }

func Text(text string) Message { return Message{Type: TypeText, Text: text} }

func Error(msg string) Message { return Message{Type: TypeError, Msg: msg} }

func Errorf(format string, args ...any) Message {
	return Error(fmt.Sprintf(format, args...))
}

// CmdStop asks the worker to stop capturing and exit.
const CmdStop = "STOP"

// Status payloads the worker emits over its lifecycle. The controller
// renders these verbatim; keep them human-readable.
const (
	StatusLoading      = "loading"
	StatusListening    = "listening"
	StatusTranscribing = "transcribing"
	StatusNoSpeech     = "no speech"
	StatusStopped      = "stopped"
)

// Writer serializes messages onto a stream. Safe for concurrent use; the
// capture callback and the worker loop both emit.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Send(m Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(m)
}

// Reader decodes messages from a stream. Lines that do not parse are
// skipped: the channel carries status, not state, and a torn line at
// worker death must not poison the controller.
type Reader struct {
	sc *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next well-formed message. io.EOF means the stream ended
// (worker exited or closed stdout).
func (r *Reader) Next() (Message, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		if m.Type == "" {
			continue
		}
		return m, nil
	}
	if err := r.sc.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

// ReadCommands consumes one command per line from r and forwards each to
// fn. It returns when the stream ends, which for the worker means the
// controller went away.
func ReadCommands(r io.Reader, fn func(cmd string)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		cmd := strings.TrimSpace(sc.Text())
		if cmd == "" {
			continue
		}
		fn(cmd)
	}
}
