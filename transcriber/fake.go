package transcriber

import (
	"context"
	"strings"
	"sync"
)

// FakeTranscriber returns scripted texts without touching the network.
// Texts are consumed in order and separated by "|"; once exhausted it
// keeps repeating the last one. Used by -test mode and the test suite.
type FakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	next  int
	err   error
	lang  string
}

func NewFake(script string, err error) *FakeTranscriber {
	var texts []string
	if script != "" {
		texts = strings.Split(script, "|")
	}
	return &FakeTranscriber{texts: texts, err: err}
}

func (f *FakeTranscriber) Name() string           { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }
func (f *FakeTranscriber) SetPrompt(string)        {}
func (f *FakeTranscriber) Warm()                   {}

func (f *FakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var text string
	if len(f.texts) > 0 {
		text = f.texts[f.next]
		if f.next < len(f.texts)-1 {
			f.next++
		}
	}
	return &Result{
		Text:     text,
		Duration: float64(len(audio)) / 32000.0,
	}, nil
}
