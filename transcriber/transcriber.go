// Package transcriber delegates speech-to-text to a remote model API. The
// worker hands over one encoded audio window at a time; there is no
// streaming session, the documented lifecycle is strictly windowed.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	SetPrompt(prompt string)
	// Transcribe sends one encoded window. ext is the container extension
	// ("flac", "wav"). An empty Result.Text means no speech was heard.
	Transcribe(ctx context.Context, audio []byte, ext string) (*Result, error)
	// Warm pre-opens the API connection so the first window does not pay
	// the TLS handshake.
	Warm()
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
	prompt string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

func (b *baseTranscriber) SetPrompt(prompt string) { b.prompt = prompt }

func (b *baseTranscriber) Warm() { go b.client.Warm() }

// New selects a provider. An explicit name wins; otherwise whichever API
// key is present decides. FAKE_TEXT forces the scripted provider (tests).
func New(provider string) (Transcriber, error) {
	if text := os.Getenv("FAKE_TEXT"); text != "" {
		return NewFake(text, nil), nil
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	switch provider {
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=groq but GROQ_API_KEY is not set")
		}
		return NewGroq(groqKey), nil
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		return NewOpenAI(openaiKey), nil
	case "fake":
		return NewFake("", nil), nil
	case "":
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", provider)
	}

	if groqKey != "" {
		return NewGroq(groqKey), nil
	}
	if openaiKey != "" {
		return NewOpenAI(openaiKey), nil
	}
	return nil, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY environment variable")
}
