// Package encoder turns a captured PCM window into an upload container
// for the transcription API.
package encoder

import "fmt"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	// Encode serializes one complete window of mono 16-bit samples.
	Encode(samples []int16) ([]byte, error)
	// Ext is the container extension the API expects ("flac", "wav").
	Ext() string
}

func New(format string) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac(), nil
	case "wav":
		return NewWav(), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
