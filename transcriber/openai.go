package transcriber

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	baseTranscriber
	api *openai.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	apiURL := "https://api.openai.com/v1/audio/transcriptions"
	traced := NewTracedClient(apiURL)
	cfg := openai.DefaultConfig(apiKey)
	// Share the warmed transport so the first window reuses the connection.
	cfg.HTTPClient = traced.client
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			client: traced,
			apiURL: apiURL,
		},
		api: openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, ext string) (*Result, error) {
	resp, err := o.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio." + ext,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.lang,
		Prompt:   o.prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	var noSpeechProb, avgLogProb float64
	var segments []Segment
	if len(resp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range resp.Segments {
			if seg.NoSpeechProb > noSpeechProb {
				noSpeechProb = seg.NoSpeechProb
			}
			logProbSum += seg.AvgLogprob
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogprob,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(resp.Segments))
	}

	return &Result{
		Text:         resp.Text,
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     resp.Duration,
		Segments:     segments,
	}, nil
}
