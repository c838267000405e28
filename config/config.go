// Package config resolves the environment-driven tuning knobs shared by
// the controller and the worker. The worker is a separate process, so the
// controller passes its resolved config down as environment variables and
// the worker loads the same way.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	SafeMode    bool   `mapstructure:"safe_mode"`
	InputDevice string `mapstructure:"input_device"`
	Language    string `mapstructure:"stt_lang"`
	Provider    string `mapstructure:"stt_provider"`
	Format      string `mapstructure:"stt_format"`

	// Windowing and gating. The buffering policy is deliberately not fixed:
	// these are open tuning parameters, defaulted to the values the PoC
	// shipped with.
	EnergyThreshold float64 `mapstructure:"energy_threshold"`
	MinSeconds      float64 `mapstructure:"min_seconds"`
	BlockMs         int     `mapstructure:"block_ms"`
	VADFilter       bool    `mapstructure:"vad_filter"`

	PromptFile string `mapstructure:"prompt_file"`

	// Test hooks: fake capture source and scripted transcription.
	FakeWAV  string `mapstructure:"fake_wav"`
	FakeText string `mapstructure:"fake_text"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("safe_mode", false)
	v.SetDefault("input_device", "")
	v.SetDefault("stt_lang", "")
	v.SetDefault("stt_provider", "")
	v.SetDefault("stt_format", "flac")
	v.SetDefault("energy_threshold", 0.005)
	v.SetDefault("min_seconds", 2.5)
	v.SetDefault("block_ms", 250)
	v.SetDefault("vad_filter", false)
	v.SetDefault("prompt_file", "")
	v.SetDefault("fake_wav", "")
	v.SetDefault("fake_text", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Format {
	case "flac", "wav":
	default:
		return nil, fmt.Errorf("unknown STT_FORMAT %q (use flac or wav)", cfg.Format)
	}
	if cfg.MinSeconds <= 0 {
		return nil, fmt.Errorf("MIN_SECONDS must be positive, got %v", cfg.MinSeconds)
	}
	if cfg.BlockMs <= 0 {
		return nil, fmt.Errorf("BLOCK_MS must be positive, got %d", cfg.BlockMs)
	}

	return &cfg, nil
}

// Prompt reads the optional initial-prompt file. A missing file is not an
// error; the prompt is a hint, not a requirement.
func (c *Config) Prompt() string {
	if c.PromptFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Env renders the config as KEY=value pairs for the worker subprocess.
func (c *Config) Env() []string {
	boolStr := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	return []string{
		"SAFE_MODE=" + boolStr(c.SafeMode),
		"INPUT_DEVICE=" + c.InputDevice,
		"STT_LANG=" + c.Language,
		"STT_PROVIDER=" + c.Provider,
		"STT_FORMAT=" + c.Format,
		fmt.Sprintf("ENERGY_THRESHOLD=%g", c.EnergyThreshold),
		fmt.Sprintf("MIN_SECONDS=%g", c.MinSeconds),
		fmt.Sprintf("BLOCK_MS=%d", c.BlockMs),
		"VAD_FILTER=" + boolStr(c.VADFilter),
		"PROMPT_FILE=" + c.PromptFile,
		"FAKE_WAV=" + c.FakeWAV,
		"FAKE_TEXT=" + c.FakeText,
	}
}
