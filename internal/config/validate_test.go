package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSpeechPhrasesSortedAndHighestBoostWins(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"core", "team"}
	cfg.Vocab.Sets["core"] = VocabSet{Name: "core", Boost: 10, Phrases: []string{"beta", "alpha"}}
	cfg.Vocab.Sets["team"] = VocabSet{Name: "team", Boost: 20, Phrases: []string{"alpha", "gamma"}}

	phrases, warnings, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, []SpeechPhrase{
		{Phrase: "alpha", Boost: 20},
		{Phrase: "beta", Boost: 10},
		{Phrase: "gamma", Boost: 20},
	}, phrases)
}

func TestBuildSpeechPhrasesUnknownSetFails(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"missing"}

	_, _, err := BuildSpeechPhrases(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown set")
}

func TestBuildSpeechPhrasesEnforcesMaxPhrases(t *testing.T) {
	cfg := Default()
	cfg.Vocab.MaxPhrases = 1
	cfg.Vocab.GlobalSets = []string{"core"}
	cfg.Vocab.Sets["core"] = VocabSet{Name: "core", Boost: 1, Phrases: []string{"one", "two"}}

	_, _, err := BuildSpeechPhrases(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_phrases")
}

func TestValidateDefaultsHaveNoWarnings(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown backend", mutate: func(c *Config) { c.Audio.Backend = "alsa" }, wantErr: "audio.backend"},
		{name: "empty language", mutate: func(c *Config) { c.Recognition.Language = "" }, wantErr: "recognition.language"},
		{name: "http recognition endpoint", mutate: func(c *Config) { c.Recognition.Endpoint = "https://api.deepgram.com/v1/listen" }, wantErr: "recognition.endpoint"},
		{name: "zero listen timeout", mutate: func(c *Config) { c.Recognition.ListenTimeoutMS = 0 }, wantErr: "listen_timeout_ms"},
		{name: "zero phrase limit", mutate: func(c *Config) { c.Recognition.PhraseLimitMS = 0 }, wantErr: "phrase_limit_ms"},
		{name: "zero energy threshold", mutate: func(c *Config) { c.Recognition.EnergyThreshold = 0 }, wantErr: "energy_threshold"},
		{name: "negative calibration", mutate: func(c *Config) { c.Recognition.CalibrationMS = -1 }, wantErr: "calibration_ms"},
		{name: "ratio below one", mutate: func(c *Config) { c.Recognition.DynamicEnergyRatio = 0.5 }, wantErr: "dynamic_energy_ratio"},
		{name: "invalid max phrases", mutate: func(c *Config) { c.Vocab.MaxPhrases = 0 }, wantErr: "vocab.max_phrases"},
		{name: "generation endpoint scheme", mutate: func(c *Config) { c.Generation.Endpoint = "localhost:11434" }, wantErr: "generation.endpoint"},
		{name: "empty model", mutate: func(c *Config) { c.Generation.Model = " " }, wantErr: "generation.model"},
		{name: "temperature range", mutate: func(c *Config) { c.Generation.Temperature = 3 }, wantErr: "temperature"},
		{name: "top p range", mutate: func(c *Config) { c.Generation.TopP = 0 }, wantErr: "top_p"},
		{name: "empty voice", mutate: func(c *Config) { c.Synthesis.Voice = "" }, wantErr: "synthesis.voice"},
		{name: "seconds per word", mutate: func(c *Config) { c.Synthesis.SecondsPerWord = 0 }, wantErr: "seconds_per_word"},
		{name: "zero playback buffer", mutate: func(c *Config) { c.Synthesis.BufferMS = 0 }, wantErr: "synthesis.buffer_ms"},
		{name: "sample rate", mutate: func(c *Config) { c.Synthesis.SampleRate = 100 }, wantErr: "sample_rate"},
		{name: "error threshold", mutate: func(c *Config) { c.Session.ErrorThreshold = 0 }, wantErr: "error_threshold"},
		{name: "poll interval", mutate: func(c *Config) { c.Session.PollIntervalMS = 0 }, wantErr: "poll_interval_ms"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnSoftMisconfiguration(t *testing.T) {
	cfg := Default()
	cfg.Session.ExitPhrases = nil
	cfg.Session.Hotkey = false
	cfg.Session.PollIntervalMS = 2000

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
}
