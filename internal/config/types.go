// Package config loads buddy's JSONC configuration file.
package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	Audio       AudioConfig
	Recognition RecognitionConfig
	Vocab       VocabConfig
	Generation  GenerationConfig
	Synthesis   SynthesisConfig
	Session     SessionConfig
	Debug       DebugConfig
}

// AudioConfig selects the capture backend and device.
type AudioConfig struct {
	Backend  string
	Input    string
	Fallback string
}

// RecognitionConfig controls utterance capture and the speech-to-text service.
type RecognitionConfig struct {
	Language           string
	Model              string
	Endpoint           string
	ListenTimeoutMS    int
	PhraseLimitMS      int
	EnergyThreshold    float64
	PauseMS            int
	CalibrationMS      int
	DynamicEnergyRatio float64
}

// ListenTimeout is the maximum wait for speech onset.
func (c RecognitionConfig) ListenTimeout() time.Duration {
	return time.Duration(c.ListenTimeoutMS) * time.Millisecond
}

// PhraseLimit caps a single utterance.
func (c RecognitionConfig) PhraseLimit() time.Duration {
	return time.Duration(c.PhraseLimitMS) * time.Millisecond
}

// Pause is the trailing silence that ends an utterance.
func (c RecognitionConfig) Pause() time.Duration {
	return time.Duration(c.PauseMS) * time.Millisecond
}

// Calibration is the ambient sampling window.
func (c RecognitionConfig) Calibration() time.Duration {
	return time.Duration(c.CalibrationMS) * time.Millisecond
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// GenerationConfig points at the local inference backend.
type GenerationConfig struct {
	Endpoint    string
	Model       string
	TimeoutMS   int
	Temperature float64
	TopP        float64
	TopK        int
	NumPredict  int
	Persona     string
}

// Timeout bounds one generation request.
func (c GenerationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SynthesisConfig controls text-to-speech and playback pacing.
type SynthesisConfig struct {
	Endpoint       string
	Voice          string
	SecondsPerWord float64
	BufferMS       int
	SampleRate     int
	TempDir        string
}

// Buffer is the fixed slack added to every playback timeout.
func (c SynthesisConfig) Buffer() time.Duration {
	return time.Duration(c.BufferMS) * time.Millisecond
}

// SessionConfig holds orchestrator policy.
type SessionConfig struct {
	ErrorThreshold int
	PollIntervalMS int
	ExitPhrases    []string
	Hotkey         bool
	PauseOnExit    bool
	EnvFile        string
}

// PollInterval is the cadence for exit and playback polling.
func (c SessionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// DebugConfig toggles debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning captures non-fatal config parse/validation feedback.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is one resolved recognition hint.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
