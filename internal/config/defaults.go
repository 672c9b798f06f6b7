package config

import "github.com/rbright/buddy/internal/session"

// Default returns baseline runtime configuration before user overrides.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:  "pulse",
			Input:    "default",
			Fallback: "default",
		},
		Recognition: RecognitionConfig{
			Language:           "en-US",
			Model:              "nova-3",
			Endpoint:           "wss://api.deepgram.com/v1/listen",
			ListenTimeoutMS:    3000,
			PhraseLimitMS:      10000,
			EnergyThreshold:    4000,
			PauseMS:            800,
			CalibrationMS:      2000,
			DynamicEnergyRatio: 1.5,
		},
		Vocab: VocabConfig{
			GlobalSets: []string{},
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Generation: GenerationConfig{
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2",
			TimeoutMS:   30000,
			Temperature: 0.7,
			TopP:        0.9,
			TopK:        40,
			NumPredict:  256,
			Persona:     session.DefaultPersona,
		},
		Synthesis: SynthesisConfig{
			Endpoint:       "https://api.deepgram.com/v1/speak",
			Voice:          "aura-2-orion-en",
			SecondsPerWord: 0.5,
			BufferMS:       5000,
			SampleRate:     44100,
		},
		Session: SessionConfig{
			ErrorThreshold: 3,
			PollIntervalMS: 100,
			ExitPhrases:    append([]string(nil), session.DefaultExitPhrases...),
			Hotkey:         true,
			PauseOnExit:    true,
			EnvFile:        ".env",
		},
	}
}
