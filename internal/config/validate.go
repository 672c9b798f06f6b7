package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch strings.ToLower(strings.TrimSpace(cfg.Audio.Backend)) {
	case "pulse", "portaudio":
	case "":
		return nil, fmt.Errorf("audio.backend must not be empty")
	default:
		return nil, fmt.Errorf("audio.backend must be one of: pulse, portaudio")
	}

	if strings.TrimSpace(cfg.Recognition.Language) == "" {
		return nil, fmt.Errorf("recognition.language must not be empty")
	}
	if strings.TrimSpace(cfg.Recognition.Model) == "" {
		return nil, fmt.Errorf("recognition.model must not be empty")
	}
	if err := validateEndpoint("recognition.endpoint", cfg.Recognition.Endpoint, "ws", "wss"); err != nil {
		return nil, err
	}
	if cfg.Recognition.ListenTimeoutMS <= 0 {
		return nil, fmt.Errorf("recognition.listen_timeout_ms must be > 0")
	}
	if cfg.Recognition.PhraseLimitMS <= 0 {
		return nil, fmt.Errorf("recognition.phrase_limit_ms must be > 0")
	}
	if cfg.Recognition.EnergyThreshold <= 0 {
		return nil, fmt.Errorf("recognition.energy_threshold must be > 0")
	}
	if cfg.Recognition.PauseMS <= 0 {
		return nil, fmt.Errorf("recognition.pause_ms must be > 0")
	}
	if cfg.Recognition.PauseMS >= cfg.Recognition.PhraseLimitMS {
		warnings = append(warnings, Warning{Message: "recognition.pause_ms >= phrase_limit_ms; utterances will always run to the phrase limit"})
	}
	if cfg.Recognition.CalibrationMS <= 0 {
		return nil, fmt.Errorf("recognition.calibration_ms must be > 0")
	}
	if cfg.Recognition.DynamicEnergyRatio < 1 {
		return nil, fmt.Errorf("recognition.dynamic_energy_ratio must be >= 1")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}

	if err := validateEndpoint("generation.endpoint", cfg.Generation.Endpoint, "http", "https"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Generation.Model) == "" {
		return nil, fmt.Errorf("generation.model must not be empty")
	}
	if cfg.Generation.TimeoutMS <= 0 {
		return nil, fmt.Errorf("generation.timeout_ms must be > 0")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return nil, fmt.Errorf("generation.temperature must be within [0, 2]")
	}
	if cfg.Generation.TopP <= 0 || cfg.Generation.TopP > 1 {
		return nil, fmt.Errorf("generation.top_p must be within (0, 1]")
	}
	if cfg.Generation.TopK <= 0 {
		return nil, fmt.Errorf("generation.top_k must be > 0")
	}
	if cfg.Generation.NumPredict <= 0 {
		return nil, fmt.Errorf("generation.num_predict must be > 0")
	}

	if err := validateEndpoint("synthesis.endpoint", cfg.Synthesis.Endpoint, "http", "https"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Synthesis.Voice) == "" {
		return nil, fmt.Errorf("synthesis.voice must not be empty")
	}
	if cfg.Synthesis.SecondsPerWord <= 0 {
		return nil, fmt.Errorf("synthesis.seconds_per_word must be > 0")
	}
	if cfg.Synthesis.BufferMS <= 0 {
		return nil, fmt.Errorf("synthesis.buffer_ms must be > 0")
	}
	if cfg.Synthesis.SampleRate < 8000 || cfg.Synthesis.SampleRate > 192000 {
		return nil, fmt.Errorf("synthesis.sample_rate must be within [8000, 192000]")
	}

	if cfg.Session.ErrorThreshold <= 0 {
		return nil, fmt.Errorf("session.error_threshold must be > 0")
	}
	if cfg.Session.PollIntervalMS <= 0 {
		return nil, fmt.Errorf("session.poll_interval_ms must be > 0")
	}
	if cfg.Session.PollIntervalMS > 1000 {
		warnings = append(warnings, Warning{Message: "session.poll_interval_ms > 1000; exit requests will feel slow"})
	}
	if len(cfg.Session.ExitPhrases) == 0 {
		warnings = append(warnings, Warning{Message: "session.exit_phrases is empty; only the hotkey or a signal ends the session"})
	}
	if !cfg.Session.Hotkey {
		warnings = append(warnings, Warning{Message: "session.hotkey disabled; use an exit phrase or Ctrl+C to end the session"})
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

func validateEndpoint(field string, raw string, schemes ...string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme && parsed.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL", field, strings.Join(schemes, "/"))
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognition keyword hints.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
