package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio       *jsoncAudio       `json:"audio"`
	Recognition *jsoncRecognition `json:"recognition"`
	Vocab       *jsoncVocab       `json:"vocab"`
	Generation  *jsoncGeneration  `json:"generation"`
	Synthesis   *jsoncSynthesis   `json:"synthesis"`
	Session     *jsoncSession     `json:"session"`
	Debug       *jsoncDebug       `json:"debug"`
}

type jsoncAudio struct {
	Backend  *string `json:"backend"`
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncRecognition struct {
	Language           *string  `json:"language"`
	Model              *string  `json:"model"`
	Endpoint           *string  `json:"endpoint"`
	ListenTimeoutMS    *int     `json:"listen_timeout_ms"`
	PhraseLimitMS      *int     `json:"phrase_limit_ms"`
	EnergyThreshold    *float64 `json:"energy_threshold"`
	PauseMS            *int     `json:"pause_ms"`
	CalibrationMS      *int     `json:"calibration_ms"`
	DynamicEnergyRatio *float64 `json:"dynamic_energy_ratio"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncGeneration struct {
	Endpoint    *string  `json:"endpoint"`
	Model       *string  `json:"model"`
	TimeoutMS   *int     `json:"timeout_ms"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	TopK        *int     `json:"top_k"`
	NumPredict  *int     `json:"num_predict"`
	Persona     *string  `json:"persona"`
}

type jsoncSynthesis struct {
	Endpoint       *string  `json:"endpoint"`
	Voice          *string  `json:"voice"`
	SecondsPerWord *float64 `json:"seconds_per_word"`
	BufferMS       *int     `json:"buffer_ms"`
	SampleRate     *int     `json:"sample_rate"`
	TempDir        *string  `json:"temp_dir"`
}

type jsoncSession struct {
	ErrorThreshold *int             `json:"error_threshold"`
	PollIntervalMS *int             `json:"poll_interval_ms"`
	ExitPhrases    *jsoncStringList `json:"exit_phrases"`
	Hotkey         *bool            `json:"hotkey"`
	PauseOnExit    *bool            `json:"pause_on_exit"`
	EnvFile        *string          `json:"env_file"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if a := payload.Audio; a != nil {
		setTrimmed(&cfg.Audio.Backend, a.Backend)
		setTrimmed(&cfg.Audio.Input, a.Input)
		setTrimmed(&cfg.Audio.Fallback, a.Fallback)
		cfg.Audio.Backend = strings.ToLower(cfg.Audio.Backend)
	}

	if r := payload.Recognition; r != nil {
		setTrimmed(&cfg.Recognition.Language, r.Language)
		setTrimmed(&cfg.Recognition.Model, r.Model)
		setTrimmed(&cfg.Recognition.Endpoint, r.Endpoint)
		setValue(&cfg.Recognition.ListenTimeoutMS, r.ListenTimeoutMS)
		setValue(&cfg.Recognition.PhraseLimitMS, r.PhraseLimitMS)
		setValue(&cfg.Recognition.EnergyThreshold, r.EnergyThreshold)
		setValue(&cfg.Recognition.PauseMS, r.PauseMS)
		setValue(&cfg.Recognition.CalibrationMS, r.CalibrationMS)
		setValue(&cfg.Recognition.DynamicEnergyRatio, r.DynamicEnergyRatio)
	}

	if payload.Vocab != nil {
		if payload.Vocab.Global != nil {
			cfg.Vocab.GlobalSets = trimmedList(*payload.Vocab.Global)
		}
		if payload.Vocab.MaxPhrases != nil {
			cfg.Vocab.MaxPhrases = *payload.Vocab.MaxPhrases
		}
		if payload.Vocab.Sets != nil {
			sets := make(map[string]VocabSet, len(cfg.Vocab.Sets)+len(payload.Vocab.Sets))
			for name, set := range cfg.Vocab.Sets {
				sets[name] = set
			}
			for name, set := range payload.Vocab.Sets {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return nil, fmt.Errorf("vocab.sets contains an empty set name")
				}

				phrases := make([]string, 0, len(set.Phrases))
				phrases = append(phrases, set.Phrases...)

				entry := VocabSet{Name: trimmedName, Phrases: phrases}
				if set.Boost != nil {
					entry.Boost = *set.Boost
				}
				sets[trimmedName] = entry
			}
			cfg.Vocab.Sets = sets
		}
	}

	if g := payload.Generation; g != nil {
		setTrimmed(&cfg.Generation.Endpoint, g.Endpoint)
		setTrimmed(&cfg.Generation.Model, g.Model)
		setValue(&cfg.Generation.TimeoutMS, g.TimeoutMS)
		setValue(&cfg.Generation.Temperature, g.Temperature)
		setValue(&cfg.Generation.TopP, g.TopP)
		setValue(&cfg.Generation.TopK, g.TopK)
		setValue(&cfg.Generation.NumPredict, g.NumPredict)
		if g.Persona != nil {
			if strings.TrimSpace(*g.Persona) == "" {
				warnings = append(warnings, Warning{Message: "generation.persona is empty; keeping the built-in persona"})
			} else {
				cfg.Generation.Persona = strings.TrimSpace(*g.Persona)
			}
		}
	}

	if s := payload.Synthesis; s != nil {
		setTrimmed(&cfg.Synthesis.Endpoint, s.Endpoint)
		setTrimmed(&cfg.Synthesis.Voice, s.Voice)
		setValue(&cfg.Synthesis.SecondsPerWord, s.SecondsPerWord)
		setValue(&cfg.Synthesis.BufferMS, s.BufferMS)
		setValue(&cfg.Synthesis.SampleRate, s.SampleRate)
		setTrimmed(&cfg.Synthesis.TempDir, s.TempDir)
	}

	if s := payload.Session; s != nil {
		setValue(&cfg.Session.ErrorThreshold, s.ErrorThreshold)
		setValue(&cfg.Session.PollIntervalMS, s.PollIntervalMS)
		if s.ExitPhrases != nil {
			cfg.Session.ExitPhrases = trimmedList(*s.ExitPhrases)
		}
		setValue(&cfg.Session.Hotkey, s.Hotkey)
		setValue(&cfg.Session.PauseOnExit, s.PauseOnExit)
		setTrimmed(&cfg.Session.EnvFile, s.EnvFile)
	}

	if payload.Debug != nil {
		setValue(&cfg.Debug.EnableAudioDump, payload.Debug.AudioDump)
	}

	return warnings, nil
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func trimmedList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
