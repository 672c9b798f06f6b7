package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rbright/buddy/internal/audio"
	"github.com/rbright/buddy/internal/config"
	"github.com/rbright/buddy/internal/deepgram"
	"github.com/rbright/buddy/internal/doctor"
	"github.com/rbright/buddy/internal/hotkey"
	"github.com/rbright/buddy/internal/indicator"
	"github.com/rbright/buddy/internal/ollama"
	"github.com/rbright/buddy/internal/pipeline"
	"github.com/rbright/buddy/internal/playback"
	"github.com/rbright/buddy/internal/session"
	"github.com/rbright/buddy/internal/shutdown"
	"github.com/rbright/buddy/internal/voice"
)

func (r Runner) run(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	cfg := loaded.Config
	console := indicator.NewConsole(r.Stdout, 0)

	loadEnvFile(cfg.Session.EnvFile, logger)

	report := doctor.Run(ctx, loaded)
	logger.Info("preflight complete", "ok", report.OK(), "report", report.String())
	for _, check := range report.Failures() {
		console.ShowWarning(fmt.Sprintf("%s: %s", check.Name, check.Message))
		logger.Warn("preflight check failed", "check", check.Name, "message", check.Message)
	}

	backend, err := audio.ParseBackend(cfg.Audio.Backend)
	if err != nil {
		return r.fatal(logger, "audio backend", err)
	}
	selection, err := audio.SelectDevice(ctx, backend, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return r.fatal(logger, "microphone unavailable", err)
	}
	if selection.Warning != "" {
		console.ShowWarning(selection.Warning)
		logger.Warn("audio device fallback", "device", selection.Device.ID, "warning", selection.Warning)
	}
	source, err := audio.Open(ctx, backend, selection.Device)
	if err != nil {
		return r.fatal(logger, "microphone unavailable", err)
	}

	signal := shutdown.NewSignal()
	apiKey, keyErr := deepgram.APIKeyFromEnv()

	var transcriber pipeline.Transcriber = unavailableTranscriber{err: keyErr}
	if keyErr == nil {
		transcriber, err = newTranscriber(cfg, apiKey, logger)
		if err != nil {
			_ = source.Stop()
			return r.fatal(logger, "speech recognition", err)
		}
	}
	listener := pipeline.NewListener(source, transcriber, signal, logger, pipeline.Options{
		EnergyThreshold: cfg.Recognition.EnergyThreshold,
		DynamicRatio:    cfg.Recognition.DynamicEnergyRatio,
		Pause:           cfg.Recognition.Pause(),
		Calibration:     cfg.Recognition.Calibration(),
		AudioDump:       cfg.Debug.EnableAudioDump,
	})

	generator, err := ollama.NewClient(ollama.Config{
		Endpoint: cfg.Generation.Endpoint,
		Model:    cfg.Generation.Model,
		Timeout:  cfg.Generation.Timeout(),
		Options: ollama.Options{
			Temperature: cfg.Generation.Temperature,
			TopP:        cfg.Generation.TopP,
			TopK:        cfg.Generation.TopK,
			NumPredict:  cfg.Generation.NumPredict,
		},
	})
	if err != nil {
		_ = listener.Close()
		return r.fatal(logger, "language model", err)
	}

	output, err := playback.Open(cfg.Synthesis.SampleRate)
	if err != nil {
		_ = listener.Close()
		return r.fatal(logger, "audio output unavailable", err)
	}

	var synth voice.Synthesizer = unavailableSynthesizer{err: keyErr}
	if keyErr == nil {
		synth, err = deepgram.NewSynthesizer(deepgram.SpeakConfig{
			Endpoint: cfg.Synthesis.Endpoint,
			APIKey:   apiKey,
			Voice:    cfg.Synthesis.Voice,
		})
		if err != nil {
			_ = listener.Close()
			_ = output.Close()
			return r.fatal(logger, "speech synthesis", err)
		}
	}
	speaker := voice.NewEngine(synth, voice.EnginePlayer{Engine: output}, console, logger, voice.Options{
		SecondsPerWord: cfg.Synthesis.SecondsPerWord,
		Buffer:         cfg.Synthesis.Buffer(),
		PollInterval:   cfg.Session.PollInterval(),
		TempDir:        cfg.Synthesis.TempDir,
	})

	signal.Bind(ctx)

	watchCtx, stopWatch := context.WithCancel(ctx)
	var watchers sync.WaitGroup
	keys := r.startHotkey(watchCtx, &watchers, cfg.Session, signal, console, logger)

	controller := session.NewController(logger, signal, listener, generator, speaker, console, session.Options{
		ListenTimeout:  cfg.Recognition.ListenTimeout(),
		PhraseLimit:    cfg.Recognition.PhraseLimit(),
		ErrorThreshold: cfg.Session.ErrorThreshold,
		ExitPhrases:    cfg.Session.ExitPhrases,
		Persona:        cfg.Generation.Persona,
	})
	logger.Info("session start",
		"session_id", controller.SessionID(),
		"device", selection.Device.ID,
		"backend", backend,
		"model", generator.Model(),
		"voice", cfg.Synthesis.Voice,
		"threshold", listener.Threshold(),
	)

	result := controller.Run(ctx)

	stopWatch()
	watchers.Wait()
	if keys != nil {
		_ = keys.Close()
	}

	logSessionResult(logger, result)
	fmt.Fprintf(r.Stdout, "Session ended after %d turn(s).\n", result.Turns)

	if cfg.Session.PauseOnExit && ctx.Err() == nil {
		r.pauseForEnter()
	}

	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	return 0
}

// startHotkey is best effort: without a terminal the session still ends by phrase or signal.
func (r Runner) startHotkey(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg config.SessionConfig,
	signal *shutdown.Signal,
	console *indicator.Console,
	logger *slog.Logger,
) *hotkey.Listener {
	if !cfg.Hotkey {
		return nil
	}
	keys, err := hotkey.Open()
	if err != nil {
		console.ShowWarning("exit hotkey unavailable; say goodbye or press Ctrl+C to finish")
		logger.Warn("hotkey unavailable", "error", err.Error())
		return nil
	}

	watcher := shutdown.Watcher{
		Signal:    signal,
		Condition: keys.Pressed,
		Interval:  cfg.PollInterval(),
		Logger:    logger,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	return keys
}

func (r Runner) pauseForEnter() {
	if r.Stdin == nil {
		return
	}
	fmt.Fprint(r.Stdout, "Press Enter to close...")
	_, _ = bufio.NewReader(r.Stdin).ReadString('\n')
	fmt.Fprintln(r.Stdout)
}

func (r Runner) fatal(logger *slog.Logger, what string, err error) int {
	fmt.Fprintf(r.Stderr, "error: %s: %v\n", what, err)
	logger.Error("startup failed", "stage", what, "error", err.Error())
	return 1
}

func newTranscriber(cfg config.Config, apiKey string, logger *slog.Logger) (*deepgram.Transcriber, error) {
	phrases, warnings, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Debug("vocabulary merge", "message", w.Message)
	}
	return deepgram.NewTranscriber(deepgram.ListenConfig{
		Endpoint: cfg.Recognition.Endpoint,
		APIKey:   apiKey,
		Model:    cfg.Recognition.Model,
		Language: cfg.Recognition.Language,
		Keywords: speechKeywords(phrases),
	})
}

func speechKeywords(phrases []config.SpeechPhrase) []deepgram.Keyword {
	keywords := make([]deepgram.Keyword, 0, len(phrases))
	for _, phrase := range phrases {
		keywords = append(keywords, deepgram.Keyword{Phrase: phrase.Phrase, Boost: phrase.Boost})
	}
	return keywords
}

// loadEnvFile fills unset variables from a dotenv file. A missing file is fine.
func loadEnvFile(path string, logger *slog.Logger) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		logger.Warn("load env file failed", "path", path, "error", err.Error())
		return
	}
	logger.Debug("loaded env file", "path", path)
}

// unavailableTranscriber keeps the session alive without credentials; every
// utterance fails recognition and feeds the error budget.
type unavailableTranscriber struct {
	err error
}

func (u unavailableTranscriber) Transcribe(context.Context, []byte) ([]string, error) {
	return nil, u.err
}

// unavailableSynthesizer forces the text-only fallback.
type unavailableSynthesizer struct {
	err error
}

func (u unavailableSynthesizer) Synthesize(context.Context, string, io.Writer) error {
	return u.err
}
