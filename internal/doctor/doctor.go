// Package doctor runs readiness diagnostics for config, credentials, the inference backend, and audio.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/buddy/internal/audio"
	"github.com/rbright/buddy/internal/config"
	"github.com/rbright/buddy/internal/deepgram"
	"github.com/rbright/buddy/internal/ollama"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// Failures returns the checks that did not pass, in run order.
func (r Report) Failures() []Check {
	failed := make([]Check, 0)
	for _, check := range r.Checks {
		if !check.Pass {
			failed = append(failed, check)
		}
	}
	return failed
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkEnv(deepgram.APIKeyEnv, func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "speech API key is set", deepgram.APIKeyEnv+" is empty; recognition and synthesis will fail"))

	checks = append(checks, checkGeneration(ctx, cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkGeneration probes the inference backend and confirms the model is installed.
func checkGeneration(ctx context.Context, cfg config.Config) Check {
	client, err := ollama.NewClient(ollama.Config{
		Endpoint: cfg.Generation.Endpoint,
		Model:    cfg.Generation.Model,
		Timeout:  probeTimeout,
	})
	if err != nil {
		return Check{Name: "generation", Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		return Check{Name: "generation", Pass: false, Message: err.Error()}
	}
	return Check{Name: "generation", Pass: true, Message: fmt.Sprintf("model %q available at %s", client.Model(), cfg.Generation.Endpoint)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	backend, err := audio.ParseBackend(cfg.Audio.Backend)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	selection, err := audio.SelectDevice(ctx, backend, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
