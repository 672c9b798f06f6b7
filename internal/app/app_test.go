package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/buddy/internal/config"
	"github.com/rbright/buddy/internal/deepgram"
	"github.com/rbright/buddy/internal/fsm"
	"github.com/rbright/buddy/internal/session"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--version"}, nil, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "buddy")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--definitely-not-a-flag"}, nil, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown flag")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"audio": {"backend": "alsa"}}`), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "audio.backend")
}

func TestRunnerPrintsConfigWarnings(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	writeRunnerConfig(t, paths, `"exit_phrases": []`)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	runner.Execute(context.Background(), []string{"--config", paths.configPath})
	require.Contains(t, stderr.String(), "warning: session.exit_phrases is empty")
}

func TestRunnerRunFailsWhenMicrophoneUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Stdin: strings.NewReader("\n")}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error: microphone unavailable")
	require.Contains(t, stdout.String(), "DEEPGRAM_API_KEY")
	require.NotContains(t, stdout.String(), "Press Enter")
}

func TestLoadEnvFileFillsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BUDDY_TEST_FROM_DOTENV=from-file\nBUDDY_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("BUDDY_TEST_FROM_DOTENV", "")
	require.NoError(t, os.Unsetenv("BUDDY_TEST_FROM_DOTENV"))
	t.Setenv("BUDDY_TEST_PRESET", "from-env")

	loadEnvFile(path, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	require.Equal(t, "from-file", os.Getenv("BUDDY_TEST_FROM_DOTENV"))
	require.Equal(t, "from-env", os.Getenv("BUDDY_TEST_PRESET"))
}

func TestLoadEnvFileMissingIsSilent(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	loadEnvFile(filepath.Join(t.TempDir(), "missing.env"), logger)
	loadEnvFile("   ", logger)
	require.Empty(t, logBuf.String())
}

func TestSpeechKeywordsCarryBoost(t *testing.T) {
	keywords := speechKeywords([]config.SpeechPhrase{{Phrase: "Buddy", Boost: 12}, {Phrase: "Ollama", Boost: 4}})
	require.Equal(t, []deepgram.Keyword{{Phrase: "Buddy", Boost: 12}, {Phrase: "Ollama", Boost: 4}}, keywords)
}

func TestUnavailableAdaptersReturnTheirError(t *testing.T) {
	segments, err := unavailableTranscriber{err: deepgram.ErrMissingAPIKey}.Transcribe(context.Background(), []byte{1, 2})
	require.Nil(t, segments)
	require.ErrorIs(t, err, deepgram.ErrMissingAPIKey)

	err = unavailableSynthesizer{err: deepgram.ErrMissingAPIKey}.Synthesize(context.Background(), "hi", &bytes.Buffer{})
	require.ErrorIs(t, err, deepgram.ErrMissingAPIKey)
}

func TestPauseForEnter(t *testing.T) {
	var stdout bytes.Buffer
	stdin := strings.NewReader("\nleftover")
	runner := Runner{Stdout: &stdout, Stdin: stdin}

	runner.pauseForEnter()
	require.Contains(t, stdout.String(), "Press Enter to close...")

	stdout.Reset()
	Runner{Stdout: &stdout}.pauseForEnter()
	require.Empty(t, stdout.String())
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		SessionID:  "abc",
		State:      fsm.StateExiting,
		Turns:      4,
		Farewell:   true,
		StartedAt:  started,
		FinishedAt: finished,
	})

	require.Contains(t, logBuf.String(), "session complete")
	require.Contains(t, logBuf.String(), "\"turns\":4")
	require.Contains(t, logBuf.String(), "\"duration_ms\":1500")

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		State:      fsm.StateExiting,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "session failed")
	require.Contains(t, logBuf.String(), "boom")

	logSessionResult(nil, session.Result{})
}

type runnerPaths struct {
	configPath string
	generation string
}

// setupRunnerEnv isolates state and points generation at a server that answers /api/tags.
func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
	}))
	t.Cleanup(server.Close)

	paths := runnerPaths{
		configPath: filepath.Join(t.TempDir(), "config.jsonc"),
		generation: server.URL,
	}
	writeRunnerConfig(t, paths, "")
	return paths
}

func writeRunnerConfig(t *testing.T, paths runnerPaths, sessionFields string) {
	t.Helper()

	if sessionFields != "" {
		sessionFields = ", " + sessionFields
	}
	contents := `{
  "generation": {"endpoint": "` + paths.generation + `"},
  "session": {"env_file": "", "hotkey": false` + sessionFields + `}
}`
	require.NoError(t, os.WriteFile(paths.configPath, []byte(contents), 0o600))
}
