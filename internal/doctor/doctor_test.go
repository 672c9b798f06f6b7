package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rbright/buddy/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
	require.Equal(t, []Check{{Name: "two", Pass: false, Message: "bad"}}, report.Failures())
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
	require.Empty(t, report.Failures())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "secret")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func tagsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckGenerationModelInstalled(t *testing.T) {
	server := tagsServer(t, http.StatusOK, `{"models":[{"name":"llama3.2:latest","model":"llama3.2:latest"}]}`)

	cfg := config.Default()
	cfg.Generation.Endpoint = server.URL

	check := checkGeneration(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "llama3.2")
}

func TestCheckGenerationModelMissing(t *testing.T) {
	server := tagsServer(t, http.StatusOK, `{"models":[{"name":"mistral:latest"}]}`)

	cfg := config.Default()
	cfg.Generation.Endpoint = server.URL

	check := checkGeneration(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "ollama pull")
}

func TestCheckGenerationFailureStatusCode(t *testing.T) {
	server := tagsServer(t, http.StatusServiceUnavailable, "")

	cfg := config.Default()
	cfg.Generation.Endpoint = server.URL

	check := checkGeneration(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "503")
}

func TestCheckGenerationUnreachable(t *testing.T) {
	server := tagsServer(t, http.StatusOK, "{}")
	endpoint := server.URL
	server.Close()

	cfg := config.Default()
	cfg.Generation.Endpoint = endpoint

	check := checkGeneration(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Equal(t, "generation", check.Name)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestCheckAudioSelectionRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = "alsa"

	check := checkAudioSelection(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "alsa")
}

func TestRunReportsMissingAPIKeyAndMissingConfig(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	server := tagsServer(t, http.StatusOK, `{"models":[{"name":"llama3.2"}]}`)

	cfg := config.Default()
	cfg.Generation.Endpoint = server.URL

	report := Run(context.Background(), config.Loaded{Path: "/tmp/buddy.jsonc", Config: cfg})
	require.Len(t, report.Checks, 4)
	require.Contains(t, report.Checks[0].Message, "not found")
	require.False(t, report.Checks[1].Pass)
	require.Equal(t, "DEEPGRAM_API_KEY", report.Checks[1].Name)
	require.True(t, report.Checks[2].Pass)
	require.False(t, report.OK())
}
