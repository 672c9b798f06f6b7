package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type capturedSpeak struct {
	method string
	path   string
	model  string
	format string
	auth   string
	text   string
}

func TestSynthesizeWritesAudio(t *testing.T) {
	captured := make(chan capturedSpeak, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		captured <- capturedSpeak{
			method: r.Method,
			path:   r.URL.Path,
			model:  r.URL.Query().Get("model"),
			format: r.URL.Query().Get("encoding"),
			auth:   r.Header.Get("Authorization"),
			text:   body.Text,
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer server.Close()

	synth, err := NewSynthesizer(SpeakConfig{Endpoint: server.URL + "/v1/speak", APIKey: "secret"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, synth.Synthesize(context.Background(), " Hello there ", &out))
	require.Equal(t, "ID3fake", out.String())

	got := <-captured
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/v1/speak", got.path)
	require.Equal(t, "aura-2-orion-en", got.model)
	require.Equal(t, "mp3", got.format)
	require.Equal(t, "Token secret", got.auth)
	require.Equal(t, "Hello there", got.text)
}

func TestSynthesizeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"err_msg":"invalid voice"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	synth, err := NewSynthesizer(SpeakConfig{Endpoint: server.URL, APIKey: "secret"})
	require.NoError(t, err)

	err = synth.Synthesize(context.Background(), "hi", io.Discard)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Contains(t, statusErr.Error(), "invalid voice")
}

func TestSynthesizeEmptyAudioFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	synth, err := NewSynthesizer(SpeakConfig{Endpoint: server.URL, APIKey: "secret"})
	require.NoError(t, err)
	require.ErrorContains(t, synth.Synthesize(context.Background(), "hi", io.Discard), "no audio")
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth, err := NewSynthesizer(SpeakConfig{APIKey: "secret"})
	require.NoError(t, err)
	require.Error(t, synth.Synthesize(context.Background(), "   ", io.Discard))
}

func TestSynthesizeHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	synth, err := NewSynthesizer(SpeakConfig{Endpoint: server.URL, APIKey: "secret"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, synth.Synthesize(ctx, "hi", io.Discard), context.Canceled)
}

func TestNewSynthesizerRequiresKey(t *testing.T) {
	_, err := NewSynthesizer(SpeakConfig{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}
