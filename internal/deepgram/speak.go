package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultSpeakEndpoint is the hosted synthesis URL.
const DefaultSpeakEndpoint = "https://api.deepgram.com/v1/speak"

// SpeakConfig controls synthesis requests.
type SpeakConfig struct {
	Endpoint   string
	APIKey     string
	Voice      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// StatusError is a non-2xx synthesis reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("deepgram speak returned status %d", e.Code)
	}
	return fmt.Sprintf("deepgram speak returned status %d: %s", e.Code, e.Body)
}

// Synthesizer renders text to MP3 audio.
type Synthesizer struct {
	cfg    SpeakConfig
	client *http.Client
}

// NewSynthesizer validates config and builds a traced HTTP client when none is supplied.
func NewSynthesizer(cfg SpeakConfig) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultSpeakEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse speak endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "aura-2-orion-en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
					return operation + " " + r.URL.Path
				}),
			),
		}
	}
	return &Synthesizer{cfg: cfg, client: client}, nil
}

// Synthesize writes the MP3 rendering of text to w.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, w io.Writer) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("synthesize: empty text")
	}

	endpoint, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("parse speak endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("model", s.cfg.Voice)
	query.Set("encoding", "mp3")
	endpoint.RawQuery = query.Encode()

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return fmt.Errorf("encode speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build speak request: %w", err)
	}
	req.Header.Set("Authorization", authHeader(s.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deepgram speak request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("read speak audio: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("deepgram speak returned no audio")
	}
	return nil
}
