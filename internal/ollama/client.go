// Package ollama generates assistant replies from a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/buddy/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultEndpoint is the stock local Ollama address.
const DefaultEndpoint = "http://localhost:11434"

// ErrModelMissing indicates the server is up but the configured model is not pulled.
var ErrModelMissing = errors.New("ollama model not installed")

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	NumPredict  int     `json:"num_predict"`
}

// DefaultOptions mirrors the tuned conversational sampling profile.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, TopP: 0.9, TopK: 40, NumPredict: 256}
}

// Config controls the generation client.
type Config struct {
	Endpoint   string
	Model      string
	Timeout    time.Duration
	Options    Options
	HTTPClient *http.Client
}

// Client is a non-streaming /api/generate caller.
type Client struct {
	base    *url.URL
	model   string
	timeout time.Duration
	options Options
	http    *http.Client
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewClient validates the endpoint and fills defaults.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ollama endpoint %q must be http or https", endpoint)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return operation + " " + r.URL.Path
			}),
		)}
	}

	return &Client{
		base:    base,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		options: cfg.Options,
		http:    client,
	}, nil
}

// Model returns the configured model tag.
func (c *Client) Model() string {
	return c.model
}

// Generate sends one prompt and classifies the reply.
func (c *Client) Generate(ctx context.Context, prompt string) session.GenerationOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return badResponse(fmt.Errorf("encode generate request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/generate"), bytes.NewReader(body))
	if err != nil {
		return badResponse(fmt.Errorf("build generate request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return badResponse(fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if isTimeout(err) {
			return session.GenerationOutcome{Kind: session.GenerationTimeout, Message: err.Error()}
		}
		return badResponse(fmt.Errorf("decode generate response: %w", err))
	}
	if decoded.Error != "" {
		return badResponse(errors.New(decoded.Error))
	}

	text := strings.TrimSpace(decoded.Response)
	if text == "" {
		return badResponse(errors.New("empty response"))
	}
	return session.GenerationOutcome{Kind: session.GenerationText, Text: text}
}

// HealthCheck confirms the server answers and the model is installed.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/tags"), nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach ollama at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags response: %w", err)
	}
	for _, model := range tags.Models {
		if modelMatches(model.Name, c.model) || modelMatches(model.Model, c.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run `ollama pull %s`)", ErrModelMissing, c.model, c.model)
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// modelMatches treats an untagged name as ":latest".
func modelMatches(installed string, wanted string) bool {
	if installed == "" {
		return false
	}
	if installed == wanted {
		return true
	}
	if !strings.Contains(wanted, ":") {
		return installed == wanted+":latest"
	}
	return false
}

func classifyTransportError(err error) session.GenerationOutcome {
	if isTimeout(err) {
		return session.GenerationOutcome{Kind: session.GenerationTimeout, Message: err.Error()}
	}
	return session.GenerationOutcome{Kind: session.GenerationUnreachable, Message: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func badResponse(err error) session.GenerationOutcome {
	return session.GenerationOutcome{Kind: session.GenerationBadResponse, Message: err.Error()}
}
