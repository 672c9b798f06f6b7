package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/rbright/buddy/internal/audio"
	"github.com/rbright/buddy/internal/transcript"
)

const (
	// DefaultListenEndpoint is the hosted streaming recognition URL.
	DefaultListenEndpoint = "wss://api.deepgram.com/v1/listen"

	frameBytes = audio.BytesPerSecond / 4 // 250ms per websocket frame

	// Sent after the last Results message once the stream is closed.
	typeMetadata = "Metadata"
)

// Keyword is one vocabulary boost phrase in request-ready form.
type Keyword struct {
	Phrase string
	Boost  float32
}

// ListenConfig controls one recognition connection.
type ListenConfig struct {
	Endpoint        string
	APIKey          string
	Model           string
	Language        string
	Keywords        []Keyword
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	Dialer          *websocket.Dialer
}

// Transcriber sends one buffered utterance per websocket connection.
type Transcriber struct {
	cfg ListenConfig
}

// NewTranscriber validates config and fills defaults.
func NewTranscriber(cfg ListenConfig) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultListenEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse listen endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "nova-3"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en-US"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 10 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Transcriber{cfg: cfg}, nil
}

// Transcribe streams pcm (16kHz mono s16le) and returns the final segments.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) ([]string, error) {
	listenURL, err := t.listenURL()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	conn, resp, err := t.cfg.Dialer.DialContext(dialCtx, listenURL, http.Header{
		"Authorization": {authHeader(t.cfg.APIKey)},
	})
	cancel()
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open deepgram listen socket (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("open deepgram listen socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sendErr := make(chan error, 1)
	go func() { sendErr <- sendUtterance(conn, pcm) }()

	deadline := time.Now().Add(t.cfg.ResponseTimeout + audio.Duration(len(pcm)))
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	var collector transcript.Collector
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read deepgram response: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		done, err := recordMessage(&collector, msg)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	if err := <-sendErr; err != nil {
		return nil, fmt.Errorf("send audio to deepgram: %w", err)
	}
	return collector.Segments(), nil
}

func (t *Transcriber) listenURL() (string, error) {
	listenURL, err := url.Parse(t.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse listen endpoint: %w", err)
	}
	query := listenURL.Query()
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	query.Set("channels", "1")
	query.Set("model", t.cfg.Model)
	query.Set("language", t.cfg.Language)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")

	// nova-3 replaced keyword boosting with keyterm prompting.
	if strings.HasPrefix(t.cfg.Model, "nova-3") {
		for _, keyword := range t.cfg.Keywords {
			query.Add("keyterm", keyword.Phrase)
		}
	} else {
		for _, keyword := range t.cfg.Keywords {
			query.Add("keywords", keyword.Phrase+":"+strconv.FormatFloat(float64(keyword.Boost), 'f', -1, 32))
		}
	}

	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

func sendUtterance(conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += frameBytes {
		end := min(start+frameBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return err
		}
	}
	return conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
}

// recordMessage folds one server message into collector. done reports end of stream.
func recordMessage(collector *transcript.Collector, msg []byte) (bool, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return false, fmt.Errorf("decode deepgram message: %w", err)
	}

	switch envelope.Type {
	case string(api.TypeMessageResponse):
		var result api.MessageResponse
		if err := json.Unmarshal(msg, &result); err != nil {
			return false, fmt.Errorf("decode deepgram result: %w", err)
		}
		if len(result.Channel.Alternatives) > 0 {
			collector.Add(result.Channel.Alternatives[0].Transcript, result.IsFinal)
		}
		return false, nil
	case typeMetadata:
		return true, nil
	case "Error":
		var failure struct {
			Description string `json:"description"`
			Message     string `json:"message"`
		}
		_ = json.Unmarshal(msg, &failure)
		detail := strings.TrimSpace(failure.Description + " " + failure.Message)
		if detail == "" {
			detail = "unknown error"
		}
		return false, errors.New("deepgram error: " + detail)
	default:
		return false, nil
	}
}
