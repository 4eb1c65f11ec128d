// Package voice is the client for the external speech service that
// handles transcription and synthesis. Synthesis failures are
// expected; callers degrade to text-only responses.
package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client converts between audio and text.
type Client interface {
	// Transcribe converts audio to text. A zero sampleRate leaves the
	// rate to the service. An empty transcript is a valid outcome for
	// silence or noise.
	Transcribe(ctx context.Context, audio []byte, format string, sampleRate int) (string, error)
	// Synthesize converts text to audio in the service's output
	// format.
	Synthesize(ctx context.Context, text, voiceName string) ([]byte, error)
}

// HTTPClient talks to a speech service over HTTP.
type HTTPClient struct {
	baseURL      string
	defaultVoice string
	speed        float64
	client       *http.Client
}

// NewHTTPClient creates a speech service client.
func NewHTTPClient(baseURL, defaultVoice string, speed float64) *HTTPClient {
	if speed <= 0 {
		speed = 1.0
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultVoice: defaultVoice,
		speed:        speed,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

type transcribeRequest struct {
	Audio      string `json:"audio"` // base64
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe posts audio to the service's STT endpoint.
func (h *HTTPClient) Transcribe(ctx context.Context, audio []byte, format string, sampleRate int) (string, error) {
	payload, err := json.Marshal(transcribeRequest{
		Audio:      base64.StdEncoding.EncodeToString(audio),
		Format:     format,
		SampleRate: sampleRate,
	})
	if err != nil {
		return "", err
	}

	body, err := h.post(ctx, "/stt", payload)
	if err != nil {
		return "", err
	}

	var resp transcribeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}
	return resp.Text, nil
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

type synthesizeResponse struct {
	Audio string `json:"audio"` // base64
}

// Synthesize posts text to the service's TTS endpoint.
func (h *HTTPClient) Synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	if voiceName == "" {
		voiceName = h.defaultVoice
	}
	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: voiceName, Speed: h.speed})
	if err != nil {
		return nil, err
	}

	body, err := h.post(ctx, "/tts", payload)
	if err != nil {
		return nil, err
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing synthesis response: %w", err)
	}
	return base64.StdEncoding.DecodeString(resp.Audio)
}

func (h *HTTPClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech service error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
