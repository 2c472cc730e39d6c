package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const elevenModel = "eleven_multilingual_v2"

// ElevenLabsClient talks to the ElevenLabs text-to-speech API.
type ElevenLabsClient struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	http         *http.Client
}

// NewElevenLabsClient creates a client for the given endpoint.
func NewElevenLabsClient(apiKey, baseURL, defaultVoice string) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultVoice: defaultVoice,
		http:         &http.Client{Timeout: 60 * time.Second},
	}
}

type ttsRequest struct {
	Text          string      `json:"text"`
	ModelID       string      `json:"model_id"`
	VoiceSettings ttsSettings `json:"voice_settings"`
}

type ttsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak synthesizes MP3 audio for the given text.
func (c *ElevenLabsClient) Speak(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("empty text")
	}
	voice := req.VoiceID
	if voice == "" {
		voice = c.defaultVoice
	}

	body, err := json.Marshal(ttsRequest{
		Text:    req.Text,
		ModelID: elevenModel,
		VoiceSettings: ttsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs error: status %d", resp.StatusCode)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}
	return audio, nil
}
