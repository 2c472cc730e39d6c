package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/acta-labs/acta/pkg/logger"
	"github.com/acta-labs/acta/pkg/metrics"
)

// Service composes the provider clients into one Gateway and instruments
// every round trip with logs and metrics.
type Service struct {
	openai *OpenAIClient
	gemini *GeminiClient
	eleven *ElevenLabsClient
	log    *slog.Logger
}

// NewService wires the provider clients into a Gateway.
func NewService(openai *OpenAIClient, gemini *GeminiClient, eleven *ElevenLabsClient, log *slog.Logger) *Service {
	return &Service{openai: openai, gemini: gemini, eleven: eleven, log: log}
}

func (s *Service) observe(provider, operation string, start time.Time, err error) {
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordAIRequest(provider, operation, status)
	metrics.RecordAIRequestDuration(provider, operation, elapsed.Seconds())
	logger.LogAIRequest(s.log, provider, operation, elapsed.Milliseconds(), err)
}

func (s *Service) Classify(ctx context.Context, text string) (*Classification, error) {
	start := time.Now()
	result, err := s.openai.Classify(ctx, text)
	s.observe("openai", "classify", start, err)
	return result, err
}

func (s *Service) Summarize(ctx context.Context, transcript []TranscriptEntry) (string, error) {
	start := time.Now()
	summary, err := s.openai.Summarize(ctx, transcript)
	s.observe("openai", "summarize", start, err)
	return summary, err
}

func (s *Service) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	start := time.Now()
	text, err := s.gemini.Transcribe(ctx, audio, mimeType)
	s.observe("gemini", "transcribe", start, err)
	return text, err
}

func (s *Service) Speak(ctx context.Context, req SpeechRequest) ([]byte, error) {
	start := time.Now()
	audio, err := s.eleven.Speak(ctx, req)
	s.observe("elevenlabs", "speak", start, err)
	return audio, err
}
