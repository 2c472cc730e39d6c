package ai

import (
	"context"
	"fmt"
	"strings"
)

// MockGateway is an in-process Gateway used in development when no
// provider keys are configured, and as a test double. The function fields
// override individual operations; unset fields fall back to canned
// deterministic behavior.
type MockGateway struct {
	ClassifyFunc   func(ctx context.Context, text string) (*Classification, error)
	SummarizeFunc  func(ctx context.Context, transcript []TranscriptEntry) (string, error)
	TranscribeFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)
	SpeakFunc      func(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// NewMockGateway returns a gateway with the canned default behavior.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Classify returns a task classification when the text looks actionable,
// general otherwise. The heuristic is intentionally crude.
func (m *MockGateway) Classify(ctx context.Context, text string) (*Classification, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"necesito", "hay que", "debemos", "revisar", "todo:"} {
		if strings.Contains(lower, kw) {
			return &Classification{
				Response: "He detectado una tarea en el mensaje.",
				Category: "task",
				Tasks: []TaskProposal{{
					Title:       firstWords(text, 8),
					Description: text,
				}},
			}, nil
		}
	}
	return &Classification{Response: "Mensaje registrado.", Category: "general"}, nil
}

func (m *MockGateway) Summarize(ctx context.Context, transcript []TranscriptEntry) (string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, transcript)
	}
	return fmt.Sprintf("Resumen de la reunión: se registraron %d intervenciones.", len(transcript)), nil
}

func (m *MockGateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, mimeType)
	}
	return "Transcripción simulada del audio.", nil
}

func (m *MockGateway) Speak(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, req)
	}
	return []byte("mock-audio"), nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
