// Package ai holds the clients for the external AI providers the server
// depends on: OpenAI for classification and summaries, Gemini for audio
// transcription, ElevenLabs for speech synthesis.
package ai

import "context"

// TaskProposal is a task the classifier extracted from a user message.
type TaskProposal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// Classification is the assistant's read of one user message.
type Classification struct {
	Response string         `json:"response"`
	Category string         `json:"category"` // task, definition, blocker, general
	Tasks    []TaskProposal `json:"tasks,omitempty"`
}

// TranscriptEntry is one turn of a meeting transcript handed to the
// summarizer.
type TranscriptEntry struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// SpeechRequest describes a text-to-speech synthesis request. An empty
// VoiceID selects the provider default.
type SpeechRequest struct {
	Text    string
	VoiceID string
}

// Gateway is the AI provider surface the session layer consumes.
type Gateway interface {
	// Classify analyzes a user message and returns an assistant reply,
	// a category, and any task proposals found in the message.
	Classify(ctx context.Context, text string) (*Classification, error)
	// Summarize produces a meeting summary from the transcript.
	Summarize(ctx context.Context, transcript []TranscriptEntry) (string, error)
	// Transcribe converts an audio blob into text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	// Speak synthesizes audio for the given text.
	Speak(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// FallbackClassification is returned when the model's reply cannot be
// parsed. The user message is kept; no tasks are proposed.
func FallbackClassification() *Classification {
	return &Classification{
		Response: "No se detectaron elementos destacables en el mensaje.",
		Category: "general",
	}
}
