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

const classifySystemPrompt = `Eres un asistente de reuniones que analiza el contenido de mensajes para detectar información importante.

Analiza el siguiente mensaje y determina si contiene:
1. Tareas o acciones a realizar
2. Definiciones o aclaraciones de conceptos
3. Bloqueantes o problemas a resolver

Si encuentras alguno de estos elementos, devuelve un objeto JSON con:
- "response": una respuesta explicativa y útil al mensaje
- "category": una categoría para la respuesta (task, definition, blocker o general)
- "tasks": las tareas detectadas con "title", "description", "assignee" (si se menciona) y "due_date" (si se menciona)

Responde en español y sé conciso.`

const summarySystemPrompt = `Eres un asistente especializado en resumir reuniones.
Genera un resumen conciso y estructurado de la siguiente reunión, destacando:
1. Temas principales discutidos
2. Decisiones tomadas
3. Tareas asignadas (si las hay)
4. Puntos pendientes para futuras reuniones

Responde en español.`

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewOpenAIClient creates a client for the given endpoint and model.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("openai error (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("openai error: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Classify runs the element-detection prompt in JSON mode. A reply the
// model produced but that does not parse as the expected object degrades
// to the fallback classification instead of failing the message.
func (c *OpenAIClient) Classify(ctx context.Context, text string) (*Classification, error) {
	content, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil || result.Response == "" {
		return FallbackClassification(), nil
	}
	if !validClassificationCategory(result.Category) {
		result.Category = "general"
	}
	return &result, nil
}

// Summarize generates a meeting summary from the transcript.
func (c *OpenAIClient) Summarize(ctx context.Context, transcript []TranscriptEntry) (string, error) {
	messages := make([]chatMessage, 0, len(transcript)+1)
	messages = append(messages, chatMessage{Role: "system", Content: summarySystemPrompt})
	for _, entry := range transcript {
		messages = append(messages, chatMessage{Role: entry.Role, Content: entry.Content})
	}

	summary, err := c.complete(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "No se pudo generar un resumen.", nil
	}
	return summary, nil
}

func validClassificationCategory(c string) bool {
	switch c {
	case "task", "definition", "blocker", "general":
		return true
	}
	return false
}
