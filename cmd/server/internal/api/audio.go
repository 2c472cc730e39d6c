package api

import (
	"encoding/base64"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/acta-labs/acta/cmd/server/internal/ai"
	"github.com/acta-labs/acta/cmd/server/internal/store"
)

// maxAudioUpload bounds recording uploads to 25 MB.
const maxAudioUpload = 25 << 20

type speechRequest struct {
	Text    string `json:"text" binding:"required"`
	VoiceID string `json:"voice_id"`
}

// HandleTranscribeAudio POST /api/v1/audio/transcriptions
// Accepts a multipart "file" field, stores the recording, and returns
// its transcription.
func HandleTranscribeAudio(gateway ai.Gateway, blobs *store.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			badRequestResponse(c, "missing audio file: "+err.Error())
			return
		}
		defer file.Close()

		if header.Size > maxAudioUpload {
			badRequestResponse(c, "audio file too large")
			return
		}

		audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}
		if len(audio) == 0 {
			badRequestResponse(c, "empty audio file")
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "audio/webm"
		}

		name, err := blobs.SaveRecording(audio, extForMime(mimeType))
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		text, err := gateway.Transcribe(c.Request.Context(), audio, mimeType)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		successResponse(c, gin.H{
			"transcription": text,
			"recording":     name,
		})
	}
}

// HandleSpeech POST /api/v1/audio/speech
// Synthesizes audio for the given text and returns it base64-encoded.
func HandleSpeech(gateway ai.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req speechRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request: "+err.Error())
			return
		}

		audio, err := gateway.Speak(c.Request.Context(), ai.SpeechRequest{
			Text:    req.Text,
			VoiceID: req.VoiceID,
		})
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		successResponse(c, gin.H{
			"audio_content": base64.StdEncoding.EncodeToString(audio),
			"content_type":  "audio/mpeg",
		})
	}
}

func extForMime(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return "webm"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "audio/ogg":
		return "ogg"
	}
	return "webm"
}
