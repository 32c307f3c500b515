package dto

type PromptRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Prompt    string `json:"prompt" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

type PromptResponse struct {
	LlmResponse string `json:"llmResponse"`
	Timestamp   string `json:"timestamp"`
}

type UploadResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Index   string `json:"index"`
	Source  string `json:"source"`
}

// StreamFrame is one websocket message of a streamed answer.
type StreamFrame struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

const (
	StreamFrameToken = "token"
	StreamFrameDone  = "done"
	StreamFrameError = "error"
)
