package dto

type CreateSessionResponse struct {
	SessionId string `json:"sessionId"`
}

// ValidateSessionRequest accepts the id from the query string or a JSON body.
type ValidateSessionRequest struct {
	SessionId string `json:"session_id" query:"session_id"`
}

type MessageResponse struct {
	Id        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Truncated bool   `json:"truncated,omitempty"`
}

type SessionHistoryResponse struct {
	SessionId string             `json:"sessionId"`
	Messages  []*MessageResponse `json:"messages"`
}

// SweepSessionMessage is the payload of one SESSION_SWEEP job.
type SweepSessionMessage struct {
	SessionId string `json:"session_id"`
}
