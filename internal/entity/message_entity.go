package entity

// Message is one turn of a session as stored in the ledger.
type Message struct {
	Id        int64  `json:"id"`
	SessionId string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Truncated bool   `json:"truncated,omitempty"`
}
