package llm

import (
	"net/http"
	"time"
)

// RequestTimeout bounds a whole-response call, and only the wait for response
// headers of a streamed one.
const RequestTimeout = 120 * time.Second

func NewClient() *http.Client {
	return &http.Client{Timeout: RequestTimeout}
}

// NewStreamingClient has no overall deadline, so a streamed body can be read
// for as long as the request context allows.
func NewStreamingClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = RequestTimeout
	return &http.Client{Transport: transport}
}
