package serverutils

import (
	"bufio"
	"strings"
)

// WriteSSEData writes one server-sent event. Multi-line payloads become one
// data field per line so the client reassembles them with newlines.
func WriteSSEData(w *bufio.Writer, data string) error {
	for _, line := range strings.Split(data, "\n") {
		if _, err := w.WriteString("data: " + line + "\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteSSEEvent writes a named event, used for the terminal error frame.
func WriteSSEEvent(w *bufio.Writer, event, data string) error {
	if _, err := w.WriteString("event: " + event + "\n"); err != nil {
		return err
	}
	return WriteSSEData(w, data)
}
