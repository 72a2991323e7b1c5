package stream

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/zulandar/netlog/internal/broadcast"
)

// keepAliveFrame is an SSE comment; EventSource clients ignore it.
const keepAliveFrame = ": keep-alive\n\n"

// SSESink writes events as Server-Sent Events data frames.
type SSESink struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSESink sets the event-stream headers on w and returns a sink over it.
func NewSSESink(w http.ResponseWriter) *SSESink {
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSESink{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Send writes one data frame carrying the event's JSON.
func (s *SSESink) Send(ev broadcast.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := sse.Encode(s.w, sse.Event{Data: data}); err != nil {
		return err
	}
	s.flush()
	return nil
}

// KeepAlive writes a comment frame.
func (s *SSESink) KeepAlive() error {
	if _, err := io.WriteString(s.w, keepAliveFrame); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSESink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
