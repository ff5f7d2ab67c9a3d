package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// stream writes server-sent events. Every frame carries a fresh id and the
// event type twice: as the SSE event name and inside the JSON payload, which
// is what the playground frontend parses.
type stream struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
}

func newStream(w http.ResponseWriter) *stream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	s := &stream{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

type frame struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

type contentMessage struct {
	Content string `json:"content"`
}

type completeMessage struct {
	Response []responseChoice `json:"response"`
}

type responseChoice struct {
	Message contentMessage `json:"message"`
}

func (s *stream) send(typ string, message any) error {
	body, err := json.Marshal(frame{Type: typ, Message: message})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), typ, body); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

func (s *stream) toolResult(content string) error {
	return s.send(eventToolResult, contentMessage{Content: content})
}

func (s *stream) complete(contents ...string) error {
	msg := completeMessage{Response: make([]responseChoice, 0, len(contents))}
	for _, c := range contents {
		msg.Response = append(msg.Response, responseChoice{Message: contentMessage{Content: c}})
	}
	return s.send(eventComplete, msg)
}

func (s *stream) fail(err error) error {
	return s.send(eventError, err.Error())
}
