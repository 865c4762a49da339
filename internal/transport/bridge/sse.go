package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("bridge: streaming not supported")

// SSE writes entries as server-sent events.
//
// Each entry becomes one frame:
//
//	event: message
//	data: {"role":"assistant","message":"..."}
//
// followed by optional padding so proxies that buffer small writes pass it
// on right away.
type SSE struct {
	w       http.ResponseWriter
	flusher http.Flusher
	padding string

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewSSE wraps w. padding is the number of filler bytes written after each
// frame.
func NewSSE(w http.ResponseWriter, padding int) (*SSE, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	s := &SSE{w: w, flusher: flusher}
	if padding > 0 {
		// a comment line is ignored by EventSource
		s.padding = ":" + strings.Repeat(" ", padding) + "\n\n"
	}
	return s, nil
}

// Start sends the streaming headers. Calling it again is a no-op.
func (s *SSE) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start()
}

func (s *SSE) start() error {
	if s.started {
		return nil
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	return nil
}

// Send writes msg as a message frame and flushes it.
func (s *SSE) Send(msg domain.ConversationMessage) error {
	data, err := json.Marshal(msg.Frame())
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.start(); err != nil {
		return err
	}
	return s.write(domain.FrameMessage, data)
}

// Close writes the close frame. Later sends fail with ErrClosed.
func (s *SSE) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.start(); err != nil {
		return err
	}
	s.closed = true
	return s.write(domain.FrameClose, []byte("{}"))
}

func (s *SSE) write(event string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n%s", event, data, s.padding); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}
