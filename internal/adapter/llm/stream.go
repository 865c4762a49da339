package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

const maxEventSize = 1 << 20

// sseStream reads server-sent events from a response body.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	current StreamEvent
	err     error
	done    bool

	closeOnce sync.Once
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseStream{body: body, scanner: scanner}
}

// Next advances to the next event. It returns false at the end of the
// stream or on error.
func (s *sseStream) Next() bool {
	if s.done {
		return false
	}

	var event, data string
	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event == "" && data == "" {
				continue
			}
			return s.emit(event, data)
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data != "" {
				data += "\n" + chunk
			} else {
				data = chunk
			}
		}
		// Ignore comments (lines starting with :) and other fields
	}

	if err := s.scanner.Err(); err != nil {
		s.fail(fmt.Errorf("unable to read from stream: %w", err))
		return false
	}
	// Handle any remaining event
	if event != "" || data != "" {
		return s.emit(event, data)
	}
	s.done = true
	return false
}

func (s *sseStream) emit(event, data string) bool {
	ev, err := decodeEvent(event, data)
	if err != nil {
		s.fail(err)
		return false
	}
	s.current = ev
	return true
}

func (s *sseStream) fail(err error) {
	s.err = err
	s.done = true
}

func (s *sseStream) Event() StreamEvent { return s.current }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		err = s.body.Close()
	})
	return err
}

// decodeEvent converts a raw event into a StreamEvent, decoding the run
// object of lifecycle events.
func decodeEvent(event, data string) (StreamEvent, error) {
	ev := StreamEvent{Event: domain.StreamEventType(event)}
	if data != "" && data != "[DONE]" {
		ev.Data = json.RawMessage(data)
	}
	if isRunEvent(ev.Event) && len(ev.Data) > 0 {
		var run openai.Run
		if err := json.Unmarshal(ev.Data, &run); err != nil {
			return StreamEvent{}, fmt.Errorf("failed to decode %s event: %w", event, err)
		}
		ev.Run = &run
	}
	return ev, nil
}

func isRunEvent(t domain.StreamEventType) bool {
	s := string(t)
	return strings.HasPrefix(s, "thread.run.") && !strings.HasPrefix(s, "thread.run.step.")
}
