package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// Call records one invocation of the mock client.
type Call struct {
	Method   string
	ThreadID string
	RunID    string
	Role     domain.Role
	Content  string
	Outputs  []openai.ToolOutput
	Spec     *AssistantSpec
}

// Script is the sequence of events one stream delivers, optionally followed
// by a read error.
type Script struct {
	Events []StreamEvent
	Err    error
}

// MockClient is a scriptable AssistantClient. Streams are served from the
// queued scripts in order; when the queue is empty a run that echoes the
// last user message is generated.
type MockClient struct {
	mu      sync.Mutex
	calls   []Call
	scripts []Script
	seq     atomic.Int64

	// Errors makes the named method fail.
	Errors map[string]error
	// Latest overrides the message returned by LatestMessage.
	Latest *Message
	// Models is returned by ListModels.
	Models []string

	lastUser map[string]string
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		Errors:   make(map[string]error),
		Models:   []string{"mock-gpt-4o", "mock-gpt-4o-mini"},
		lastUser: make(map[string]string),
	}
}

// Enqueue adds stream scripts to the queue.
func (m *MockClient) Enqueue(scripts ...Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, scripts...)
}

// Calls returns the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one method.
func (m *MockClient) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.Errors[c.Method]
}

func (m *MockClient) nextID(prefix string) string {
	return fmt.Sprintf("%s_mock_%d", prefix, m.seq.Add(1))
}

func (m *MockClient) CreateAssistant(_ context.Context, spec AssistantSpec) (string, error) {
	if err := m.record(Call{Method: "CreateAssistant", Spec: &spec}); err != nil {
		return "", err
	}
	return m.nextID("asst"), nil
}

func (m *MockClient) CreateThread(context.Context) (string, error) {
	if err := m.record(Call{Method: "CreateThread"}); err != nil {
		return "", err
	}
	return m.nextID("thread"), nil
}

func (m *MockClient) AppendMessage(_ context.Context, threadID string, role domain.Role, content string) error {
	if err := m.record(Call{Method: "AppendMessage", ThreadID: threadID, Role: role, Content: content}); err != nil {
		return err
	}
	if role == domain.RoleUser {
		m.mu.Lock()
		m.lastUser[threadID] = content
		m.mu.Unlock()
	}
	return nil
}

func (m *MockClient) CreateRunStream(_ context.Context, threadID, assistantID string) (EventStream, error) {
	if err := m.record(Call{Method: "CreateRunStream", ThreadID: threadID, Content: assistantID}); err != nil {
		return nil, err
	}
	return m.stream(threadID), nil
}

func (m *MockClient) SubmitToolOutputsStream(_ context.Context, threadID, runID string, outputs []openai.ToolOutput) (EventStream, error) {
	if err := m.record(Call{Method: "SubmitToolOutputsStream", ThreadID: threadID, RunID: runID, Outputs: outputs}); err != nil {
		return nil, err
	}
	return m.stream(threadID), nil
}

func (m *MockClient) CancelRun(_ context.Context, threadID, runID string) error {
	return m.record(Call{Method: "CancelRun", ThreadID: threadID, RunID: runID})
}

func (m *MockClient) LatestMessage(_ context.Context, threadID string) (*Message, error) {
	if err := m.record(Call{Method: "LatestMessage", ThreadID: threadID}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Latest != nil {
		msg := *m.Latest
		return &msg, nil
	}
	return &Message{
		ID:      m.nextID("msg"),
		Role:    string(domain.RoleAssistant),
		Content: mockReply(m.lastUser[threadID]),
	}, nil
}

func (m *MockClient) ListModels(context.Context) ([]string, error) {
	if err := m.record(Call{Method: "ListModels"}); err != nil {
		return nil, err
	}
	return append([]string(nil), m.Models...), nil
}

func (m *MockClient) stream(threadID string) EventStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.scripts) > 0 {
		s := m.scripts[0]
		m.scripts = m.scripts[1:]
		return &scriptedStream{events: s.Events, err: s.Err}
	}
	run := openai.Run{ID: m.nextID("run"), ThreadID: threadID}
	return &scriptedStream{events: CompletedRun(run, mockReply(m.lastUser[threadID]))}
}

func mockReply(lastUserMessage string) string {
	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the assistant."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// scriptedStream replays a fixed list of events.
type scriptedStream struct {
	events  []StreamEvent
	err     error
	pos     int
	current StreamEvent
	closed  bool
	failed  bool
}

func (s *scriptedStream) Next() bool {
	if s.closed {
		s.err = ErrStreamClosed
		s.failed = true
		return false
	}
	if s.pos < len(s.events) {
		s.current = s.events[s.pos]
		s.pos++
		return true
	}
	s.failed = s.err != nil
	return false
}

func (s *scriptedStream) Event() StreamEvent { return s.current }

func (s *scriptedStream) Err() error {
	if !s.failed {
		return nil
	}
	return s.err
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// RunEvent builds a lifecycle event carrying run with the given status.
func RunEvent(event domain.StreamEventType, run openai.Run, status openai.RunStatus) StreamEvent {
	run.Status = status
	data, _ := json.Marshal(run)
	return StreamEvent{Event: event, Data: data, Run: &run}
}

// DeltaEvent builds a message delta carrying text.
func DeltaEvent(text string) StreamEvent {
	data, _ := json.Marshal(map[string]any{
		"object": "thread.message.delta",
		"delta": map[string]any{
			"content": []map[string]any{{"type": "text", "text": map[string]any{"value": text}}},
		},
	})
	return StreamEvent{Event: domain.EventMessageDelta, Data: data}
}

// DoneEvent builds the end-of-stream marker.
func DoneEvent() StreamEvent {
	return StreamEvent{Event: domain.EventDone}
}

// CompletedRun scripts a run that answers with reply and completes.
func CompletedRun(run openai.Run, reply string) []StreamEvent {
	return []StreamEvent{
		RunEvent(domain.EventRunCreated, run, openai.RunStatusQueued),
		RunEvent(domain.EventRunQueued, run, openai.RunStatusQueued),
		RunEvent(domain.EventRunInProgress, run, openai.RunStatusInProgress),
		DeltaEvent(reply),
		RunEvent(domain.EventRunCompleted, run, openai.RunStatusCompleted),
		DoneEvent(),
	}
}

// RequiresAction scripts a run that pauses for the given tool calls.
func RequiresAction(run openai.Run, calls ...openai.ToolCall) []StreamEvent {
	run.RequiredAction = &openai.RunRequiredAction{
		Type:              openai.RequiredActionTypeSubmitToolOutputs,
		SubmitToolOutputs: &openai.SubmitToolOutputs{ToolCalls: calls},
	}
	return []StreamEvent{
		RunEvent(domain.EventRunCreated, run, openai.RunStatusQueued),
		RunEvent(domain.EventRunInProgress, run, openai.RunStatusInProgress),
		RunEvent(domain.EventRunRequiresAction, run, openai.RunStatusRequiresAction),
	}
}

// FunctionCall builds a function tool call.
func FunctionCall(id, name, arguments string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}
