// Package llm provides the client for the remote assistants API.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// ErrStreamClosed is returned when reading from a closed stream.
var ErrStreamClosed = errors.New("stream closed")

// AssistantClient defines the remote operations the run engine needs.
type AssistantClient interface {
	// CreateAssistant creates a persona bound to a model, instructions and
	// tools and returns its id.
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)

	// CreateThread creates an empty conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AppendMessage adds a message to a thread.
	AppendMessage(ctx context.Context, threadID string, role domain.Role, content string) error

	// CreateRunStream starts a streamed run of the assistant on the thread.
	CreateRunStream(ctx context.Context, threadID, assistantID string) (EventStream, error)

	// SubmitToolOutputsStream submits the outputs of a paused run and returns
	// the stream of the resumed run.
	SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []openai.ToolOutput) (EventStream, error)

	// CancelRun cancels an active run.
	CancelRun(ctx context.Context, threadID, runID string) error

	// LatestMessage returns the most recent message of the thread.
	LatestMessage(ctx context.Context, threadID string) (*Message, error)

	// ListModels returns the ids of the models available to the account.
	ListModels(ctx context.Context) ([]string, error)
}

// AssistantSpec describes an assistant to create.
type AssistantSpec struct {
	Name         string
	Model        string
	Instructions string
	Tools        []openai.AssistantTool
}

// Message is a thread message reduced to its text.
type Message struct {
	ID      string
	Role    string
	Content string
}

// StreamEvent is one event of a streamed run.
type StreamEvent struct {
	Event domain.StreamEventType
	Data  json.RawMessage
	// Run is set for thread.run.* lifecycle events.
	Run *openai.Run
}

// EventStream iterates over the events of a streamed run.
//
//	for stream.Next() {
//		ev := stream.Event()
//	}
//	if err := stream.Err(); err != nil { ... }
type EventStream interface {
	Next() bool
	Event() StreamEvent
	Err() error
	Close() error
}

// Ensure implementations satisfy AssistantClient.
var (
	_ AssistantClient = (*Client)(nil)
	_ AssistantClient = (*MockClient)(nil)
)
