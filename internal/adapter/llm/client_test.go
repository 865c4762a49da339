package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

const runStream = "event: thread.run.created\n" +
	`data: {"id":"run_1","object":"thread.run","thread_id":"thread_1","status":"queued"}` + "\n\n" +
	": keep-alive\n\n" +
	"event: thread.message.delta\n" +
	`data: {"id":"msg_1","object":"thread.message.delta","delta":{"content":[{"index":0,"type":"text","text":{"value":"Hi"}}]}}` + "\n\n" +
	"event: thread.run.requires_action\n" +
	`data: {"id":"run_1","object":"thread.run","thread_id":"thread_1","status":"requires_action","required_action":{"type":"submit_tool_outputs","submit_tool_outputs":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"abc123-Templates-readFile","arguments":"{\"file\":\"x\"}"}}]}}}` + "\n\n" +
	"event: done\n" +
	"data: [DONE]\n\n"

func TestCreateRunStream(t *testing.T) {
	var gotBody map[string]any
	var gotBeta, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thread_1/runs", r.URL.Path)
		gotBeta = r.Header.Get("OpenAI-Beta")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, runStream)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test")
	stream, err := c.CreateRunStream(context.Background(), "thread_1", "asst_1")
	require.NoError(t, err)
	defer stream.Close()

	var events []StreamEvent
	for stream.Next() {
		events = append(events, stream.Event())
	}
	require.NoError(t, stream.Err())

	assert.Equal(t, "assistants=v2", gotBeta)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "asst_1", gotBody["assistant_id"])
	assert.Equal(t, true, gotBody["stream"])

	require.Len(t, events, 4)
	assert.Equal(t, domain.EventRunCreated, events[0].Event)
	require.NotNil(t, events[0].Run)
	assert.Equal(t, "run_1", events[0].Run.ID)
	assert.Equal(t, openai.RunStatusQueued, events[0].Run.Status)

	assert.Equal(t, domain.EventMessageDelta, events[1].Event)
	assert.Nil(t, events[1].Run)

	action := events[2].Run.RequiredAction
	require.NotNil(t, action)
	assert.Equal(t, openai.RequiredActionTypeSubmitToolOutputs, action.Type)
	require.Len(t, action.SubmitToolOutputs.ToolCalls, 1)
	call := action.SubmitToolOutputs.ToolCalls[0]
	assert.Equal(t, "abc123-Templates-readFile", call.Function.Name)
	assert.Equal(t, `{"file":"x"}`, call.Function.Arguments)

	assert.Equal(t, domain.EventDone, events[3].Event)
	assert.Empty(t, events[3].Data)
}

func TestSubmitToolOutputsStream(t *testing.T) {
	var gotBody struct {
		ToolOutputs []openai.ToolOutput `json:"tool_outputs"`
		Stream      bool                `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thread_1/runs/run_1/submit_tool_outputs", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, "event: thread.run.completed\ndata: {\"id\":\"run_1\",\"status\":\"completed\"}\n\n")
	}))
	defer srv.Close()

	stream, err := NewClient(srv.URL, "").SubmitToolOutputsStream(context.Background(), "thread_1", "run_1",
		[]openai.ToolOutput{{ToolCallID: "call_1", Output: "done"}})
	require.NoError(t, err)
	require.True(t, stream.Next())
	assert.Equal(t, openai.RunStatusCompleted, stream.Event().Run.Status)
	assert.False(t, stream.Next())
	require.NoError(t, stream.Err())

	assert.True(t, gotBody.Stream)
	require.Len(t, gotBody.ToolOutputs, 1)
	assert.Equal(t, "call_1", gotBody.ToolOutputs[0].ToolCallID)
}

func TestStreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").CreateRunStream(context.Background(), "t", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[429]: rate limited")
}

type failingReader struct{ data io.Reader }

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, errors.New("connection reset by peer")
	}
	return n, err
}

func (f *failingReader) Close() error { return nil }

func TestStreamReadFailure(t *testing.T) {
	stream := newSSEStream(&failingReader{data: strings.NewReader("event: thread.run.created\ndata: {\"id\":\"run_1\"}\n\nevent: thread.message.delta\n")})

	require.True(t, stream.Next())
	assert.Equal(t, "run_1", stream.Event().Run.ID)
	assert.False(t, stream.Next())
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "unable to read from stream")
}

func TestStreamMalformedRun(t *testing.T) {
	stream := newSSEStream(io.NopCloser(strings.NewReader("event: thread.run.failed\ndata: {not json}\n\n")))
	assert.False(t, stream.Next())
	assert.Error(t, stream.Err())
}

func TestLatestMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thread_1/messages", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"msg_9","object":"thread.message","role":"assistant","content":[{"type":"text","text":{"value":"Done!","annotations":[]}}]}]}`)
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL, "").LatestMessage(context.Background(), "thread_1")
	require.NoError(t, err)
	assert.Equal(t, &Message{ID: "msg_9", Role: "assistant", Content: "Done!"}, msg)
}

func TestResourceCalls(t *testing.T) {
	var appended map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/assistants":
			_, _ = io.WriteString(w, `{"id":"asst_1","object":"assistant","model":"gpt-4o"}`)
		case "/threads":
			_, _ = io.WriteString(w, `{"id":"thread_1","object":"thread"}`)
		case "/threads/thread_1/messages":
			_ = json.NewDecoder(r.Body).Decode(&appended)
			_, _ = io.WriteString(w, `{"id":"msg_1","object":"thread.message"}`)
		case "/threads/thread_1/runs/run_1/cancel":
			_, _ = io.WriteString(w, `{"id":"run_1","status":"cancelling"}`)
		case "/models":
			_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"gpt-4o"},{"id":"gpt-4.1"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL, "sk-test")

	id, err := c.CreateAssistant(ctx, AssistantSpec{Name: "Sidekick", Model: "gpt-4o", Instructions: "be nice"})
	require.NoError(t, err)
	assert.Equal(t, "asst_1", id)

	thread, err := c.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", thread)

	require.NoError(t, c.AppendMessage(ctx, thread, domain.RoleError, "SYSTEM ERROR: x"))
	assert.Equal(t, "user", appended["role"])

	require.NoError(t, c.CancelRun(ctx, thread, "run_1"))

	models, err := c.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4.1"}, models)
}
