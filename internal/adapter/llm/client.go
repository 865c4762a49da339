package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// DefaultBaseURL is the public assistants API.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client talks to the assistants API. Resource calls go through go-openai;
// run streams are read directly because the library does not stream runs.
type Client struct {
	api        *openai.Client
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new client. Streams use the transport defaults and
// have no overall timeout.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := &http.Client{}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// CreateAssistant creates an assistant and returns its id.
func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	req := openai.AssistantRequest{
		Model: spec.Model,
		Tools: spec.Tools,
	}
	if spec.Name != "" {
		req.Name = &spec.Name
	}
	if spec.Instructions != "" {
		req.Instructions = &spec.Instructions
	}
	assistant, err := c.api.CreateAssistant(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	return assistant.ID, nil
}

// CreateThread creates an empty thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// AppendMessage adds a message to a thread. The remote service only accepts
// user and assistant messages; other roles are sent as user messages.
func (c *Client) AppendMessage(ctx context.Context, threadID string, role domain.Role, content string) error {
	r := string(domain.RoleUser)
	if role == domain.RoleAssistant {
		r = string(domain.RoleAssistant)
	}
	_, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    r,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// CreateRunStream starts a streamed run.
func (c *Client) CreateRunStream(ctx context.Context, threadID, assistantID string) (EventStream, error) {
	body := map[string]any{
		"assistant_id": assistantID,
		"stream":       true,
	}
	return c.stream(ctx, "/threads/"+url.PathEscape(threadID)+"/runs", body)
}

// SubmitToolOutputsStream submits tool outputs and streams the resumed run.
func (c *Client) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []openai.ToolOutput) (EventStream, error) {
	body := map[string]any{
		"tool_outputs": outputs,
		"stream":       true,
	}
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/submit_tool_outputs"
	return c.stream(ctx, path, body)
}

// CancelRun cancels a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.api.CancelRun(ctx, threadID, runID); err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	return nil
}

// LatestMessage returns the newest message of a thread.
func (c *Client) LatestMessage(ctx context.Context, threadID string) (*Message, error) {
	limit, order := 1, "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, fmt.Errorf("thread %s has no messages", threadID)
	}
	return toMessage(list.Messages[0]), nil
}

// ListModels returns the available model ids.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) stream(ctx context.Context, path string, payload any) (EventStream, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return newSSEStream(resp.Body), nil
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("LLM API error [%d]: %s", resp.StatusCode, errResp.Error.Message)
	}
	return fmt.Errorf("LLM API error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}

func toMessage(m openai.Message) *Message {
	var parts []string
	for _, c := range m.Content {
		if c.Text != nil && c.Text.Value != "" {
			parts = append(parts, c.Text.Value)
		}
	}
	return &Message{ID: m.ID, Role: m.Role, Content: strings.Join(parts, "\n\n")}
}
