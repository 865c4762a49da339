package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/adapter/llm"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/service"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills/system"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills/templates"
	"github.com/doublesecretagency/craft-sidekick-sub000/tests/helpers"
)

const testSessionID = "8c5b1b8e-3d55-4a5e-9a62-0c3c1d2f6a10"

type testServer struct {
	echo    *echo.Echo
	service *service.Service
	client  *llm.MockClient
	config  *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Mode = config.ModeMock

	client := llm.NewMockClient()
	svc := service.New(helpers.NewTestSQLiteStore(t), client, skills.NewRegistry(nil,
		templates.New(t.TempDir()),
		system.New(skills.Env{HostVersion: "5.0.0"}),
	), nil, cfg, nil, nil)
	require.NoError(t, svc.Reload(context.Background()))

	e := echo.New()
	NewHandler(svc, cfg, nil).RegisterRoutes(e)
	return &testServer{echo: e, service: svc, client: client, config: cfg}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: s.config.Session.CookieName, Value: testSessionID})
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestSessionCookieIssued(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/conversation", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sidekick_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	// a known session keeps its cookie
	rec = s.do(http.MethodGet, "/v1/chat/conversation", "")
	assert.Empty(t, rec.Result().Cookies())
}

func TestSendMessageStreams(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/chat/messages", `{"message":"Hello","greeting":"Hi there"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: message\ndata: {\"role\":\"assistant\",\"message\":\"Hi there\"}\n\n"), body)
	assert.Contains(t, body, `"role":"tool","message":"thread.run.completed"`)
	assert.Contains(t, body, `[MOCK] Received your message`)
	assert.NotContains(t, body, `"role":"user"`)
	assert.True(t, strings.HasSuffix(body, "event: close\ndata: {}\n\n"))
}

func TestSendMessageRequiresMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/chat/messages", `{"message":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"message is required"}`, rec.Body.String())
	assert.Empty(t, s.client.Calls())
}

func TestGetConversation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/v1/chat/conversation?greeting=**Hi**", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, resp.Messages[0].Role)
	assert.Equal(t, "**Hi**", resp.Messages[0].Message)
	assert.Equal(t, "<p><strong>Hi</strong></p>\n", resp.Messages[0].HTML)

	s.do(http.MethodPost, "/v1/chat/messages", `{"message":"Hello"}`)

	rec = s.do(http.MethodGet, "/v1/chat/conversation?greeting=Hi", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.RoleUser, resp.Messages[0].Role)
	assert.Empty(t, resp.Messages[0].HTML)
	last := resp.Messages[len(resp.Messages)-1]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.NotEmpty(t, last.HTML)
}

func TestClearConversation(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/v1/chat/messages", `{"message":"Hello"}`)

	rec := s.do(http.MethodDelete, "/v1/chat/conversation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/v1/chat/conversation", "")
	var resp domain.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
}

func TestModels(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "gpt-4o", resp.Selected)
	assert.Equal(t, s.config.OpenAI.Models, resp.Models)

	rec = s.do(http.MethodPut, "/v1/models/selected", `{"model":"gpt-4o-mini"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "gpt-4o-mini", resp.Selected)

	rec = s.do(http.MethodPut, "/v1/models/selected", `{"model":"davinci"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	// the new model is used for the next assistant
	s.do(http.MethodPost, "/v1/chat/messages", `{"message":"Hello"}`)
	created := s.client.CallsTo("CreateAssistant")
	require.Len(t, created, 1)
	assert.Equal(t, "gpt-4o-mini", created[0].Spec.Model)
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/v1/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.ToolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, skills.BuiltinNamespace, resp.Namespaces[skills.NamespaceHash(skills.BuiltinNamespace)])

	var names []string
	for _, d := range resp.Tools {
		names = append(names, d.EncodedName)
	}
	assert.Contains(t, names, skills.EncodeName(skills.BuiltinNamespace, "Templates", "createFile"))
	assert.Contains(t, names, skills.EncodeName(skills.BuiltinNamespace, "System", "getSystemInfo"))
}

func TestChatSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	header := http.Header{}
	header.Add("Cookie", s.config.Session.CookieName+"="+testSessionID)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/chat/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	readTurn := func() []domain.MessageFrame {
		var frames []domain.MessageFrame
		for {
			var frame domain.SocketFrame
			require.NoError(t, conn.ReadJSON(&frame))
			if frame.Event == domain.FrameClose {
				return frames
			}
			require.NotNil(t, frame.Data)
			frames = append(frames, *frame.Data)
		}
	}

	require.NoError(t, conn.WriteJSON(domain.SendMessageRequest{Message: "Hello"}))
	frames := readTurn()
	require.NotEmpty(t, frames)
	assert.Equal(t, domain.RoleAssistant, frames[len(frames)-1].Role)
	assert.Contains(t, frames[len(frames)-1].Message, "Hello")

	require.NoError(t, conn.WriteJSON(domain.SendMessageRequest{Message: ""}))
	frames = readTurn()
	assert.Equal(t, []domain.MessageFrame{{Role: domain.RoleError, Message: "message is required"}}, frames)

	// both turns ran on the same session
	assert.Len(t, s.client.CallsTo("CreateThread"), 1)
}
