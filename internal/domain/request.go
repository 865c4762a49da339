package domain

// SendMessageRequest is the browser request that starts a turn.
type SendMessageRequest struct {
	Message  string `json:"message" form:"message"`
	Greeting string `json:"greeting,omitempty" form:"greeting"`
}

// ConversationResponse is returned by the conversation endpoint.
type ConversationResponse struct {
	Success  bool                `json:"success"`
	Messages []ConversationEntry `json:"messages"`
}

// ConversationEntry is a history entry with an optional rendered body.
type ConversationEntry struct {
	ConversationMessage
	HTML string `json:"html,omitempty"`
}

// SelectModelRequest changes the model used for new assistants.
type SelectModelRequest struct {
	Model string `json:"model"`
}

// ModelsResponse lists the models a user can choose from.
type ModelsResponse struct {
	Success  bool     `json:"success"`
	Selected string   `json:"selected"`
	Models   []string `json:"models"`
}

// ToolsResponse lists the tools exposed to the model.
type ToolsResponse struct {
	Success    bool              `json:"success"`
	Namespaces map[string]string `json:"namespaces"`
	Tools      []ToolDescriptor  `json:"tools"`
}

// ErrorResponse is the JSON error payload of the simple endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
