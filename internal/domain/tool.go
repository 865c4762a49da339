package domain

import "encoding/json"

// ToolParameter describes one declared parameter of a skill function.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolDescriptor is a skill function as exposed to the model.
type ToolDescriptor struct {
	EncodedName string          `json:"encoded_name"`
	Namespace   string          `json:"namespace"`
	Skill       string          `json:"skill"`
	Function    string          `json:"function"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Schema      json.RawMessage `json:"schema"`
	Mutating    bool            `json:"mutating,omitempty"`
}

// ToolInvocationResult is the outcome of one tool call.
type ToolInvocationResult struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Output returns the text handed back to the model as the tool output.
func (r ToolInvocationResult) Output() string {
	if len(r.Response) > 0 {
		return string(r.Response)
	}
	return r.Message
}

// Succeed builds a successful result.
func Succeed(message string) ToolInvocationResult {
	return ToolInvocationResult{Success: true, Message: message}
}

// SucceedWith builds a successful result carrying a JSON payload. A value that
// cannot be encoded turns the result into a failure.
func SucceedWith(message string, v any) ToolInvocationResult {
	data, err := json.Marshal(v)
	if err != nil {
		return Fail("failed to encode response: " + err.Error())
	}
	return ToolInvocationResult{Success: true, Message: message, Response: data}
}

// Fail builds an unsuccessful result.
func Fail(message string) ToolInvocationResult {
	return ToolInvocationResult{Success: false, Message: message}
}
