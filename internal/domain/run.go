package domain

// RunSession is the remote binding cached for one browser session.
type RunSession struct {
	AssistantID   string `json:"assistant_id,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
	SelectedModel string `json:"selected_model"`
}

// AssistantBinding is the stored assistant identifier together with the
// fingerprint of the tools and instructions it was created with.
type AssistantBinding struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// TurnOutcome summarizes how a single turn ended.
type TurnOutcome struct {
	TurnID    string   `json:"turn_id"`
	State     RunState `json:"state"`
	RunID     string   `json:"run_id,omitempty"`
	ToolCalls int      `json:"tool_calls"`
	Error     string   `json:"error,omitempty"`
}
