// Package domain defines the core domain models for the assistant service.
package domain

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleError     Role = "error"
)

// Mirrored reports whether entries with this role must also be pushed to the
// live UI when they are appended during a run.
func (r Role) Mirrored() bool {
	switch r {
	case RoleAssistant, RoleTool, RoleError:
		return true
	}
	return false
}

// RunState represents a state of the run engine.
type RunState string

const (
	RunStateIdle                RunState = "IDLE"
	RunStateAssistantReady      RunState = "ASSISTANT_READY"
	RunStateThreadReady         RunState = "THREAD_READY"
	RunStateStreaming           RunState = "STREAMING"
	RunStateAwaitingToolOutputs RunState = "AWAITING_TOOL_OUTPUTS"
	RunStateCompleted           RunState = "COMPLETED"
	RunStateFailed              RunState = "FAILED"
	RunStateCancelled           RunState = "CANCELLED"
)

// Terminal reports whether no further transitions follow this state.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}

// StreamEventType is the name of an event on a streamed run.
type StreamEventType string

const (
	EventRunCreated        StreamEventType = "thread.run.created"
	EventRunQueued         StreamEventType = "thread.run.queued"
	EventRunInProgress     StreamEventType = "thread.run.in_progress"
	EventRunRequiresAction StreamEventType = "thread.run.requires_action"
	EventRunCompleted      StreamEventType = "thread.run.completed"
	EventRunIncomplete     StreamEventType = "thread.run.incomplete"
	EventRunCancelling     StreamEventType = "thread.run.cancelling"
	EventRunCancelled      StreamEventType = "thread.run.cancelled"
	EventRunFailed         StreamEventType = "thread.run.failed"
	EventRunExpired        StreamEventType = "thread.run.expired"
	EventMessageDelta      StreamEventType = "thread.message.delta"
	EventRunStepDelta      StreamEventType = "thread.run.step.delta"
	EventError             StreamEventType = "error"
	EventDone              StreamEventType = "done"
)

// IsDelta reports whether the event only carries raw token fragments.
func (e StreamEventType) IsDelta() bool {
	return e == EventMessageDelta || e == EventRunStepDelta
}
