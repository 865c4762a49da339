package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/adapter/llm"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/session"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

const (
	systemErrorPrefix   = "SYSTEM ERROR: "
	runFailurePrefix    = "Run unsuccessful. "
	streamReadFailure   = "unable to read from stream"
	streamTimeoutNotice = "Something has timed out. Please clear the conversation and try again."
	missingReply        = "unable to load last assistant message"
	endedWithoutReply   = "The run ended before the assistant replied."
	cancellingNotice    = "The run is being cancelled."
)

// ErrNotReady is returned when a turn is requested before Reload succeeded.
var ErrNotReady = errors.New("tool catalog has not been built")

// SendMessage runs one turn: the message is added to the conversation, the
// assistant is run on it and every entry the UI must show is sent to sink.
// It never returns an error; failures end up in the transcript.
func (s *Service) SendMessage(ctx context.Context, sess *session.Session, req domain.SendMessageRequest, sink Sink) domain.TurnOutcome {
	t := &turn{
		svc:     s,
		sess:    sess,
		sink:    sink,
		req:     req,
		id:      "turn_" + uuid.New().String()[:8],
		state:   domain.RunStateIdle,
		persist: context.WithoutCancel(ctx),
	}
	t.logger = sess.Logger().With("turn_id", t.id)

	unlock, err := s.locker.TryLock(sess.ID())
	if err != nil {
		// The other run owns the transcript; only this client is told.
		t.logger.Warn("rejected concurrent turn")
		_ = sink.Send(domain.NewMessage(domain.RoleError, err.Error()))
		s.metrics.TurnFinished("busy")
		return domain.TurnOutcome{TurnID: t.id, State: domain.RunStateFailed, Error: err.Error()}
	}
	defer unlock()

	t.dispatcher, t.instructions, t.fingerprint = s.snapshot()
	if t.dispatcher == nil {
		t.state = t.fail(ctx, ErrNotReady.Error())
	} else {
		t.run(ctx)
	}

	s.metrics.TurnFinished(strings.ToLower(string(t.state)))
	t.logger.Info("turn finished", "state", t.state, "run_id", t.runID, "tool_calls", t.toolCalls)
	return domain.TurnOutcome{
		TurnID:    t.id,
		State:     t.state,
		RunID:     t.runID,
		ToolCalls: t.toolCalls,
		Error:     t.errMsg,
	}
}

// turn is the state of one run of the engine.
type turn struct {
	svc          *Service
	sess         *session.Session
	sink         Sink
	req          domain.SendMessageRequest
	id           string
	logger       *slog.Logger
	dispatcher   *skills.Dispatcher
	instructions string
	fingerprint  string
	// persist outlives the request so a disconnected client still leaves a
	// complete transcript.
	persist context.Context

	state       domain.RunState
	assistantID string
	threadID    string
	runID       string
	stream      llm.EventStream
	pending     *openai.Run
	completed   bool
	started     bool
	toolCalls   int
	errMsg      string
	runDone     func()
}

type transition func(ctx context.Context) domain.RunState

func (t *turn) transitions() map[domain.RunState]transition {
	return map[domain.RunState]transition{
		domain.RunStateIdle:                t.ensureAssistant,
		domain.RunStateAssistantReady:      t.ensureThread,
		domain.RunStateThreadReady:         t.startRun,
		domain.RunStateStreaming:           t.consume,
		domain.RunStateAwaitingToolOutputs: t.submitToolOutputs,
	}
}

func (t *turn) run(ctx context.Context) {
	defer func() {
		t.closeStream()
		if t.runDone != nil {
			t.runDone()
		}
	}()
	steps := t.transitions()
	for !t.state.Terminal() {
		step, ok := steps[t.state]
		if !ok {
			t.state = t.fail(ctx, fmt.Sprintf("no transition from state %s", t.state))
			return
		}
		next := step(ctx)
		t.logger.Debug("run transition", "from", t.state, "to", next)
		t.state = next
	}
}

// Idle -> AssistantReady
func (t *turn) ensureAssistant(ctx context.Context) domain.RunState {
	binding, err := t.sess.Assistant(ctx)
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	if binding.ID != "" && (!t.svc.config.Assistant.RebindOnChange || binding.Fingerprint == t.fingerprint) {
		t.assistantID = binding.ID
		return domain.RunStateAssistantReady
	}
	if binding.ID != "" {
		t.logger.Info("tools or instructions changed, creating a new assistant", "previous", binding.ID)
	}

	id, err := t.svc.llm.CreateAssistant(ctx, llm.AssistantSpec{
		Name:         t.svc.config.Assistant.Name,
		Model:        t.sess.SelectedModel(ctx),
		Instructions: t.instructions,
		Tools:        t.dispatcher.Catalog().AssistantTools(),
	})
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	if err := t.sess.SetAssistant(ctx, domain.AssistantBinding{ID: id, Fingerprint: t.fingerprint}); err != nil {
		return t.fail(ctx, err.Error())
	}
	t.assistantID = id
	return domain.RunStateAssistantReady
}

// AssistantReady -> ThreadReady
func (t *turn) ensureThread(ctx context.Context) domain.RunState {
	id, err := t.sess.ThreadID(ctx)
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	if id == "" {
		id, err = t.svc.llm.CreateThread(ctx)
		if err != nil {
			return t.fail(ctx, err.Error())
		}
		if err := t.sess.SetThreadID(ctx, id); err != nil {
			return t.fail(ctx, err.Error())
		}
	}
	t.threadID = id
	t.logger = t.logger.With("thread_id", id)
	return domain.RunStateThreadReady
}

// ThreadReady -> Streaming
func (t *turn) startRun(ctx context.Context) domain.RunState {
	history := t.sess.History()
	if t.req.Greeting != "" && history.Empty(ctx) {
		t.record(domain.NewMessage(domain.RoleAssistant, t.req.Greeting))
		if err := t.svc.llm.AppendMessage(ctx, t.threadID, domain.RoleAssistant, t.req.Greeting); err != nil {
			return t.fail(ctx, err.Error())
		}
	}

	t.record(domain.NewMessage(domain.RoleUser, t.req.Message))
	if err := t.svc.llm.AppendMessage(ctx, t.threadID, domain.RoleUser, t.req.Message); err != nil {
		return t.fail(ctx, err.Error())
	}

	stream, err := t.svc.llm.CreateRunStream(ctx, t.threadID, t.assistantID)
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	t.stream = stream
	t.started = true

	t.runDone = t.svc.metrics.RunStarted()
	return domain.RunStateStreaming
}

// Streaming -> AwaitingToolOutputs | Completed | Failed | Cancelled
func (t *turn) consume(ctx context.Context) domain.RunState {
	for t.stream.Next() {
		ev := t.stream.Event()
		t.svc.metrics.StreamEvent(string(ev.Event))
		if ev.Run != nil {
			if ev.Run.ID != "" {
				t.runID = ev.Run.ID
			}
			if ev.Run.Status == openai.RunStatusCompleted {
				t.completed = true
			}
		}
		if !ev.Event.IsDelta() {
			t.logEvent(ev)
		}

		switch ev.Event {
		case domain.EventRunCompleted:
			t.completed = true
		case domain.EventRunCancelling:
			t.record(domain.NewMessage(domain.RoleError, cancellingNotice))
		case domain.EventRunFailed, domain.EventRunExpired, domain.EventRunIncomplete:
			return t.fail(ctx, runFailurePrefix+runErrorMessage(ev.Run))
		case domain.EventRunCancelled:
			t.fail(ctx, runFailurePrefix+runErrorMessage(ev.Run))
			return domain.RunStateCancelled
		case domain.EventError:
			return t.fail(ctx, runFailurePrefix+streamErrorMessage(ev.Data))
		case domain.EventRunRequiresAction:
			t.pending = ev.Run
			return domain.RunStateAwaitingToolOutputs
		case domain.EventDone:
			return t.finishStream(ctx)
		}
	}
	return t.finishStream(ctx)
}

func (t *turn) finishStream(ctx context.Context) domain.RunState {
	err := t.stream.Err()
	t.closeStream()
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	if !t.completed {
		return t.fail(ctx, endedWithoutReply)
	}
	return t.complete(ctx)
}

// AwaitingToolOutputs -> Streaming | Failed
func (t *turn) submitToolOutputs(ctx context.Context) domain.RunState {
	run := t.pending
	t.pending = nil
	if run == nil || run.RequiredAction == nil {
		return t.abort(ctx, run, "Run requires an action but none was given.")
	}
	action := run.RequiredAction
	if action.Type != openai.RequiredActionTypeSubmitToolOutputs || action.SubmitToolOutputs == nil {
		return t.abort(ctx, run, fmt.Sprintf("Unexpected required action type: %s", action.Type))
	}

	calls := action.SubmitToolOutputs.ToolCalls
	outputs := make([]openai.ToolOutput, 0, len(calls))
	for _, call := range calls {
		if call.Type != openai.ToolTypeFunction {
			return t.abort(ctx, run, fmt.Sprintf("Unexpected tool call type: %s", call.Type))
		}
		t.toolCalls++
		result := t.dispatcher.Execute(ctx, call.Function.Name, call.Function.Arguments)
		if !result.Success {
			return t.abort(ctx, run, result.Message)
		}

		entry := domain.NewMessage(domain.RoleTool, result.Message)
		entry.Event = call.Function.Name
		entry.Payload = result.Response
		t.record(entry)
		outputs = append(outputs, openai.ToolOutput{ToolCallID: call.ID, Output: result.Output()})
	}

	t.closeStream()
	stream, err := t.svc.llm.SubmitToolOutputsStream(ctx, t.threadID, run.ID, outputs)
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	t.stream = stream
	return domain.RunStateStreaming
}

// complete delivers the final assistant message.
func (t *turn) complete(ctx context.Context) domain.RunState {
	msg, err := t.svc.llm.LatestMessage(ctx, t.threadID)
	if err != nil {
		return t.fail(ctx, err.Error())
	}
	if msg == nil || msg.Role != string(domain.RoleAssistant) {
		return t.fail(ctx, missingReply)
	}
	t.record(domain.NewMessage(domain.RoleAssistant, msg.Content))
	return domain.RunStateCompleted
}

// abort cancels the remote run before failing the turn so it is not left
// waiting for outputs that will never arrive.
func (t *turn) abort(ctx context.Context, run *openai.Run, message string) domain.RunState {
	runID := t.runID
	if run != nil && run.ID != "" {
		runID = run.ID
	}
	if runID != "" {
		if err := t.svc.llm.CancelRun(t.persist, t.threadID, runID); err != nil {
			t.logger.Warn("failed to cancel run", "run_id", runID, "error", err)
		}
	}
	return t.fail(ctx, message)
}

// fail reports message as the turn's error. Errors raised before a remote
// run started are also added to the thread so the model sees them next turn.
func (t *turn) fail(_ context.Context, message string) domain.RunState {
	if strings.Contains(message, streamReadFailure) {
		message = streamTimeoutNotice
	}
	t.errMsg = message
	t.logger.Error("turn failed", "state", t.state, "run_id", t.runID, "error", message)

	t.record(domain.NewMessage(domain.RoleError, message))
	if !t.started && t.threadID != "" {
		if err := t.svc.llm.AppendMessage(t.persist, t.threadID, domain.RoleUser, systemErrorPrefix+message); err != nil {
			t.logger.Warn("failed to echo error into thread", "error", err)
		}
	}
	return domain.RunStateFailed
}

// record appends entry to the history and mirrors it to the sink when the
// UI shows entries of its role. Storage and sink failures are logged.
func (t *turn) record(entry domain.ConversationMessage) {
	if err := t.sess.History().Append(t.persist, entry); err != nil {
		t.logger.Error("failed to append to history", "role", entry.Role, "error", err)
	}
	if !entry.Role.Mirrored() {
		return
	}
	if err := t.sink.Send(entry); err != nil {
		t.logger.Warn("failed to push entry to client", "role", entry.Role, "error", err)
	}
}

// logEvent records a non-delta stream event as a tool entry.
func (t *turn) logEvent(ev llm.StreamEvent) {
	t.logger.Debug("run event", "run_id", t.runID, "event", ev.Event)
	entry := domain.NewMessage(domain.RoleTool, string(ev.Event))
	entry.Event = string(ev.Event)
	t.record(entry)
}

func (t *turn) closeStream() {
	if t.stream == nil {
		return
	}
	if err := t.stream.Close(); err != nil {
		t.logger.Debug("failed to close stream", "error", err)
	}
	t.stream = nil
}

// runErrorMessage extracts the most specific error of a finished run.
func runErrorMessage(run *openai.Run) string {
	if run == nil {
		return "The run ended unexpectedly."
	}
	if run.LastError != nil && run.LastError.Message != "" {
		return run.LastError.Message
	}
	if run.Status != "" {
		return fmt.Sprintf("The run ended with status %s.", run.Status)
	}
	return "The run ended unexpectedly."
}

// streamErrorMessage extracts the message of an error event.
func streamErrorMessage(data json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != nil && payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if len(data) > 0 {
		return string(data)
	}
	return "The stream reported an error."
}
