package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// Session is the state of one browser session, passed explicitly to the run
// engine for the duration of a turn.
type Session struct {
	id           string
	store        Store
	history      *History
	defaultModel string
	logger       *slog.Logger
}

// New creates a session view over store.
func New(id string, store Store, defaultModel string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)
	return &Session{
		id:           id,
		store:        store,
		history:      NewHistory(store, logger),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// History returns the conversation history of the session.
func (s *Session) History() *History { return s.history }

// Logger returns a logger tagged with the session id.
func (s *Session) Logger() *slog.Logger { return s.logger }

// SelectedModel returns the model chosen by the user, or the default model
// when none was chosen or the store is unavailable.
func (s *Session) SelectedModel(ctx context.Context) string {
	model, ok, err := s.store.Get(ctx, KeySelectedModel)
	if err != nil {
		s.logger.Warn("failed to read selected model", "error", err)
		return s.defaultModel
	}
	if !ok || model == "" {
		return s.defaultModel
	}
	return model
}

// SetSelectedModel stores the model used for assistants created from now on.
// An existing assistant binding is not changed.
func (s *Session) SetSelectedModel(ctx context.Context, model string) error {
	if err := s.store.Set(ctx, KeySelectedModel, model); err != nil {
		return fmt.Errorf("failed to store selected model: %w", err)
	}
	return nil
}

// Assistant returns the cached assistant binding. The ID is empty when no
// assistant has been created yet.
func (s *Session) Assistant(ctx context.Context) (domain.AssistantBinding, error) {
	id, _, err := s.store.Get(ctx, KeyAssistantID)
	if err != nil {
		return domain.AssistantBinding{}, fmt.Errorf("failed to read assistant id: %w", err)
	}
	fingerprint, _, err := s.store.Get(ctx, KeyAssistantFingerprint)
	if err != nil {
		return domain.AssistantBinding{}, fmt.Errorf("failed to read assistant fingerprint: %w", err)
	}
	return domain.AssistantBinding{ID: id, Fingerprint: fingerprint}, nil
}

// SetAssistant caches the assistant binding.
func (s *Session) SetAssistant(ctx context.Context, binding domain.AssistantBinding) error {
	if err := s.store.Set(ctx, KeyAssistantID, binding.ID); err != nil {
		return fmt.Errorf("failed to store assistant id: %w", err)
	}
	if err := s.store.Set(ctx, KeyAssistantFingerprint, binding.Fingerprint); err != nil {
		return fmt.Errorf("failed to store assistant fingerprint: %w", err)
	}
	return nil
}

// ThreadID returns the cached remote thread id, empty if none.
func (s *Session) ThreadID(ctx context.Context) (string, error) {
	id, _, err := s.store.Get(ctx, KeyThreadID)
	if err != nil {
		return "", fmt.Errorf("failed to read thread id: %w", err)
	}
	return id, nil
}

// SetThreadID caches the remote thread id.
func (s *Session) SetThreadID(ctx context.Context, id string) error {
	if err := s.store.Set(ctx, KeyThreadID, id); err != nil {
		return fmt.Errorf("failed to store thread id: %w", err)
	}
	return nil
}

// Snapshot returns the current remote binding. Read errors leave the
// affected field empty.
func (s *Session) Snapshot(ctx context.Context) domain.RunSession {
	rs := domain.RunSession{SelectedModel: s.SelectedModel(ctx)}
	if binding, err := s.Assistant(ctx); err == nil {
		rs.AssistantID = binding.ID
	}
	if id, err := s.ThreadID(ctx); err == nil {
		rs.ThreadID = id
	}
	return rs
}
