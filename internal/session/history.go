package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// History is the ordered conversation log of a session. Entries are only
// ever appended; the log is dropped as a whole by Clear.
type History struct {
	store  Store
	logger *slog.Logger
}

// NewHistory creates a history stored in store.
func NewHistory(store Store, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{store: store, logger: logger}
}

// Append adds entries to the end of the log.
func (h *History) Append(ctx context.Context, entries ...domain.ConversationMessage) error {
	if len(entries) == 0 {
		return nil
	}
	err := h.store.Update(ctx, KeyHistory, func(current string, ok bool) (string, error) {
		var log []domain.ConversationMessage
		if ok && current != "" {
			if err := json.Unmarshal([]byte(current), &log); err != nil {
				return "", fmt.Errorf("failed to decode history: %w", err)
			}
		}
		log = append(log, entries...)
		data, err := json.Marshal(log)
		if err != nil {
			return "", fmt.Errorf("failed to encode history: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to history: %w", err)
	}
	return nil
}

// All returns the entries in insertion order. When the log cannot be read a
// single error entry describing the failure is returned instead.
func (h *History) All(ctx context.Context) []domain.ConversationMessage {
	entries, err := h.load(ctx)
	if err != nil {
		h.logger.Error("failed to load conversation history", "error", err)
		return []domain.ConversationMessage{
			domain.NewMessage(domain.RoleError, "Unable to load the conversation: "+err.Error()),
		}
	}
	return entries
}

// Empty reports whether nothing has been appended yet. A log that cannot be
// read is not empty.
func (h *History) Empty(ctx context.Context) bool {
	entries, err := h.load(ctx)
	return err == nil && len(entries) == 0
}

// Clear removes the log together with the cached assistant and thread ids in
// a single store operation.
func (h *History) Clear(ctx context.Context) error {
	if err := h.store.Remove(ctx, KeyHistory, KeyAssistantID, KeyAssistantFingerprint, KeyThreadID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

func (h *History) load(ctx context.Context) ([]domain.ConversationMessage, error) {
	raw, ok, err := h.store.Get(ctx, KeyHistory)
	if err != nil {
		return nil, err
	}
	entries := []domain.ConversationMessage{}
	if !ok || raw == "" {
		return entries, nil
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return entries, nil
}
