// Package session holds the per-browser-session state of the assistant:
// the remote bindings, the selected model and the conversation history.
package session

import "context"

// Keys stored for each session.
const (
	KeySelectedModel        = "selected_model"
	KeyAssistantID          = "assistant_id"
	KeyAssistantFingerprint = "assistant_fingerprint"
	KeyThreadID             = "thread_id"
	KeyHistory              = "chat_history"
)

// Store is the key/value view of one session.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes all keys in one operation.
	Remove(ctx context.Context, keys ...string) error
	// Update is a read-modify-write of one key that is not interleaved with
	// other updates of the same session.
	Update(ctx context.Context, key string, fn func(current string, ok bool) (string, error)) error
}
