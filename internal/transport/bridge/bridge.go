// Package bridge pushes the entries of a running turn to the browser as
// they are produced.
package bridge

import (
	"errors"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
)

// ErrClosed is returned when sending on a closed sink.
var ErrClosed = errors.New("bridge: connection closed")

// Sink is a live connection to one browser.
type Sink interface {
	// Start sends the response headers.
	Start() error
	// Send delivers one entry immediately.
	Send(msg domain.ConversationMessage) error
	// Close sends the terminal close frame.
	Close() error
}
