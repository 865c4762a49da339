package domain

// SSE event names used on the browser-facing stream.
const (
	FrameMessage = "message"
	FrameClose   = "close"
)

// MessageFrame is the payload of one "message" frame.
type MessageFrame struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// SocketFrame wraps a frame for transports without native event names.
type SocketFrame struct {
	Event string        `json:"event"`
	Data  *MessageFrame `json:"data,omitempty"`
}
