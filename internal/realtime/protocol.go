package realtime

import "encoding/json"

// Frame types on the realtime socket.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Event names pushed by the server.
const (
	EventMessageCreated = "message.created"
	EventMessageRead    = "message.read"
)

// Frame is the envelope for every message on the socket.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the error carried by a failed response frame.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubscribeParams select the threads whose events the client wants.
// An empty list means every thread of the user.
type SubscribeParams struct {
	Threads []string `json:"threads,omitempty"`
}

// ReadReceipt is the payload of a message.read event.
type ReadReceipt struct {
	ThreadID string   `json:"threadId,omitempty"`
	IDs      []string `json:"ids"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}
