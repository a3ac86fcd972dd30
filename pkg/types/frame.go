package types

// Frame types exchanged with the listener over WebSocket.
const (
	FrameIngest  = "ingest"
	FrameResolve = "resolve"
	FrameError   = "error"
)

// Frame is one WebSocket message between the hub and the listener.
//
// Hub to listener: {"type":"ingest","id":"...","payload":"..."}.
// Listener to hub: {"type":"resolve","id":"...","outcome":"success"}.
// Hub to listener on a rejected frame: {"type":"error","id":"...","error":"..."}.
type Frame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload string `json:"payload,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}
