package types

// EmitRequest is the body of POST /emit.
type EmitRequest struct {
	// Opaque payload forwarded to the subscribed listener.
	// example: {"file":"/tmp/notes.md"}
	Payload string `json:"payload" example:"{\"file\":\"/tmp/notes.md\"}"`
}

// EmitResponse is returned by POST /emit once the cycle finished.
type EmitResponse struct {
	// True only when the listener resolved with success.
	// example: true
	OK bool `json:"ok" example:"true"`
	// Machine-readable reason: ok, rejected, no_listener, timeout, busy,
	// unsubscribed, dispatch, unresolved, canceled.
	// example: ok
	Reason string `json:"reason" example:"ok"`
	// Error text when OK is false.
	Error string `json:"error,omitempty"`
}

// ResolveRequest is the body of POST /resolve.
type ResolveRequest struct {
	// Cycle to resolve; empty resolves the armed cycle.
	// example: 7b0c5c1e-4a8e-4f0e-9a53-0d3c0c7e3a11
	ID string `json:"id,omitempty" example:"7b0c5c1e-4a8e-4f0e-9a53-0d3c0c7e3a11"`
	// Either success or failure.
	// example: success
	Outcome string `json:"outcome" example:"success"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether a listener is attached.
	// example: true
	Listening bool `json:"listening" example:"true"`
	// Whether an emit is currently blocked on the gate.
	// example: false
	Armed bool `json:"armed" example:"false"`
	// Armed cycle id, if any.
	CycleID string `json:"cycle_id,omitempty"`
	// Most recently finished cycle id.
	LastCycleID string `json:"last_cycle_id,omitempty"`
	// Outcome recorded for the last cycle (waiting if it expired).
	// example: success
	LastOutcome string `json:"last_outcome" example:"success"`
	// Counters since start.
	EmitsTotal              uint64 `json:"emits_total"`
	SuccessesTotal          uint64 `json:"successes_total"`
	FailuresTotal           uint64 `json:"failures_total"`
	TimeoutsTotal           uint64 `json:"timeouts_total"`
	NoListenerTotal         uint64 `json:"no_listener_total"`
	BusyTotal               uint64 `json:"busy_total"`
	ProtocolViolationsTotal uint64 `json:"protocol_violations_total"`
	// Configured emit timeout in milliseconds.
	// example: 30000
	EmitTimeoutMS int64 `json:"emit_timeout_ms" example:"30000"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
