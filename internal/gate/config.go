package gate

import "time"

// Defaults applied when corresponding Config fields are unset.
const (
	defaultEmitTimeout = 30 * time.Second
)

// Config encapsulates the tunables of a Gate.
type Config struct {
	// EmitTimeout bounds how long Emit waits for a resolution. Non-positive
	// values are replaced by the package default; there is no unbounded wait.
	EmitTimeout time.Duration
	// AcquireTimeout is how long a second concurrent Emit waits for the
	// in-flight slot before failing with ErrBusy. Zero rejects immediately.
	AcquireTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.EmitTimeout <= 0 {
		c.EmitTimeout = defaultEmitTimeout
	}
	if c.AcquireTimeout < 0 {
		c.AcquireTimeout = 0
	}
	return c
}
