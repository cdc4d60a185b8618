package circuitbreaker

import "time"

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the circuit breaker in logs and metrics,
	// usually the provider name.
	Name string

	// Enabled determines whether the circuit breaker is active.
	// When false, New returns nil and Execute passes through directly.
	Enabled bool

	// MaxRequests is the maximum number of trial requests allowed to pass
	// through while the circuit breaker is half-open. If MaxRequests is 0,
	// the circuit breaker allows only 1 request.
	MaxRequests uint

	// Interval is the cyclic period of the closed state for the circuit
	// breaker to clear the internal counts. If Interval is 0, the circuit
	// breaker doesn't clear internal counts during the closed state.
	Interval time.Duration

	// OpenDuration is the period of the open state, after which the state
	// of the circuit breaker becomes half-open. If OpenDuration is 0, it
	// defaults to 60 seconds.
	OpenDuration time.Duration

	// FailureThreshold is the number of consecutive failures required to
	// trip the circuit breaker from closed to open state.
	FailureThreshold uint

	// IsSuccessful, when set, decides whether a returned error counts as a
	// failure. Errors it reports as successful are returned to the caller
	// untouched but do not move the failure counter. Used to keep
	// per-request input rejections from tripping the breaker.
	IsSuccessful func(err error) bool

	// OnStateChange, when set, is invoked on every state transition.
	OnStateChange func(name, from, to string)
}
