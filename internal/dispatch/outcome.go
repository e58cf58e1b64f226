package dispatch

import "time"

// Class buckets an outcome by how the request concluded.
type Class string

const (
	ClassSuccess        Class = "success"
	ClassClientError    Class = "client-error"
	ClassServerError    Class = "server-error"
	ClassTransportError Class = "transport-error"
)

// Outcome records the result of one dispatched descriptor. Exactly one
// Outcome is produced per descriptor the dispatcher consumed.
type Outcome struct {
	Endpoint   string
	Class      Class
	StatusCode int // 0 when the request never produced a response
	Duration   time.Duration
	Start      time.Time

	// Lag is how far behind its scheduled offset the request actually
	// fired. Scheduling lag under load is expected and reported.
	Lag time.Duration

	// Err holds the transport-level failure, if any.
	Err error
}

// Success reports whether the target answered with a non-error status.
func (o Outcome) Success() bool {
	return o.Class == ClassSuccess
}

func classifyStatus(code int) Class {
	switch {
	case code >= 500:
		return ClassServerError
	case code >= 400:
		return ClassClientError
	default:
		return ClassSuccess
	}
}
