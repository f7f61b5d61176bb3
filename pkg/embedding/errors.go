package embedding

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an external service call failed. The caller
// needs the distinction: a missing credential is a configuration problem,
// a 429 should be retried later, and neither must masquerade as "nothing
// relevant found".
type FailureKind int

const (
	FailureUnconfigured FailureKind = iota // no credential supplied
	FailureUnauthorized                    // credential rejected
	FailureRateLimited                     // provider throttled the request
	FailureTransport                       // network/timeout/5xx
)

// String returns a short label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureUnconfigured:
		return "unconfigured"
	case FailureUnauthorized:
		return "unauthorized"
	case FailureRateLimited:
		return "rate limited"
	case FailureTransport:
		return "transport"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// ServiceError wraps a failure to reach or use the embedding/completion
// service.
type ServiceError struct {
	Kind FailureKind
	Op   string // "embed", "complete"
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: service %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: service %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// AsServiceError unwraps err into a *ServiceError when possible.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
