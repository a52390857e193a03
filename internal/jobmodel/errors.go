package jobmodel

import "errors"

// Kind is the stable error-kind tag carried by every pipeline error.
type Kind string

const (
	KindInputInvalid        Kind = "input_invalid"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindQuotaExhausted      Kind = "quota_exhausted"
	KindInvalidOutput       Kind = "invalid_output"
	KindTimeout             Kind = "timeout"
	KindCancelled           Kind = "cancelled"
	KindIntegrityViolation  Kind = "integrity_violation"
	KindIO                  Kind = "io"
)

// PipelineError carries a stable kind tag, a human message, and an optional
// cause chain.
type PipelineError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// New builds a PipelineError of the given kind.
func New(kind Kind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// Wrap builds a PipelineError of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to empty when err is not a
// *PipelineError (or does not wrap one).
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a PipelineError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
