package pkg

import "fmt"

// Reason codes attached to user-visible failures.
const (
	ReasonConsentInvalid     = "CONSENT_INVALID"
	ReasonEscrowState        = "ESCROW_STATE"
	ReasonConditionMismatch  = "CONDITION_MISMATCH"
	ReasonExpired            = "EXPIRED"
	ReasonIntegrityViolation = "INTEGRITY_VIOLATION"
	ReasonOfferUnavailable   = "OFFER_UNAVAILABLE"
	ReasonNotFound           = "NOT_FOUND"
)

// Error carries a structured reason code next to the human-readable detail.
type Error struct {
	Code   string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf builds a reason-coded error.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a reason code to an underlying error.
func Wrap(code string, detail string, cause error) *Error {
	return &Error{Code: code, Detail: detail, Cause: cause}
}
