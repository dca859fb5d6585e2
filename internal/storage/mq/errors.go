package mq

import "errors"

// PermanentError marks a handler failure that must not be redelivered:
// the record's offset is committed and the message is discarded after
// logging. Anything else returned by a handler is treated as retryable
// and the offset stays uncommitted so the message is delivered again.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError. Returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether any error in the chain is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
