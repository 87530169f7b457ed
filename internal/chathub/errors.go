package chathub

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyActive   = errors.New("participant is already waiting or in a chat")
	ErrNotFound        = errors.New("no session, queue entry or ban for participant")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBanned          = errors.New("participant is banned")
	ErrInternal        = errors.New("internal state inconsistency")
)

// BannedError rejects a chat request from a banned participant. It matches
// ErrBanned with errors.Is.
type BannedError struct {
	Until  time.Time
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("participant is banned until %s", e.Until.Format(time.RFC3339))
	}
	return fmt.Sprintf("participant is banned until %s: %s", e.Until.Format(time.RFC3339), e.Reason)
}

func (e *BannedError) Is(target error) bool {
	return target == ErrBanned
}

// ErrorKind returns a stable label for err, used by the error log and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBanned):
		return "banned"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInternal):
		return "internal"
	default:
		return "unexpected"
	}
}
