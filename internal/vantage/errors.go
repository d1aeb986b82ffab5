package vantage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a resource that already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotLoggedIn is returned when no usable token is cached for a profile
	ErrNotLoggedIn = errors.New("not logged in")
)

// Abort is a user-facing failure. The command boundary renders it and exits
// with status 1, or 0 when WarnOnly is set.
type Abort struct {
	// Subject is the panel title, e.g. "DEPLOYMENT FAILED"
	Subject string

	// Message is shown to the user
	Message string

	// LogMessage is written to the log instead of the console
	LogMessage string

	// WarnOnly renders the message as a warning and exits cleanly
	WarnOnly bool

	// Err is the underlying cause, if any
	Err error
}

func (a *Abort) Error() string {
	if a.Err != nil {
		return fmt.Sprintf("%s: %v", a.Message, a.Err)
	}
	return a.Message
}

func (a *Abort) Unwrap() error {
	return a.Err
}

// Abortf builds an Abort with a formatted message
func Abortf(subject, format string, args ...interface{}) *Abort {
	return &Abort{
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	}
}

// AuthAbort wraps an authentication failure with the login hint
func AuthAbort(err error) *Abort {
	return &Abort{
		Subject:    "AUTHENTICATION ERROR",
		Message:    "Please login with `vantage login` and try again.",
		LogMessage: fmt.Sprintf("authentication failed: %v", err),
		Err:        err,
	}
}
