package voice

import (
	"errors"
	"fmt"
)

// Code identifies why a session operation was refused.
type Code string

const (
	CodeNoConnection        Code = "NO_CONNECTION"
	CodeMissingPermissions  Code = "MISSING_PERMISSIONS"
	CodeConnectionNotReady  Code = "CONNECTION_NOT_READY"
	CodeNoResource          Code = "NO_RESOURCE"
	CodePlayerAlreadyPaused Code = "PLAYER_ALREADY_PAUSED"
	CodePlayerNotPaused     Code = "PLAYER_NOT_PAUSED"
	CodeNoChannel           Code = "NO_CHANNEL"
)

// Error is the tagged error returned by every failed session operation.
// It is immutable once constructed.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err, or the empty string if err does
// not wrap a session Error.
func CodeOf(err error) Code {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ""
}
