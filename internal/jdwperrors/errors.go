// Package jdwperrors defines the typed error taxonomy shared across the
// JDWP engine. Each kind is a distinct type so callers can discriminate with
// errors.As instead of string matching.
package jdwperrors

import (
	"errors"
	"fmt"
)

// TransportError wraps a socket-level failure: connect refused, handshake
// mismatch, EOF mid-packet. Always fatal to the session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("jdwp transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps a framing/decoding violation: unknown reply id,
// malformed length, unexpected event shape. Always fatal to the session.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "jdwp protocol: " + e.Msg }

// JdwpError carries a non-zero JDWP reply error code back to the caller
// unchanged, paired with its symbolic name from the protocol spec.
type JdwpError struct {
	Code uint16
	Name string
}

func (e *JdwpError) Error() string { return fmt.Sprintf("jdwp error %d (%s)", e.Code, e.Name) }

// NewJdwpError looks up the symbolic name for code and returns a JdwpError.
func NewJdwpError(code uint16) *JdwpError {
	return &JdwpError{Code: code, Name: errorName(code)}
}

// ResolutionError reports that a symbolic breakpoint could not be translated
// to a concrete JDWP Location: class not loaded (recoverable, becomes
// pending), method not found, or line not mapped (both terminal).
type ResolutionError struct {
	Msg string
}

func (e *ResolutionError) Error() string { return "jdwp resolution: " + e.Msg }

// Unsupported is returned for tool requests that are explicitly out of
// scope, e.g. evaluate expressions beyond a trivial field path.
type Unsupported struct {
	Msg string
}

func (e *Unsupported) Error() string { return "unsupported: " + e.Msg }

// Timeout reports that a caller's deadline elapsed before a reply arrived.
// The in-flight JDWP command is not cancelled; see jdwpmux for the
// reconciliation contract.
type Timeout struct {
	Op string
}

func (e *Timeout) Error() string { return "jdwp timeout: " + e.Op }

// NotFound reports that a tool argument referenced an id the session never
// minted, or no longer recognizes (e.g. a cleared breakpoint).
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

// Disconnected reports that the session transitioned to Broken (or was
// explicitly disconnected) while a command was outstanding.
type Disconnected struct {
	Reason string
}

func (e *Disconnected) Error() string { return "jdwp session disconnected: " + e.Reason }

// AlreadyAttached reports a second debug.attach while a session is live.
// Only one session may exist at a time (spec §4.5).
type AlreadyAttached struct{}

func (e *AlreadyAttached) Error() string { return "a debug session is already attached" }

// InvariantViolation must never occur in a correct build; it is raised (not
// panicked) so the tool surface can log it and fail the one call cleanly
// instead of taking the whole process down.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// JDWP error codes used by this engine (JDWP spec, ErrorConstants). Only the
// subset the command layer and its callers need to name are enumerated;
// unknown codes still round-trip, just with name "UNKNOWN".
const (
	codeNone              = 0
	codeInvalidThread     = 10
	codeInvalidThreadGrp  = 11
	codeInvalidObject     = 20
	codeInvalidClass      = 21
	codeClassNotPrepared  = 22
	codeInvalidMethodID   = 23
	codeInvalidSlot       = 35
	codeNotImplemented    = 99
	codeInvalidEventType   = 102
	codeVMDead             = 112
	codeAbsentInformation  = 101
	codeNoMoreFrames       = 31
	codeTypeMismatch       = 34
	codeInvalidIndex       = 503
	codeInvalidLength      = 504
	codeInvalidString      = 506
)

var errorNames = map[uint16]string{
	codeNone:             "NONE",
	codeInvalidThread:    "INVALID_THREAD",
	codeInvalidThreadGrp: "INVALID_THREAD_GROUP",
	codeInvalidObject:    "INVALID_OBJECT",
	codeInvalidClass:     "INVALID_CLASS",
	codeClassNotPrepared: "CLASS_NOT_PREPARED",
	codeInvalidMethodID:  "INVALID_METHODID",
	codeInvalidSlot:      "INVALID_SLOT",
	codeNotImplemented:   "NOT_IMPLEMENTED",
	codeInvalidEventType: "INVALID_EVENT_TYPE",
	codeVMDead:           "VM_DEAD",
	codeAbsentInformation: "ABSENT_INFORMATION",
	codeNoMoreFrames:      "NO_MORE_FRAMES",
	codeTypeMismatch:      "TYPE_MISMATCH",
	codeInvalidIndex:      "INVALID_INDEX",
	codeInvalidLength:     "INVALID_LENGTH",
	codeInvalidString:     "INVALID_STRING",
}

func errorName(code uint16) string {
	if name, ok := errorNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsVMDead reports whether err is (or wraps) the VM_DEAD JDWP error, which
// tears the session down like a TransportError would.
func IsVMDead(err error) bool {
	var je *JdwpError
	if errors.As(err, &je) {
		return je.Code == codeVMDead
	}
	return false
}
