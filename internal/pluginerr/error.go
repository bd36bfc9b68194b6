// Package pluginerr is the error taxonomy shared by every command.
//
// Each failure carries exactly one Kind. The message is built from a fixed
// per-kind text, optionally extended with data, and prefixed with the
// originating command so that "[calbridge.createEvent] Empty or missing key title"
// can be traced without inspecting the kind.
package pluginerr

import (
	"errors"
	"fmt"

	"github.com/tazhate/calbridge/internal/domain"
)

// Namespace prefixes every message.
const Namespace = "calbridge"

type Kind string

const (
	MissingKey            Kind = "missingKey"
	InvalidKey            Kind = "invalidKey"
	NoAccess              Kind = "noAccess"
	CalendarNotFound      Kind = "calendarNotFound"
	NoDefaultCalendar     Kind = "noDefaultCalendar"
	UnableToOpenCalendar  Kind = "unableToOpenCalendar"
	UnableToOpenReminders Kind = "unableToOpenReminders"
	NoViewController      Kind = "noViewController"
	OSError               Kind = "osError"
	Unimplemented         Kind = "unimplemented"
	InternalError         Kind = "internalError"
	UnknownError          Kind = "unknownError"
)

// Kinds lists the closed set of kinds.
var Kinds = []Kind{
	MissingKey, InvalidKey, NoAccess, CalendarNotFound, NoDefaultCalendar,
	UnableToOpenCalendar, UnableToOpenReminders, NoViewController,
	OSError, Unimplemented, InternalError, UnknownError,
}

// Error is an immutable command failure.
type Error struct {
	Kind    Kind
	Message string
	Source  string
	cause   error
}

// New builds an error for kind raised by source. data may be empty.
func New(kind Kind, source, data string) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("[%s.%s] %s", Namespace, source, format(kind, data)),
		Source:  source,
	}
}

// NoAccessFor reports a missing grant for the requirement, e.g. "(calendar/write)".
func NoAccessFor(source string, req domain.AccessRequirement) *Error {
	return New(NoAccess, source, req.String())
}

// FromError passes taxonomy errors through unchanged and wraps anything
// else as an osError carrying the native text.
func FromError(err error, source string) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	e := New(OSError, source, err.Error())
	e.cause = err
	return e
}

// Wrap builds an error of the given kind keeping err as the cause.
func Wrap(kind Kind, err error, source string) *Error {
	e := New(kind, source, err.Error())
	e.cause = err
	return e
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: NoAccess}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Rejection is the payload every rejected command returns.
type Rejection struct {
	Message string        `json:"message"`
	Data    RejectionData `json:"data"`
}

type RejectionData struct {
	Type Kind `json:"type"`
}

func (e *Error) Payload() Rejection {
	return Rejection{Message: e.Message, Data: RejectionData{Type: e.Kind}}
}

// Rejecter is the caller's response channel.
type Rejecter interface {
	Reject(Rejection)
}

// Reject sends the payload to r.
func (e *Error) Reject(r Rejecter) {
	r.Reject(e.Payload())
}

// KindOf returns the kind of a taxonomy error, or UnknownError.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return UnknownError
}

func format(kind Kind, data string) string {
	msg := baseMessage(kind)
	if data == "" {
		return msg
	}
	switch kind {
	case MissingKey, InvalidKey:
		return msg + " " + data
	case NoAccess:
		return msg + " (" + data + ")"
	case InternalError, OSError, UnknownError:
		return msg + ": " + data
	default:
		return msg
	}
}

func baseMessage(kind Kind) string {
	switch kind {
	case MissingKey:
		return "Empty or missing key"
	case InvalidKey:
		return "Invalid value for key"
	case NoAccess:
		return "Access has not been granted"
	case CalendarNotFound:
		return "Calendar with the given id not found"
	case NoDefaultCalendar:
		return "No default calendar is available"
	case UnableToOpenCalendar:
		return "The calendar app could not be opened"
	case UnableToOpenReminders:
		return "The reminders app could not be opened"
	case NoViewController:
		return "View controller could not be created"
	case OSError:
		return "A calendar store error has occurred"
	case Unimplemented:
		return "Not implemented on this platform"
	case InternalError:
		return "An internal error has occurred"
	case UnknownError:
		return "An unknown error occurred"
	}
	return "An unknown error occurred"
}
