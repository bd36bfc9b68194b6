package domain

import "fmt"

// PermissionAlias is a logical capability name exposed to callers.
type PermissionAlias string

const (
	ReadCalendar   PermissionAlias = "readCalendar"
	WriteCalendar  PermissionAlias = "writeCalendar"
	ReadReminders  PermissionAlias = "readReminders"
	WriteReminders PermissionAlias = "writeReminders"
)

// AllAliases lists every alias in a stable order.
var AllAliases = []PermissionAlias{ReadCalendar, WriteCalendar, ReadReminders, WriteReminders}

// ParseAlias returns the alias named by s.
func ParseAlias(s string) (PermissionAlias, bool) {
	for _, a := range AllAliases {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// PermissionState is the authorization status of an alias.
type PermissionState string

const (
	StateGranted             PermissionState = "granted"
	StateDenied              PermissionState = "denied"
	StatePrompt              PermissionState = "prompt"
	StatePromptWithRationale PermissionState = "prompt-with-rationale"
)

// Promptable reports whether a request for this state would show a prompt.
func (s PermissionState) Promptable() bool {
	return s == StatePrompt || s == StatePromptWithRationale
}

// ParseState parses a stored permission state.
func ParseState(s string) (PermissionState, error) {
	switch PermissionState(s) {
	case StateGranted, StateDenied, StatePrompt, StatePromptWithRationale:
		return PermissionState(s), nil
	}
	return "", fmt.Errorf("unknown permission state %q", s)
}

// CombineStates folds the states of aliases requested together.
// All granted yields granted, then denied wins, then prompt-with-rationale.
func CombineStates(states ...PermissionState) PermissionState {
	if len(states) == 0 {
		return StateDenied
	}
	allGranted := true
	rationale := false
	for _, s := range states {
		switch s {
		case StateGranted:
		case StateDenied:
			return StateDenied
		case StatePromptWithRationale:
			allGranted = false
			rationale = true
		default:
			allGranted = false
		}
	}
	if allGranted {
		return StateGranted
	}
	if rationale {
		return StatePromptWithRationale
	}
	return StatePrompt
}

type EntityType string

const (
	EntityCalendar  EntityType = "calendar"
	EntityReminders EntityType = "reminders"
)

type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
)

// AccessRequirement pairs an entity with the kind of access a command needs.
type AccessRequirement struct {
	Entity EntityType
	Access AccessType
}

// Alias maps the requirement to its permission alias, e.g. calendar/write -> writeCalendar.
func (r AccessRequirement) Alias() PermissionAlias {
	switch {
	case r.Entity == EntityCalendar && r.Access == AccessRead:
		return ReadCalendar
	case r.Entity == EntityCalendar && r.Access == AccessWrite:
		return WriteCalendar
	case r.Entity == EntityReminders && r.Access == AccessRead:
		return ReadReminders
	default:
		return WriteReminders
	}
}

// String renders the requirement as "<entity>/<access>".
func (r AccessRequirement) String() string {
	return string(r.Entity) + "/" + string(r.Access)
}
