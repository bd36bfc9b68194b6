package dispatch

import (
	"fmt"

	"github.com/tazhate/calbridge/internal/domain"
)

// Platform describes what a store backend can do.
type Platform struct {
	Name        string
	Aliases     []domain.PermissionAlias
	unsupported map[string]bool
}

// Supports reports whether the command runs on this platform.
func (p Platform) Supports(command string) bool {
	return !p.unsupported[command]
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var (
	// SQLite is the local store. Every command is available.
	SQLite = Platform{
		Name:    "sqlite",
		Aliases: domain.AllAliases,
	}

	// CalDAV servers cannot create collections over plain CalDAV.
	CalDAV = Platform{
		Name:        "caldav",
		Aliases:     domain.AllAliases,
		unsupported: set(CmdCreateCalendar, CmdCreateRemindersList),
	}

	// Google exposes no reminders store.
	Google = Platform{
		Name:    "google",
		Aliases: []domain.PermissionAlias{domain.ReadCalendar, domain.WriteCalendar},
		unsupported: set(
			CmdRequestFullRemindersAccess,
			CmdCreateReminder,
			CmdGetDefaultRemindersList,
			CmdGetRemindersLists,
			CmdCreateRemindersList,
			CmdDeleteRemindersList,
			CmdOpenReminders,
		),
	}
)

// PlatformFor returns the profile of a configured backend.
func PlatformFor(backend string) (Platform, error) {
	switch backend {
	case SQLite.Name:
		return SQLite, nil
	case CalDAV.Name:
		return CalDAV, nil
	case Google.Name:
		return Google, nil
	}
	return Platform{}, fmt.Errorf("unknown backend %q", backend)
}
