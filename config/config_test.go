package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tazhate/calbridge/internal/permission"
)

func TestBuildDefaults(t *testing.T) {
	cfg, err := build(source{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSQLite || cfg.DatabasePath != "./data/calbridge.db" || cfg.ServerPort != "8080" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Timezone.String() != "UTC" || cfg.PermissionPolicy != permission.PolicyPrompt {
		t.Errorf("tz %s policy %s", cfg.Timezone, cfg.PermissionPolicy)
	}
	if cfg.TelegramEnabled() || cfg.APIAuthEnabled() {
		t.Error("optional features enabled by default")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	cfg, err := build(source{"SERVER_PORT": "7070", "TIMEZONE": "Europe/Berlin"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("port = %s", cfg.ServerPort)
	}
	if cfg.Timezone.String() != "Europe/Berlin" {
		t.Errorf("tz = %s", cfg.Timezone)
	}
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name string
		src  source
		want string
	}{
		{"backend", source{"BACKEND": "exchange"}, "invalid BACKEND"},
		{"caldav credentials", source{"BACKEND": "caldav", "CALDAV_USERNAME": "me"}, "CALDAV_PASSWORD"},
		{"owner", source{"OWNER_TELEGRAM_ID": "me"}, "OWNER_TELEGRAM_ID"},
		{"timezone", source{"TIMEZONE": "Mars/Olympus"}, "invalid TIMEZONE"},
		{"policy", source{"PERMISSION_POLICY": "maybe"}, "invalid PERMISSION_POLICY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := build(tc.src)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calbridge.yaml")
	body := "backend: caldav\ncaldav_username: me@example.com\ncaldav_password: secret\nowner_telegram_id: 42\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := loadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := build(src)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendCalDAV || cfg.CalDAVUsername != "me@example.com" || cfg.OwnerTelegramID != 42 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.IsAllowedUser(42) || cfg.IsAllowedUser(7) {
		t.Error("IsAllowedUser")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("backend: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFile(path); err == nil {
		t.Error("expected parse error")
	}
}
