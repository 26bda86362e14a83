package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: courtline
  environment: test
  port: 8081
database:
  driver: sqlite
  filename: data/test.db
scheduling:
  default_duration_minutes: 20
  default_rest_minutes: 10
  status_refresh_cron: "*/5 * * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 8081 {
		t.Errorf("port = %d, want 8081", cfg.App.Port)
	}
	if cfg.Scheduling.DefaultDurationMinutes != 20 {
		t.Errorf("default duration = %d, want 20", cfg.Scheduling.DefaultDurationMinutes)
	}
	if cfg.Scheduling.StatusRefreshCron != "*/5 * * * *" {
		t.Errorf("refresh cron = %q, want */5 * * * *", cfg.Scheduling.StatusRefreshCron)
	}
}

func TestLoadAppliesSchedulingDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: courtline
  port: 8080
database:
  driver: sqlite
  filename: data/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scheduling.DefaultDurationMinutes != 30 {
		t.Errorf("default duration = %d, want 30", cfg.Scheduling.DefaultDurationMinutes)
	}
	if cfg.Scheduling.DefaultRestMinutes != 5 {
		t.Errorf("default rest = %d, want 5", cfg.Scheduling.DefaultRestMinutes)
	}
	if cfg.Scheduling.StatusRefreshCron != "*/1 * * * *" {
		t.Errorf("refresh cron = %q, want */1 * * * *", cfg.Scheduling.StatusRefreshCron)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "unsupported driver",
			content: `
app:
  name: courtline
  port: 8080
database:
  driver: postgres
  filename: data/test.db
`,
			wantErr: "unsupported database driver",
		},
		{
			name: "missing port",
			content: `
app:
  name: courtline
database:
  driver: sqlite
  filename: data/test.db
`,
			wantErr: "port is required",
		},
		{
			name: "negative rest",
			content: `
app:
  name: courtline
  port: 8080
database:
  driver: sqlite
  filename: data/test.db
scheduling:
  default_rest_minutes: -5
`,
			wantErr: "rest period must be positive",
		},
		{
			name: "bad cron expression",
			content: `
app:
  name: courtline
  port: 8080
database:
  driver: sqlite
  filename: data/test.db
scheduling:
  status_refresh_cron: "not a cron line"
`,
			wantErr: "invalid status refresh cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
