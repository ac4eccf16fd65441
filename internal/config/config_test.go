package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Profile != DefaultProfileName {
		t.Errorf("Profile = %s, want %s", cfg.Profile, DefaultProfileName)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %s, want text", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
working_dir: "` + dir + `"
profile: "Backup-1"
log:
  level: "debug"
  format: "json"
metrics:
  listen: "127.0.0.1:9090"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WorkingDir != dir {
		t.Errorf("WorkingDir = %s", cfg.WorkingDir)
	}
	if cfg.Profile != "backup-1" {
		t.Errorf("Profile = %s, want backup-1 (sanitised)", cfg.Profile)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9090" {
		t.Errorf("Metrics.Listen = %s", cfg.Metrics.Listen)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() succeeded for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"warning level accepted", func(c *Config) { c.Log.Level = "warning" }, false},
		{"missing working dir", func(c *Config) { c.WorkingDir = "/does/not/exist" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeProfileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data", "data"},
		{"Data", "data"},
		{"Backup 1!", "backup1"},
		{"a/b:c", "abc"},
		{`C\path_x-1`, `c\path_x-1`},
		{"###", ""},
	}
	for _, tt := range tests {
		if got := SanitizeProfileName(tt.in); got != tt.want {
			t.Errorf("SanitizeProfileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyDefaults_EmptyProfile(t *testing.T) {
	cfg := &Config{Profile: "!!!"}
	cfg.ApplyDefaults()
	if cfg.Profile != DefaultProfileName {
		t.Errorf("Profile = %q, want %q after sanitising to empty", cfg.Profile, DefaultProfileName)
	}
}

func TestResolveWorkingDir_Explicit(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.WorkingDir = dir
	got, err := cfg.ResolveWorkingDir()
	if err != nil {
		t.Fatalf("ResolveWorkingDir() error = %v", err)
	}
	if got != dir {
		t.Errorf("ResolveWorkingDir() = %s, want %s", got, dir)
	}
}

func TestResolveWorkingDir_OldDirectoryProbe(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", "")

	cfg := Default()

	// Without the legacy directory the XDG data dir wins.
	got, err := cfg.ResolveWorkingDir()
	if err != nil {
		t.Fatalf("ResolveWorkingDir() error = %v", err)
	}
	want := filepath.Join(home, ".local", "share", "TelegramDesktop")
	if got != want {
		t.Errorf("ResolveWorkingDir() = %s, want %s", got, want)
	}

	// A legacy directory holding a settings file takes precedence.
	old := filepath.Join(home, ".TelegramDesktop", "tdata")
	if err := os.MkdirAll(old, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "settingss"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}
	got, err = cfg.ResolveWorkingDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, ".TelegramDesktop") {
		t.Errorf("ResolveWorkingDir() = %s, want the legacy directory", got)
	}
}

func TestTDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.WorkingDir = dir

	if _, err := cfg.TDataDir(); err == nil {
		t.Error("TDataDir() succeeded without a tdata directory")
	}

	if err := os.Mkdir(filepath.Join(dir, "tdata"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := cfg.TDataDir()
	if err != nil {
		t.Fatalf("TDataDir() error = %v", err)
	}
	if got != filepath.Join(dir, "tdata") {
		t.Errorf("TDataDir() = %s", got)
	}
}
