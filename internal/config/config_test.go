package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
zoom:
  account_id: "acct-1"
  client_id: "client-id"
  client_secret: "client-secret"
range:
  from: "2024-01-01"
  to: "2024-01-31"
`

func TestLoadConfigMinimal(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Zoom.AccountID != "acct-1" {
		t.Errorf("account id = %s", cfg.Zoom.AccountID)
	}
	// defaults
	if cfg.Zoom.BaseURL != "https://api.zoom.us/v2" {
		t.Errorf("base url = %s", cfg.Zoom.BaseURL)
	}
	if cfg.Zoom.AuthMethod != AuthMethodOAuth {
		t.Errorf("auth method = %s", cfg.Zoom.AuthMethod)
	}
	if cfg.Download.PageSize != 300 {
		t.Errorf("page size = %d", cfg.Download.PageSize)
	}
	if cfg.Download.OutputDir != "./downloads" {
		t.Errorf("output dir = %s", cfg.Download.OutputDir)
	}
	if cfg.Disk.MinimumFree != "1GB" || cfg.Disk.PollIntervalSeconds != 30 {
		t.Errorf("disk defaults = %+v", cfg.Disk)
	}
	if cfg.Run.OnUserError != OnUserErrorAbort {
		t.Errorf("on_user_error = %s", cfg.Run.OnUserError)
	}
	if got := cfg.Naming.Separator; got != "__" {
		t.Errorf("separator = %q", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	path := writeConfig(t, `
zoom:
  auth_method: "oauth"
download:
  size_tolerance: "weird"
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{
		"zoom.account_id is required",
		"zoom.client_id is required",
		"zoom.client_secret is required",
		"range.from is required",
		"range.to is required",
		"download.size_tolerance",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("aggregated error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateRangeOrder(t *testing.T) {
	path := writeConfig(t, `
zoom:
  account_id: "a"
  client_id: "b"
  client_secret: "c"
range:
  from: "2024-02-01"
  to: "2024-01-01"
`)

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "range.to must not be before range.from") {
		t.Fatalf("expected range order problem, got %v", err)
	}
}

func TestValidateUnknownNamingPieces(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
naming:
  name_pieces: [topic, weekday]
  folder_order: [user, season]
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), `unknown piece "weekday"`) {
		t.Errorf("missing name piece problem: %v", err)
	}
	if !strings.Contains(err.Error(), `unknown part "season"`) {
		t.Errorf("missing folder part problem: %v", err)
	}
}

func TestJWTMethodNeedsNoAccountID(t *testing.T) {
	path := writeConfig(t, `
zoom:
  client_id: "api-key"
  client_secret: "api-secret"
  auth_method: "jwt"
range:
  from: "2024-01-01"
  to: "2024-01-31"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Zoom.AuthMethod != AuthMethodJWT {
		t.Errorf("auth method = %s", cfg.Zoom.AuthMethod)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ZOOM_ACCOUNT_ID", "env-acct")
	t.Setenv("ZOOM_CLIENT_SECRET", "env-secret")
	t.Setenv("ZOOMARC_OUTPUT_DIR", "/mnt/archive")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Zoom.AccountID != "env-acct" {
		t.Errorf("account id = %s, expected env override", cfg.Zoom.AccountID)
	}
	if cfg.Zoom.ClientSecret != "env-secret" {
		t.Errorf("client secret = %s", cfg.Zoom.ClientSecret)
	}
	if cfg.Download.OutputDir != "/mnt/archive" {
		t.Errorf("output dir = %s", cfg.Download.OutputDir)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"512KB", 512 * KB, false},
		{"512 kb", 512 * KB, false},
		{"2MB", 2 * MB, false},
		{"1GB", GB, false},
		{"3TB", 3 * TB, false},
		{"", 0, true},
		{"GB", 0, true},
		{"-1MB", 0, true},
		{"1.5GB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseSize(%q) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestDateRangeMonthExpansion(t *testing.T) {
	cfg := &Config{Range: RangeConfig{From: "2024-02", To: "2024-02"}}

	from, to, err := cfg.DateRange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !from.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v, expected first of month", from)
	}
	if !to.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v, expected last of month (leap year)", to)
	}
}

func TestDateRangeExplicitDays(t *testing.T) {
	cfg := &Config{Range: RangeConfig{From: "2024-01-05", To: "2024-01-10"}}

	from, to, err := cfg.DateRange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from.Day() != 5 || to.Day() != 10 {
		t.Errorf("range = %v .. %v", from, to)
	}
}

func TestDateRangeInvalid(t *testing.T) {
	cfg := &Config{Range: RangeConfig{From: "January 2024", To: "2024-02"}}
	if _, _, err := cfg.DateRange(); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestSizeHelpers(t *testing.T) {
	cfg := &Config{
		Download: DownloadConfig{SizeTolerance: "1KB"},
		Disk:     DiskConfig{MinimumFree: "2GB"},
	}
	if cfg.SizeToleranceBytes() != KB {
		t.Errorf("tolerance = %d", cfg.SizeToleranceBytes())
	}
	if cfg.MinimumFreeBytes() != 2*GB {
		t.Errorf("minimum free = %d", cfg.MinimumFreeBytes())
	}
}
