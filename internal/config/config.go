// Package config provides configuration management for the zoomarc application
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Byte size units used by ParseSize and defaults.
const (
	KB int64 = 1024
	MB       = 1024 * KB
	GB       = 1024 * MB
	TB       = 1024 * GB
)

// ZoomConfig holds Zoom API authentication and connection settings
type ZoomConfig struct {
	AccountID    string `yaml:"account_id" json:"account_id"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	OAuthURL     string `yaml:"oauth_url" json:"oauth_url"`
	// AuthMethod selects the credential exchange: "oauth" (account
	// credentials grant, default) or "jwt" (legacy self-signed token).
	AuthMethod string `yaml:"auth_method" json:"auth_method"`
}

// RangeConfig holds the inclusive date range for discovery.
// Dates accept "2006-01-02" or "2006-01"; a month-only value expands to the
// first day of the month for From and the last day for To.
type RangeConfig struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// FilterConfig holds user, topic and file-type filtering settings
type FilterConfig struct {
	Users             []string `yaml:"users" json:"users"`
	ExcludeUsers      []string `yaml:"exclude_users" json:"exclude_users"`
	UsersFile         string   `yaml:"users_file" json:"users_file"`
	WatchUsersFile    bool     `yaml:"watch_users_file" json:"watch_users_file"`
	Topics            []string `yaml:"topics" json:"topics"`
	TopicPartialMatch bool     `yaml:"topic_partial_match" json:"topic_partial_match"`
	FileTypes         []string `yaml:"file_types" json:"file_types"`
}

// NamingConfig controls file name and folder derivation
type NamingConfig struct {
	// NamePieces is the ordered selection from: start, topic, type, id.
	NamePieces []string `yaml:"name_pieces" json:"name_pieces"`
	Separator  string   `yaml:"separator" json:"separator"`
	// FolderOrder is the ordered selection from: year_month, user, topic.
	FolderOrder        []string `yaml:"folder_order" json:"folder_order"`
	RecordingSubfolder bool     `yaml:"recording_subfolder" json:"recording_subfolder"`
}

// DownloadConfig holds download-related settings
type DownloadConfig struct {
	OutputDir      string `yaml:"output_dir" json:"output_dir"`
	PageSize       int    `yaml:"page_size" json:"page_size"`
	RetryAttempts  int    `yaml:"retry_attempts" json:"retry_attempts"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	// SizeTolerance is the maximum allowed difference in bytes between the
	// declared and the downloaded file size before a file counts as corrupt.
	SizeTolerance string `yaml:"size_tolerance" json:"size_tolerance"`
}

// TimeoutDuration returns the timeout as a time.Duration
func (d DownloadConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// DiskConfig holds the free-space gate settings
type DiskConfig struct {
	MinimumFree         string `yaml:"minimum_free" json:"minimum_free"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	// MaxWaitSeconds bounds the time spent waiting for disk space.
	// Zero waits indefinitely.
	MaxWaitSeconds int `yaml:"max_wait_seconds" json:"max_wait_seconds"`
}

// PollInterval returns the gate poll interval as a time.Duration
func (d DiskConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// MaxWait returns the gate wait bound as a time.Duration
func (d DiskConfig) MaxWait() time.Duration {
	return time.Duration(d.MaxWaitSeconds) * time.Second
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	Console    bool   `yaml:"console" json:"console"`
	JSONFormat bool   `yaml:"json_format" json:"json_format"`
}

// RunConfig holds orchestration policies
type RunConfig struct {
	// OnUserError decides what a remote error during one user's discovery
	// does to the run: "abort" stops the whole run, "skip" moves on to the
	// next user.
	OnUserError string `yaml:"on_user_error" json:"on_user_error"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
}

// Config represents the complete application configuration
type Config struct {
	Zoom     ZoomConfig     `yaml:"zoom" json:"zoom"`
	Range    RangeConfig    `yaml:"range" json:"range"`
	Filters  FilterConfig   `yaml:"filters" json:"filters"`
	Naming   NamingConfig   `yaml:"naming" json:"naming"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Disk     DiskConfig     `yaml:"disk" json:"disk"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Run      RunConfig      `yaml:"run" json:"run"`
}

// Supported credential exchanges.
const (
	AuthMethodOAuth = "oauth"
	AuthMethodJWT   = "jwt"
)

// Supported per-user error policies.
const (
	OnUserErrorAbort = "abort"
	OnUserErrorSkip  = "skip"
)

var sizeRegex = regexp.MustCompile(`^(\d+)\s*(B|KB|MB|GB|TB)?$`)

// ParseSize parses a human-readable byte size such as "512MB" or "1 GB".
// A bare number is taken as bytes.
func ParseSize(s string) (int64, error) {
	m := sizeRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	switch m[2] {
	case "KB":
		n *= KB
	case "MB":
		n *= MB
	case "GB":
		n *= GB
	case "TB":
		n *= TB
	}
	return n, nil
}

// SizeToleranceBytes returns the parsed size tolerance.
func (c *Config) SizeToleranceBytes() int64 {
	n, _ := ParseSize(c.Download.SizeTolerance)
	return n
}

// MinimumFreeBytes returns the parsed minimum free disk space.
func (c *Config) MinimumFreeBytes() int64 {
	n, _ := ParseSize(c.Disk.MinimumFree)
	return n
}

// DateRange returns the parsed inclusive date range.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	from, err := parseRangeDate(c.Range.From, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range.from: %w", err)
	}
	to, err := parseRangeDate(c.Range.To, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range.to: %w", err)
	}
	return from, to, nil
}

func parseRangeDate(s string, end bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or YYYY-MM)", s)
	}
	if end {
		return t.AddDate(0, 1, -1), nil
	}
	return t, nil
}

// LoadConfig loads configuration from a YAML file with defaults and
// environment variable overrides. A .env file in the working directory is
// loaded first so credentials can be kept out of the YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Load from YAML file
	if err := config.loadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}

	// Apply defaults
	config.setDefaults()

	// Override with environment variables (.env first, best effort)
	_ = godotenv.Load()
	config.loadFromEnvironment()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func (c *Config) loadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// setDefaults applies default values for missing configuration
func (c *Config) setDefaults() {
	if c.Zoom.BaseURL == "" {
		c.Zoom.BaseURL = "https://api.zoom.us/v2"
	}
	if c.Zoom.OAuthURL == "" {
		c.Zoom.OAuthURL = "https://zoom.us/oauth/token"
	}
	if c.Zoom.AuthMethod == "" {
		c.Zoom.AuthMethod = AuthMethodOAuth
	}

	if len(c.Naming.NamePieces) == 0 {
		c.Naming.NamePieces = []string{"topic", "start", "type"}
	}
	if c.Naming.Separator == "" {
		c.Naming.Separator = "__"
	}
	if len(c.Naming.FolderOrder) == 0 {
		c.Naming.FolderOrder = []string{"user", "topic"}
	}

	if c.Download.OutputDir == "" {
		c.Download.OutputDir = "./downloads"
	}
	if c.Download.PageSize == 0 {
		c.Download.PageSize = 300
	}
	if c.Download.RetryAttempts == 0 {
		c.Download.RetryAttempts = 3
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = 300
	}
	if c.Download.SizeTolerance == "" {
		c.Download.SizeTolerance = "0"
	}

	if c.Disk.MinimumFree == "" {
		c.Disk.MinimumFree = "1GB"
	}
	if c.Disk.PollIntervalSeconds == 0 {
		c.Disk.PollIntervalSeconds = 30
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = "./zoomarc.log"
	}
	c.Logging.Console = true

	if c.Run.OnUserError == "" {
		c.Run.OnUserError = OnUserErrorAbort
	}
}

// loadFromEnvironment overrides configuration with environment variables
func (c *Config) loadFromEnvironment() {
	if val := os.Getenv("ZOOM_ACCOUNT_ID"); val != "" {
		c.Zoom.AccountID = val
	}
	if val := os.Getenv("ZOOM_CLIENT_ID"); val != "" {
		c.Zoom.ClientID = val
	}
	if val := os.Getenv("ZOOM_CLIENT_SECRET"); val != "" {
		c.Zoom.ClientSecret = val
	}
	if val := os.Getenv("ZOOM_BASE_URL"); val != "" {
		c.Zoom.BaseURL = val
	}
	if val := os.Getenv("ZOOM_OAUTH_URL"); val != "" {
		c.Zoom.OAuthURL = val
	}
	if val := os.Getenv("ZOOMARC_OUTPUT_DIR"); val != "" {
		c.Download.OutputDir = val
	}
}

// Validate performs validation on the loaded configuration. All problems
// are collected and reported in one aggregated error rather than failing on
// the first missing field.
func (c *Config) Validate() error {
	var problems []string

	if c.Zoom.AccountID == "" && c.Zoom.AuthMethod == AuthMethodOAuth {
		problems = append(problems, "zoom.account_id is required")
	}
	if c.Zoom.ClientID == "" {
		problems = append(problems, "zoom.client_id is required")
	}
	if c.Zoom.ClientSecret == "" {
		problems = append(problems, "zoom.client_secret is required")
	}
	if c.Zoom.AuthMethod != AuthMethodOAuth && c.Zoom.AuthMethod != AuthMethodJWT {
		problems = append(problems, fmt.Sprintf("zoom.auth_method must be %q or %q", AuthMethodOAuth, AuthMethodJWT))
	}

	if c.Range.From == "" {
		problems = append(problems, "range.from is required")
	}
	if c.Range.To == "" {
		problems = append(problems, "range.to is required")
	}
	if c.Range.From != "" && c.Range.To != "" {
		from, to, err := c.DateRange()
		if err != nil {
			problems = append(problems, err.Error())
		} else if to.Before(from) {
			problems = append(problems, "range.to must not be before range.from")
		}
	}

	for _, piece := range c.Naming.NamePieces {
		switch piece {
		case "start", "topic", "type", "id":
		default:
			problems = append(problems, fmt.Sprintf("naming.name_pieces: unknown piece %q", piece))
		}
	}
	for _, part := range c.Naming.FolderOrder {
		switch part {
		case "year_month", "user", "topic":
		default:
			problems = append(problems, fmt.Sprintf("naming.folder_order: unknown part %q", part))
		}
	}

	if c.Download.RetryAttempts < 0 {
		problems = append(problems, "download.retry_attempts must be >= 0")
	}
	if c.Download.TimeoutSeconds <= 0 {
		problems = append(problems, "download.timeout_seconds must be greater than 0")
	}
	if _, err := ParseSize(c.Download.SizeTolerance); err != nil {
		problems = append(problems, "download.size_tolerance: "+err.Error())
	}
	if _, err := ParseSize(c.Disk.MinimumFree); err != nil {
		problems = append(problems, "disk.minimum_free: "+err.Error())
	}
	if c.Disk.PollIntervalSeconds <= 0 {
		problems = append(problems, "disk.poll_interval_seconds must be greater than 0")
	}
	if c.Disk.MaxWaitSeconds < 0 {
		problems = append(problems, "disk.max_wait_seconds must be >= 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, "logging.level must be one of: debug, info, warn, error")
	}

	if c.Run.OnUserError != OnUserErrorAbort && c.Run.OnUserError != OnUserErrorSkip {
		problems = append(problems, fmt.Sprintf("run.on_user_error must be %q or %q", OnUserErrorAbort, OnUserErrorSkip))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s):\n  - %s", len(problems), strings.Join(problems, "\n  - "))
	}
	return nil
}
