package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/notify"
	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/timesheet"
	"github.com/consultwithcase/portalsync/internal/unanet"
)

type Config struct {
	Stage     string          `toml:"stage"`
	TSheets   TSheetsConfig   `toml:"tsheets"`
	ADP       ADPConfig       `toml:"adp"`
	Unanet    UnanetConfig    `toml:"unanet"`
	Timesheet TimesheetConfig `toml:"timesheet"`
	Reminder  ReminderConfig  `toml:"reminder"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
}

type TSheetsConfig struct {
	BaseURL           string `toml:"base_url"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`
	CacheTTLMinutes   int    `toml:"cache_ttl_minutes"`
}

type ADPConfig struct {
	BaseURL  string `toml:"base_url"`
	TokenURL string `toml:"token_url"`
	// Account selects the /ADP/<account>/... secrets.
	Account        string `toml:"account"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	TokenCachePath string `toml:"token_cache_path"`
}

type UnanetConfig struct {
	BaseURL              string            `toml:"base_url"`
	Username             string            `toml:"username"`
	Password             string            `toml:"password"`
	LoginSecret          string            `toml:"login_secret"`
	BillableProjectTypes []string          `toml:"billable_project_types"`
	PlanableKeys         map[string]string `toml:"planable_keys"`
}

type TimesheetConfig struct {
	NonBillableRootIDs []string `toml:"non_billable_root_ids"`
	// Timezone is an IANA zone name, or "Local".
	Timezone string `toml:"timezone"`
}

type ReminderConfig struct {
	Jobs                []reminder.Job `toml:"jobs"`
	CykAnchorStart      string         `toml:"cyk_anchor_start"`
	CykPeriodDays       int            `toml:"cyk_period_days"`
	TestEmployeeNumbers []int          `toml:"test_employee_numbers"`
	Message             string         `toml:"message"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Channel string `toml:"channel"` // "desktop" or "log"
}

func DefaultConfig() Config {
	cal := reminder.DefaultCalendar()
	return Config{
		Stage: "dev",
		TSheets: TSheetsConfig{
			AccessTokenSecret: "/TSheets/accessToken",
			CacheTTLMinutes:   60,
		},
		ADP: ADPConfig{
			Account: "CYK",
		},
		Unanet: UnanetConfig{
			LoginSecret:          unanet.LoginSecret,
			BillableProjectTypes: unanet.DefaultBillableProjectTypes,
			PlanableKeys:         unanet.DefaultPlanableKeys,
		},
		Timesheet: TimesheetConfig{
			Timezone: "Local",
		},
		Reminder: ReminderConfig{
			Jobs:           reminder.DefaultJobs(),
			CykAnchorStart: timesheet.FormatDate(cal.CykAnchor),
			CykPeriodDays:  cal.CykPeriodDays,
			Message:        notify.DefaultMessage,
		},
		Notify: NotifyConfig{
			Channel: "desktop",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "portalsync"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config path. A .env file in the working directory
// or the config directory is loaded into the environment first.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	loadDotEnv(".env", filepath.Join(filepath.Dir(path), ".env"))
	return LoadFile(path)
}

// LoadFile reads path over the defaults and applies environment overrides.
// A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, apperr.Configuration("load config", "parsing %s: %v", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := cfg.Calendar(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads whichever files exist; variables already set win.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTALSYNC_STAGE"); v != "" {
		cfg.Stage = v
	}
	if v := os.Getenv("TSHEETS_ACCESS_TOKEN"); v != "" {
		cfg.TSheets.AccessToken = v
	}
	if v := os.Getenv("ADP_CLIENT_ID"); v != "" {
		cfg.ADP.ClientID = v
	}
	if v := os.Getenv("ADP_CLIENT_SECRET"); v != "" {
		cfg.ADP.ClientSecret = v
	}
	if v := os.Getenv("UNANET_USERNAME"); v != "" {
		cfg.Unanet.Username = v
	}
	if v := os.Getenv("UNANET_PASSWORD"); v != "" {
		cfg.Unanet.Password = v
	}
	if v := os.Getenv("PORTALSYNC_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PORTALSYNC_TIMEZONE"); v != "" {
		cfg.Timesheet.Timezone = v
	}
	if v := os.Getenv("PORTALSYNC_TEST_EMPLOYEES"); v != "" {
		var nums []int
		for _, s := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				nums = append(nums, n)
			}
		}
		cfg.Reminder.TestEmployeeNumbers = nums
	}
}

// Location resolves the configured time zone used to decide "today".
func (c *Config) Location() (*time.Location, error) {
	switch c.Timesheet.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timesheet.Timezone)
	if err != nil {
		return nil, apperr.Configuration("load config", "unknown timezone %q", c.Timesheet.Timezone)
	}
	return loc, nil
}

// Calendar returns the CYK pay period definition.
func (c *Config) Calendar() (reminder.Calendar, error) {
	cal := reminder.DefaultCalendar()
	if c.Reminder.CykAnchorStart != "" {
		anchor, err := timesheet.ParseDate(c.Reminder.CykAnchorStart)
		if err != nil {
			return reminder.Calendar{}, apperr.Configuration("load config", "bad cyk_anchor_start %q", c.Reminder.CykAnchorStart)
		}
		cal.CykAnchor = anchor
	}
	if c.Reminder.CykPeriodDays != 0 {
		if c.Reminder.CykPeriodDays < 0 {
			return reminder.Calendar{}, apperr.Configuration("load config", "cyk_period_days must be positive")
		}
		cal.CykPeriodDays = c.Reminder.CykPeriodDays
	}
	return cal, nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.TSheets.CacheTTLMinutes) * time.Minute
}

func (c *Config) DBPath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "portalsync.db"), nil
}

func PIDPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scheduler.pid"), nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Save writes cfg to path, creating the directory. Values from the
// environment are written as they are in cfg.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return writePrivate(path, out)
}

// SaveTestEmployees persists the non-prod notification allow-list using a
// read-modify-write approach to preserve other settings.
func SaveTestEmployees(path string, numbers []int) error {
	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	r, ok := cfg["reminder"].(map[string]any)
	if !ok {
		r = make(map[string]any)
	}
	r["test_employee_numbers"] = numbers
	cfg["reminder"] = r

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return writePrivate(path, out)
}

// writePrivate writes the config readable by its owner only, tightening an
// existing file's mode as well. The file may hold vendor credentials.
func writePrivate(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("setting config permissions: %w", err)
	}
	return nil
}
