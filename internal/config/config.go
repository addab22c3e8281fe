package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Duration reads "90s"-style strings or plain seconds from config files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"'`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Source struct {
	// Mode is "single" (one quote page per code) or "multi" (one overview page).
	Mode              string   `json:"mode,omitempty"`
	QuoteURLTemplate  string   `json:"quote_url_template,omitempty"`
	OverviewURL       string   `json:"overview_url,omitempty"`
	ValueSelector     string   `json:"value_selector,omitempty"`
	WaitUntil         string   `json:"wait_until,omitempty"`
	SettleDelay       Duration `json:"settle_delay,omitempty"`
	NavigationTimeout Duration `json:"navigation_timeout,omitempty"`
	Pace              Duration `json:"pace,omitempty"`
	UserAgent         string   `json:"user_agent,omitempty"`
	ChromePath        string   `json:"chrome_path,omitempty"`
	Headful           bool     `json:"headful,omitempty"`
}

type Telegram struct {
	BotToken string  `json:"bot_token,omitempty"`
	ChatIDs  []int64 `json:"chat_ids,omitempty"`
}

type Server struct {
	// Addr enables the HTTP read endpoint when set, e.g. ":8080".
	Addr string `json:"addr,omitempty"`
}

type Client struct {
	// Source is the URL or path of the exported document the lookup commands read.
	Source   string   `json:"source,omitempty"`
	CacheTTL Duration `json:"cache_ttl,omitempty"`
}

type Config struct {
	DataDir          string `json:"data_dir,omitempty"`
	DBPath           string `json:"db_path,omitempty"`
	ExportPath       string `json:"export_path,omitempty"`
	TrackedCodesPath string `json:"tracked_codes_path,omitempty"`
	// BackupPath, when set, receives a copy of the database before each replacement.
	BackupPath string `json:"backup_path,omitempty"`

	Schedule   string   `json:"schedule,omitempty"`
	RunTimeout Duration `json:"run_timeout,omitempty"`

	PinnedBase    string `json:"pinned_base,omitempty"`
	QuoteCurrency string `json:"quote_currency,omitempty"`
	// Factor is the correction multiplier applied to computed values.
	Factor string `json:"factor,omitempty"`

	Source   Source   `json:"source"`
	Telegram Telegram `json:"telegram"`
	Client   Client   `json:"client"`
	Server   Server   `json:"server"`

	// ReportCalendar is "gregorian" or "jalali".
	ReportCalendar string `json:"report_calendar,omitempty"`

	Debug bool `json:"debug,omitempty"`
}

const (
	DefaultSchedule         = "0 */6 * * *"
	DefaultQuoteURLTemplate = "https://www.google.com/finance/quote/{code}-USD?hl=es"
	DefaultOverviewURL      = "https://www.google.com/finance/markets/currencies?hl=es"
)

func DefaultDataDir() string {
	if v := os.Getenv("FXS_DATA_DIR"); v != "" {
		return v
	}
	return "data"
}

func DefaultConfigPath() string {
	if v := os.Getenv("FXS_CONFIG"); v != "" {
		return v
	}
	return "config.json5"
}

// Load reads path, merges "<name>.local.<ext>" over it when present, applies FXS_*
// environment overrides (a .env file in the working directory is honored) and fills
// defaults. A missing config file is not an error.
//
// The local merge skips empty values, so a local file cannot clear a string or list
// set in the shared file. Explicit false for debug and source.headful is honored.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	if err := readJSON5(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	local := localPath(path)
	var override Config
	if err := readJSON5(local, &override); err == nil {
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge %s: %w", local, err)
		}
		var sw switches
		if err := readJSON5(local, &sw); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		sw.apply(&cfg)
		slog.Info("merging config with local overrides", "local", local)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// switches are the booleans a local file may turn off, which mergo leaves alone.
type switches struct {
	Debug  *bool `json:"debug"`
	Source struct {
		Headful *bool `json:"headful"`
	} `json:"source"`
}

func (sw switches) apply(cfg *Config) {
	if sw.Debug != nil {
		cfg.Debug = *sw.Debug
	}
	if sw.Source.Headful != nil {
		cfg.Source.Headful = *sw.Source.Headful
	}
}

func readJSON5(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json5.Unmarshal(b, out); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FXS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FXS_EXPORT_PATH"); v != "" {
		cfg.ExportPath = v
	}
	if v := os.Getenv("FXS_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	if v := os.Getenv("FXS_CHROME_PATH"); v != "" {
		cfg.Source.ChromePath = v
	}
	if v := os.Getenv("FXS_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("FXS_TELEGRAM_CHATS"); v != "" && len(cfg.Telegram.ChatIDs) == 0 {
		cfg.Telegram.ChatIDs = parseIDList(v)
	}
	if v := os.Getenv("FXS_CLIENT_SOURCE"); v != "" {
		cfg.Client.Source = v
	}
	if v := os.Getenv("FXS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FXS_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "divisas.db")
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = filepath.Join(cfg.DataDir, "datos.json")
	}
	if cfg.TrackedCodesPath == "" {
		cfg.TrackedCodesPath = filepath.Join(cfg.DataDir, "tracked_codes.json")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = Duration(2 * time.Hour)
	}
	if cfg.PinnedBase == "" {
		cfg.PinnedBase = "USD"
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = cfg.PinnedBase
	}
	cfg.PinnedBase = strings.ToUpper(cfg.PinnedBase)
	cfg.QuoteCurrency = strings.ToUpper(cfg.QuoteCurrency)

	if cfg.Source.Mode == "" {
		cfg.Source.Mode = "single"
	}
	if cfg.Source.QuoteURLTemplate == "" {
		cfg.Source.QuoteURLTemplate = DefaultQuoteURLTemplate
	}
	if cfg.Source.OverviewURL == "" {
		cfg.Source.OverviewURL = DefaultOverviewURL
	}
	if cfg.Source.NavigationTimeout <= 0 {
		cfg.Source.NavigationTimeout = Duration(60 * time.Second)
	}
	if cfg.Source.SettleDelay <= 0 && strings.EqualFold(cfg.Source.WaitUntil, "domcontentloaded") {
		cfg.Source.SettleDelay = Duration(3 * time.Second)
	}
	if cfg.Source.Pace <= 0 {
		cfg.Source.Pace = Duration(1500 * time.Millisecond)
	}

	if cfg.Client.Source == "" {
		cfg.Client.Source = cfg.ExportPath
	}
	if cfg.Client.CacheTTL <= 0 {
		cfg.Client.CacheTTL = Duration(time.Minute)
	}
	if cfg.ReportCalendar == "" {
		cfg.ReportCalendar = "gregorian"
	}
}

func (cfg Config) validate() error {
	switch cfg.Source.Mode {
	case "single", "multi":
	default:
		return fmt.Errorf("source.mode must be single or multi, got %q", cfg.Source.Mode)
	}
	if cfg.Source.Mode == "single" && !strings.Contains(cfg.Source.QuoteURLTemplate, "{code}") {
		return fmt.Errorf("source.quote_url_template must contain {code}")
	}
	switch cfg.ReportCalendar {
	case "gregorian", "jalali":
	default:
		return fmt.Errorf("report_calendar must be gregorian or jalali, got %q", cfg.ReportCalendar)
	}
	return nil
}

func parseIDList(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err == nil {
			out = append(out, id)
		}
	}
	return out
}
