package config

import (
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/pagescout/internal/model"
	"github.com/nao1215/pagescout/internal/report"
)

// Default configuration values.
// They mirror the defaults of the fetcher, search and pipeline packages so
// that a zero-configuration run behaves like the library defaults.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pagescout"

	// DefaultSearchEndpoint is the Google Custom Search JSON API.
	DefaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

	// DefaultSearchTimeout bounds one search query.
	DefaultSearchTimeout = 15 * time.Second

	// DefaultSearchRate is the number of queries per second shared by all
	// workers. The Custom Search API rejects bursts well before the daily
	// quota is used up.
	DefaultSearchRate = 1.0

	// DefaultSearchBurst is the number of queries allowed at once.
	DefaultSearchBurst = 1

	// DefaultSearchQuota is the number of queries allowed per day.
	// 0 means unlimited; the free tier of the API is 100.
	DefaultSearchQuota = 0

	// DefaultFetchTimeout bounds one direct HTTP request.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultRetryCap is the number of direct attempts made while the
	// server answers 202 Accepted.
	DefaultRetryCap = 2

	// DefaultRetryDelay is the pause between two 202 attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMinTextLength is the rune count below which direct text is
	// treated as too short and escalated to the browser.
	DefaultMinTextLength = 50

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent is a desktop browser User-Agent. Many sites answer
	// scripted User-Agents with a challenge page.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// DefaultBrowserSessions is the number of concurrent browser sessions.
	DefaultBrowserSessions = 2

	// DefaultSettleDelay is how long the browser waits after navigation.
	DefaultSettleDelay = 5 * time.Second

	// DefaultSessionTimeout bounds one browser session.
	DefaultSessionTimeout = 45 * time.Second

	// DefaultConcurrency is the number of homepages processed at once.
	DefaultConcurrency = 4

	// DefaultFormat is the export format.
	DefaultFormat = report.FormatCSV
)

// Environment variables holding the search credentials.
const (
	EnvSearchAPIKey   = "PAGESCOUT_SEARCH_API_KEY"
	EnvSearchEngineID = "PAGESCOUT_SEARCH_ENGINE_ID"
)

// Config holds all configuration options for pagescout.
// This struct is populated from the config file, the environment and CLI
// flags (in that order of precedence, lowest first) and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The YAML file is sectioned (see File) but every section
// maps onto prefixed fields here, so the CLI can override any of them.
type Config struct {
	// Homepages is the list of homepage URLs to process, in export order.
	Homepages []string

	// ListFile is a file with one homepage URL per line.
	// Its entries are appended to Homepages.
	ListFile string

	// PageTypes is the ordered list of page types to discover.
	PageTypes []model.PageType

	// SearchAPIKey is the Custom Search API key.
	// It is never logged; the secure log handler masks it.
	SearchAPIKey string

	// SearchEngineID is the programmable search engine ID (cx).
	SearchEngineID string

	// SearchEndpoint is the search API URL. Overridable for testing and proxies.
	SearchEndpoint string

	// SearchTimeout bounds one search query.
	SearchTimeout time.Duration

	// SearchRate is the shared query rate in queries per second.
	// 0 disables rate limiting.
	SearchRate float64

	// SearchBurst is the number of queries allowed at once.
	SearchBurst int

	// SearchQuota is the number of queries allowed per 24 hours.
	// 0 means unlimited.
	SearchQuota int

	// FetchTimeout bounds one direct HTTP request.
	FetchTimeout time.Duration

	// RetryCap is the number of direct attempts while the server answers 202.
	RetryCap int

	// RetryDelay is the pause between two 202 attempts.
	RetryDelay time.Duration

	// MinTextLength is the rune count below which direct text escalates.
	MinTextLength int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (10MB).
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with direct requests and
	// by the browser.
	UserAgent string

	// Fingerprints are case-insensitive challenge markers checked in
	// addition to the built-in list.
	Fingerprints []string

	// Proxy is an optional outbound proxy URL (http, https, socks5, socks5h).
	Proxy string

	// Headers are extra request headers sent with every direct request.
	Headers map[string]string

	// Cookie is an optional Cookie header sent with every direct request.
	Cookie string

	// BrowserEnabled turns on the headless browser tier.
	// When false, pages that need the browser end as empty_or_blocked.
	BrowserEnabled bool

	// BrowserSessions is the maximum number of concurrent browser sessions.
	BrowserSessions int

	// SettleDelay is how long the browser waits after navigation.
	SettleDelay time.Duration

	// SessionTimeout bounds one browser session.
	SessionTimeout time.Duration

	// SolveChallenge lets the browser click known challenge checkboxes.
	SolveChallenge bool

	// Headless runs the browser without a window.
	Headless bool

	// BrowserPath is the Chrome executable. Empty means auto-detect.
	BrowserPath string

	// Concurrency is the number of homepages processed at once.
	Concurrency int

	// MatchSubdomains treats every subdomain of a homepage's registrable
	// domain as the same site.
	MatchSubdomains bool

	// RespectRobots skips candidates disallowed by robots.txt.
	RespectRobots bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogJSON switches the log output to JSON lines.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches the default locations (see FindConfigFile).
	ConfigFilePath string

	// Format is the export format: csv, json, markdown or text.
	Format string

	// OutputFile is the output file path for the export.
	// When empty, the export is written to stdout.
	// Directories are created automatically if they don't exist.
	OutputFile string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/pagescout on Linux).
	DBDir string

	// SaveToDB indicates whether to save run results to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, retry cap).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		PageTypes:       model.DefaultPageTypes(),
		SearchEndpoint:  DefaultSearchEndpoint,
		SearchTimeout:   DefaultSearchTimeout,
		SearchRate:      DefaultSearchRate,
		SearchBurst:     DefaultSearchBurst,
		SearchQuota:     DefaultSearchQuota,
		FetchTimeout:    DefaultFetchTimeout,
		RetryCap:        DefaultRetryCap,
		RetryDelay:      DefaultRetryDelay,
		MinTextLength:   DefaultMinTextLength,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		BrowserEnabled:  true,
		BrowserSessions: DefaultBrowserSessions,
		SettleDelay:     DefaultSettleDelay,
		SessionTimeout:  DefaultSessionTimeout,
		SolveChallenge:  true,
		Headless:        true,
		Concurrency:     DefaultConcurrency,
		Format:          DefaultFormat,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// ApplyFile overlays the values set in a config file onto c.
// Zero values in the file leave the current value untouched, so a partial
// file only changes what it names.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	c.Homepages = append(c.Homepages, f.Homepages...)
	if len(f.PageTypes) > 0 {
		c.PageTypes = slices.Clone(f.PageTypes)
	}

	setString(&c.SearchAPIKey, f.Search.APIKey)
	setString(&c.SearchEngineID, f.Search.EngineID)
	setString(&c.SearchEndpoint, f.Search.Endpoint)
	setPositive(&c.SearchTimeout, f.Search.Timeout)
	if f.Search.Rate != nil {
		c.SearchRate = *f.Search.Rate
	}
	setPositive(&c.SearchBurst, f.Search.Burst)
	if f.Search.DailyQuota != nil {
		c.SearchQuota = *f.Search.DailyQuota
	}

	setPositive(&c.FetchTimeout, f.Fetch.Timeout)
	setPositive(&c.RetryCap, f.Fetch.RetryCap)
	if f.Fetch.RetryDelay != nil {
		c.RetryDelay = *f.Fetch.RetryDelay
	}
	if f.Fetch.MinTextLength != nil {
		c.MinTextLength = *f.Fetch.MinTextLength
	}
	setPositive(&c.MaxBodySize, f.Fetch.MaxBodySize)
	setString(&c.UserAgent, f.Fetch.UserAgent)
	if len(f.Fetch.Fingerprints) > 0 {
		c.Fingerprints = slices.Clone(f.Fetch.Fingerprints)
	}
	setString(&c.Proxy, f.Fetch.Proxy)
	if len(f.Fetch.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Fetch.Headers))
		}
		maps.Copy(c.Headers, f.Fetch.Headers)
	}
	setString(&c.Cookie, f.Fetch.Cookie)

	setBool(&c.BrowserEnabled, f.Browser.Enabled)
	setPositive(&c.BrowserSessions, f.Browser.MaxSessions)
	if f.Browser.SettleDelay != nil {
		c.SettleDelay = *f.Browser.SettleDelay
	}
	setPositive(&c.SessionTimeout, f.Browser.SessionTimeout)
	setBool(&c.SolveChallenge, f.Browser.SolveChallenge)
	setBool(&c.Headless, f.Browser.Headless)
	setString(&c.BrowserPath, f.Browser.ExecPath)

	setPositive(&c.Concurrency, f.Concurrency)
	setBool(&c.MatchSubdomains, f.MatchSubdomains)
	setBool(&c.RespectRobots, f.RespectRobots)
	setString(&c.Format, f.Format)
	setString(&c.OutputFile, f.Output)
}

// ApplyEnv overlays the search credentials from the environment.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString(&c.SearchAPIKey, getenv(EnvSearchAPIKey))
	setString(&c.SearchEngineID, getenv(EnvSearchEngineID))
}

// MatchMode returns the same-domain rule selected by MatchSubdomains.
func (c *Config) MatchMode() model.MatchMode {
	if c.MatchSubdomains {
		return model.MatchRegistrable
	}
	return model.MatchHost
}

// XDGDataDir returns the XDG data directory for pagescout.
// On Linux: ~/.local/share/pagescout
// On macOS: ~/Library/Application Support/pagescout
// On Windows: %LOCALAPPDATA%\pagescout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagescout.
// On Linux: ~/.config/pagescout
// On macOS: ~/Library/Application Support/pagescout
// On Windows: %APPDATA%\pagescout
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after flags are merged, before any request is made.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Homepages) == 0 {
		return ErrNoHomepages
	}

	if err := model.ValidatePageTypes(c.PageTypes); err != nil {
		return err
	}

	if c.SearchAPIKey == "" || c.SearchEngineID == "" {
		return ErrMissingCredentials
	}

	if c.SearchTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SearchRate < 0 || c.SearchBurst < 0 || c.SearchQuota < 0 {
		return ErrInvalidSearchRate
	}

	if c.RetryCap < 1 {
		return ErrInvalidRetryCap
	}

	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}

	if c.MinTextLength < 0 {
		return ErrInvalidMinTextLength
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BrowserEnabled {
		if c.BrowserSessions <= 0 {
			return ErrInvalidBrowserSessions
		}
		if c.SessionTimeout <= 0 {
			return ErrInvalidTimeout
		}
	}

	if !slices.Contains(report.Formats, c.Format) {
		return ErrUnknownFormat
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setPositive[T int | int64 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
