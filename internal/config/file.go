package config

import (
	"time"

	"github.com/nao1215/pagescout/internal/model"
)

// File represents the structure of the configuration file (.pagescout).
//
// Example:
//
//	homepages:
//	  - https://example.org/
//	page_types:
//	  - name: About
//	    phrases: ["about us", "about"]
//	search:
//	  rate: 0.5
//	  daily_quota: 100
//	fetch:
//	  timeout: 15s
//	  retry_cap: 3
//	browser:
//	  enabled: true
//	  max_sessions: 2
//	concurrency: 4
//	match_subdomains: false
//	respect_robots: true
//
// Design decision: Booleans and values whose zero is meaningful are pointers
// because:
//  1. An absent key must not reset a default (browser.enabled defaults to true)
//  2. A present zero (retry_delay: 0s) must still override the default
type File struct {
	// Homepages are appended to the homepages given on the command line.
	Homepages []string `yaml:"homepages"`

	// PageTypes replaces the default About/Programs page types when set.
	PageTypes []model.PageType `yaml:"page_types"`

	Search  SearchSection  `yaml:"search"`
	Fetch   FetchSection   `yaml:"fetch"`
	Browser BrowserSection `yaml:"browser"`

	// Concurrency is the number of homepages processed at once.
	Concurrency int `yaml:"concurrency"`

	// MatchSubdomains switches the same-domain rule to registrable domains.
	MatchSubdomains *bool `yaml:"match_subdomains"`

	// RespectRobots enables the robots.txt candidate gate.
	RespectRobots *bool `yaml:"respect_robots"`

	// Format is the export format.
	Format string `yaml:"format"`

	// Output is the export file path.
	Output string `yaml:"output"`
}

// SearchSection configures the search provider.
// Credentials may be set here, but the environment variables are preferred
// so that the file can be committed.
type SearchSection struct {
	APIKey     string        `yaml:"api_key"`
	EngineID   string        `yaml:"engine_id"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	Rate       *float64      `yaml:"rate"`
	Burst      int           `yaml:"burst"`
	DailyQuota *int          `yaml:"daily_quota"`
}

// FetchSection configures the direct HTTP tier.
type FetchSection struct {
	Timeout       time.Duration     `yaml:"timeout"`
	RetryCap      int               `yaml:"retry_cap"`
	RetryDelay    *time.Duration    `yaml:"retry_delay"`
	MinTextLength *int              `yaml:"min_text_length"`
	MaxBodySize   int64             `yaml:"max_body_size"`
	UserAgent     string            `yaml:"user_agent"`
	Fingerprints  []string          `yaml:"fingerprints"`
	Proxy         string            `yaml:"proxy"`
	Headers       map[string]string `yaml:"headers"`
	Cookie        string            `yaml:"cookie"`
}

// BrowserSection configures the headless browser tier.
type BrowserSection struct {
	Enabled        *bool          `yaml:"enabled"`
	MaxSessions    int            `yaml:"max_sessions"`
	SettleDelay    *time.Duration `yaml:"settle_delay"`
	SessionTimeout time.Duration  `yaml:"session_timeout"`
	SolveChallenge *bool          `yaml:"solve_challenge"`
	Headless       *bool          `yaml:"headless"`
	ExecPath       string         `yaml:"exec_path"`
}
