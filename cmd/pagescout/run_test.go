package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagescout/internal/config"
	"github.com/nao1215/pagescout/internal/database"
	"github.com/nao1215/pagescout/internal/model"
	"github.com/nao1215/pagescout/internal/report"
)

// writeFile creates a file with content in a temporary directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// parseRunFlags builds a config from run command flags. Every call passes
// --config so that no user configuration file is picked up.
func parseRunFlags(t *testing.T, env map[string]string, args ...string) (*config.Config, error) {
	t.Helper()

	cmd := NewRunCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	getenv := func(key string) string { return env[key] }
	return buildConfig(cmd, cmd.Flags().Args(), getenv)
}

// TestNewRunCmd tests the run command flags.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "config", shorthand: "c", defValue: ""},
		{name: "list", shorthand: "l", defValue: ""},
		{name: "format", shorthand: "f", defValue: "csv"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "timeout", shorthand: "t", defValue: config.DefaultFetchTimeout.String()},
		{name: "concurrency", shorthand: "n", defValue: "4"},
		{name: "no-browser", defValue: "false"},
		{name: "no-solve", defValue: "false"},
		{name: "respect-robots", defValue: "false"},
		{name: "match-subdomains", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestBuildConfig tests the merge of file, environment and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		config.EnvSearchAPIKey:   "env-key",
		config.EnvSearchEngineID: "env-cx",
	}

	t.Run("defaults with environment credentials", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "empty.yaml", "")
		cfg, err := parseRunFlags(t, env, "-c", configPath, "https://example.org/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SearchAPIKey != "env-key" || cfg.SearchEngineID != "env-cx" {
			t.Errorf("credentials not taken from the environment: %q %q", cfg.SearchAPIKey, cfg.SearchEngineID)
		}
		if !cfg.BrowserEnabled || !cfg.SaveToDB || cfg.Format != report.FormatCSV {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("flags override the file only when set", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "config.yaml", `
concurrency: 2
fetch:
  timeout: 20s
  retry_cap: 5
browser:
  enabled: true
format: json
`)
		cfg, err := parseRunFlags(t, env,
			"-c", configPath, "-n", "8", "--no-browser", "--no-db", "-f", "MARKDOWN",
			"https://example.org/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Concurrency != 8 {
			t.Errorf("expected concurrency 8 from flag, got %d", cfg.Concurrency)
		}
		if cfg.FetchTimeout != 20*time.Second || cfg.RetryCap != 5 {
			t.Errorf("expected file values to survive, got %v %d", cfg.FetchTimeout, cfg.RetryCap)
		}
		if cfg.BrowserEnabled || cfg.SaveToDB {
			t.Error("expected --no-browser and --no-db to win over defaults and file")
		}
		if cfg.Format != report.FormatMarkdown {
			t.Errorf("expected lower-cased format, got %q", cfg.Format)
		}
		if !cfg.SolveChallenge {
			t.Error("expected challenge solving to stay on without --no-solve")
		}
	})

	t.Run("no-solve disables challenge solving", func(t *testing.T) {
		t.Parallel()

		cfg, err := parseRunFlags(t, env, "--no-solve", "https://example.org/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SolveChallenge {
			t.Error("expected --no-solve to disable challenge solving")
		}
	})

	t.Run("homepage order is args, list, file", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "config.yaml", "homepages:\n  - https://file.example/\n")
		listPath := writeFile(t, "list.txt", "# comment\nhttps://list.example/\n\n")
		cfg, err := parseRunFlags(t, env, "-c", configPath, "-l", listPath, "https://arg.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "https://arg.example/,https://list.example/,https://file.example/"
		if got := strings.Join(cfg.Homepages, ","); got != want {
			t.Errorf("homepages = %q, want %q", got, want)
		}
	})

	t.Run("page type, header and db flags", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "empty.yaml", "")
		dbDir := t.TempDir()
		cfg, err := parseRunFlags(t, env,
			"-c", configPath,
			"-P", "Contact: contact us, contact",
			"-H", "Accept-Language=en",
			"--db-dir", dbDir,
			"--match-subdomains",
			"https://example.org/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.PageTypes) != 1 || cfg.PageTypes[0].Name != "Contact" || len(cfg.PageTypes[0].Phrases) != 2 {
			t.Errorf("unexpected page types: %+v", cfg.PageTypes)
		}
		if cfg.Headers["Accept-Language"] != "en" {
			t.Errorf("unexpected headers: %v", cfg.Headers)
		}
		if cfg.DBDir != dbDir {
			t.Errorf("expected db dir %q, got %q", dbDir, cfg.DBDir)
		}
		if cfg.MatchMode() != model.MatchRegistrable {
			t.Error("expected registrable-domain matching")
		}
	})

	t.Run("explicit missing config file", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.yaml")
		_, err := parseRunFlags(t, env, "-c", missing, "https://example.org/")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("missing list file", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "empty.yaml", "")
		_, err := parseRunFlags(t, env, "-c", configPath, "-l", filepath.Join(t.TempDir(), "none.txt"))
		if !errors.Is(err, config.ErrListNotFound) {
			t.Errorf("expected ErrListNotFound, got %v", err)
		}
	})

	t.Run("invalid page type flag", func(t *testing.T) {
		t.Parallel()

		configPath := writeFile(t, "empty.yaml", "")
		_, err := parseRunFlags(t, env, "-c", configPath, "-P", "Contact", "https://example.org/")
		if !errors.Is(err, model.ErrInvalidPageType) {
			t.Errorf("expected ErrInvalidPageType, got %v", err)
		}
	})
}

// TestParsePageType tests the --page-type syntax.
func TestParsePageType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantName    string
		wantPhrases []string
		wantErr     bool
	}{
		{name: "name and phrases", input: "About:about us,about", wantName: "About", wantPhrases: []string{"about us", "about"}},
		{name: "whitespace is trimmed", input: " Team : our team , , staff ", wantName: "Team", wantPhrases: []string{"our team", "staff"}},
		{name: "missing separator", input: "About", wantErr: true},
		{name: "missing name", input: ":about", wantErr: true},
		{name: "missing phrases", input: "About: , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pt, err := parsePageType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", pt)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pt.Name != tt.wantName || strings.Join(pt.Phrases, "|") != strings.Join(tt.wantPhrases, "|") {
				t.Errorf("got %+v", pt)
			}
		})
	}
}

const (
	aboutText    = "Example Org was founded in 1990 by a group of musicians who wanted to bring music to every child in the city."
	homepageText = "Welcome to Example Org. We run after-school music lessons, summer camps and community concerts all year round."
)

// newSiteServer serves a homepage and an About page.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><h1>About</h1><p>%s</p></body></html>", aboutText)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><p>%s</p><script>var x = 1;</script></body></html>", homepageText)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newSearchServer answers "about us" queries with the site's About page
// and every other query with no results.
func newSearchServer(t *testing.T, site *httptest.Server) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("q"), "about us") {
			fmt.Fprintf(w, `{"items":[{"link":"https://other.example/about"},{"link":%q}]}`, site.URL+"/about")
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	}))
	t.Cleanup(server.Close)
	return server
}

// testConfig returns a config for a local run without the browser.
func testConfig(t *testing.T, searchURL string, homepages ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Homepages = homepages
	cfg.SearchAPIKey, cfg.SearchEngineID = "test-key", "test-cx"
	cfg.SearchEndpoint = searchURL
	cfg.SearchRate = 0
	cfg.BrowserEnabled = false
	cfg.RetryDelay = 0
	cfg.DBDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

// TestRunCrawl runs the whole pipeline against local servers.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	site := newSiteServer(t)
	searchServer := newSearchServer(t, site)
	homepage := site.URL + "/"

	cfg := testConfig(t, searchServer.URL, homepage, "ftp://bad.example/")
	cfg.OutputFile = filepath.Join(t.TempDir(), "out", "results.csv")

	var stdout, progress bytes.Buffer
	logger := slog.New(slog.DiscardHandler)
	if err := runCrawl(t.Context(), cfg, logger, &stdout, &progress); err != nil {
		t.Fatalf("runCrawl failed: %v", err)
	}

	if stdout.Len() != 0 {
		t.Error("export should go to the output file, not stdout")
	}
	for _, want := range []string{"[1/2] Done", "[2/2] Done", "Run ID:", "Export written to"} {
		if !strings.Contains(progress.String(), want) {
			t.Errorf("expected progress to contain %q:\n%s", want, progress.String())
		}
	}

	data, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff")))).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	site1 := rows[1]
	if site1[0] != homepage || site1[1] != site.URL+"/about" || !strings.Contains(site1[2], "founded in 1990") {
		t.Errorf("unexpected About columns: %v", site1[:3])
	}
	if site1[3] != homepage || !strings.Contains(site1[4], "Welcome to Example Org") {
		t.Errorf("Programs should fall back to the homepage: %v", site1[3:])
	}
	if strings.Contains(site1[4], "var x") {
		t.Error("script content must not be extracted")
	}
	if rows[2][0] != "ftp://bad.example/" || rows[2][2] != "" || rows[2][4] != "" {
		t.Errorf("unexpected invalid-homepage row: %v", rows[2])
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	runs, err := db.ListRuns(t.Context(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected 1 stored run, got %d (%v)", len(runs), err)
	}
	if r := runs[0]; r.Homepages != 2 || r.Success != 2 || r.Unreachable != 2 || r.Fallbacks != 3 {
		t.Errorf("unexpected stored counts: %+v", r)
	}
}

// TestRunCrawlMissingCredentials tests that wiring fails without credentials.
func TestRunCrawlMissingCredentials(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Homepages = []string{"https://example.org/"}
	cfg.SaveToDB = false

	err := runCrawl(t.Context(), cfg, slog.New(slog.DiscardHandler), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Error("expected an error without search credentials")
	}
}

// TestOutputExport tests export destinations and formats.
func TestOutputExport(t *testing.T) {
	t.Parallel()

	export := report.NewExport(model.DefaultPageTypes(), []model.SiteRecord{{
		Homepage: "https://example.org/",
		Results: []model.PageResult{
			{PageType: "About", URL: "https://example.org/about", Text: "About us", Outcome: model.OutcomeSuccess},
			{PageType: "Programs", URL: "https://example.org/", Text: "Home", Source: model.SourceHomepageFallback},
		},
	}})

	t.Run("stdout", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cfg := &config.Config{Format: report.FormatJSON}
		if err := outputExport(cfg, export, &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"homepage": "https://example.org/"`) {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("file in new directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a", "b", "report.md")
		cfg := &config.Config{Format: report.FormatMarkdown, OutputFile: path}
		if err := outputExport(cfg, export, &bytes.Buffer{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "# pagescout Report") {
			t.Error("expected a Markdown report")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Format: "xlsx"}
		if err := outputExport(cfg, export, &bytes.Buffer{}); !errors.Is(err, report.ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})
}
