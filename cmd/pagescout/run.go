package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/pagescout/internal/config"
	"github.com/nao1215/pagescout/internal/database"
	"github.com/nao1215/pagescout/internal/discovery"
	"github.com/nao1215/pagescout/internal/event"
	"github.com/nao1215/pagescout/internal/fetcher"
	"github.com/nao1215/pagescout/internal/log"
	"github.com/nao1215/pagescout/internal/model"
	"github.com/nao1215/pagescout/internal/pipeline"
	"github.com/nao1215/pagescout/internal/report"
	"github.com/nao1215/pagescout/internal/search"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// quotaWindow is the period of the daily search quota.
const quotaWindow = 24 * time.Hour

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [homepage...]",
		Short: "Discover and extract informational pages for a list of websites",
		Long: `Run processes every homepage and every page type (About and Programs by
default) and exports one record per homepage.

For each page type the search API is queried with "site:<domain> <phrase>"
for each phrase in order. Hits on other domains are discarded, and the
first hit whose text can be extracted wins. Pages behind a bot challenge
or rendered by JavaScript are retried in a headless browser. When no
phrase yields a page, the homepage itself is used.

Examples:
  # Process two websites and print CSV to stdout
  pagescout run https://example.org/ https://example.com/

  # Read homepages from a file and write a CSV export
  pagescout run --list homepages.txt -o results.csv

  # Markdown summary without the browser tier
  pagescout run --list homepages.txt --no-browser -f markdown -o report.md

  # Discover a Contact page only
  pagescout run --page-type "Contact:contact us,contact" https://example.org/

Configuration file (.pagescout) example:
  page_types:
    - name: About
      phrases: ["about us", "about"]
  search:
    daily_quota: 100
  browser:
    max_sessions: 2`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// Input flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pagescout in current or home directory)")
	cmd.Flags().StringP("list", "l", "",
		"File with one homepage URL per line")
	cmd.Flags().StringArrayP("page-type", "P", nil,
		`Page type as "Name:phrase1,phrase2" (repeatable, replaces the configured page types)`)

	// Search flags
	cmd.Flags().Float64("search-rate", config.DefaultSearchRate,
		"Search queries per second (0 disables the limit)")
	cmd.Flags().Int("search-quota", config.DefaultSearchQuota,
		"Search queries per 24 hours (0 means unlimited)")
	cmd.Flags().String("search-endpoint", config.DefaultSearchEndpoint,
		"Search API endpoint")

	// Fetch flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout for each direct request")
	cmd.Flags().Int("retry-cap", config.DefaultRetryCap,
		"Direct attempts while a server answers 202 Accepted")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay,
		"Pause between two 202 attempts")
	cmd.Flags().Int("min-text", config.DefaultMinTextLength,
		"Minimum extracted text length before escalating to the browser")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent for direct requests and the browser")
	cmd.Flags().String("proxy", "",
		"Outbound proxy URL (http, https, socks5)")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every direct request")
	cmd.Flags().StringToStringP("header", "H", nil,
		"Extra request header as Name=Value (repeatable)")

	// Browser flags
	cmd.Flags().Bool("no-browser", false,
		"Disable the headless browser tier")
	cmd.Flags().Bool("no-solve", false,
		"Do not click known verification challenge checkboxes in the browser")
	cmd.Flags().Int("browser-sessions", config.DefaultBrowserSessions,
		"Maximum concurrent browser sessions")
	cmd.Flags().Duration("settle-delay", config.DefaultSettleDelay,
		"Wait after browser navigation before reading the page")
	cmd.Flags().String("browser-path", "",
		"Chrome or Chromium executable (default: auto-detect)")

	// Discovery flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of websites processed at once")
	cmd.Flags().Bool("match-subdomains", false,
		"Accept candidates from any subdomain of the homepage's domain")
	cmd.Flags().Bool("respect-robots", false,
		"Skip candidates disallowed by robots.txt")

	// Output flags
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Export format: "+strings.Join(report.Formats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write export to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not save the run to the local database")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.Getenv)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getBoolFlag retrieves a boolean flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig merges defaults, the configuration file, the environment
// and the command line, in that order of increasing precedence.
// Only flags the user actually set override earlier layers.
func buildConfig(cmd *cobra.Command, args []string, getenv func(string) string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently continue with defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv(getenv)

	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	// Positional homepages come first, then the list file, then the config file.
	homepages := append([]string{}, args...)
	if cfg.ListFile != "" {
		listed, err := config.LoadHomepages(cfg.ListFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load homepage list: %w", err)
		}
		homepages = append(homepages, listed...)
	}
	cfg.Homepages = append(homepages, cfg.Homepages...)

	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var noBrowser, noSolve, noDB bool
	var dbDir string
	var pageTypes []string

	overrides := []error{
		override(flags, "list", flags.GetString, &cfg.ListFile),
		override(flags, "page-type", flags.GetStringArray, &pageTypes),
		override(flags, "search-rate", flags.GetFloat64, &cfg.SearchRate),
		override(flags, "search-quota", flags.GetInt, &cfg.SearchQuota),
		override(flags, "search-endpoint", flags.GetString, &cfg.SearchEndpoint),
		override(flags, "timeout", flags.GetDuration, &cfg.FetchTimeout),
		override(flags, "retry-cap", flags.GetInt, &cfg.RetryCap),
		override(flags, "retry-delay", flags.GetDuration, &cfg.RetryDelay),
		override(flags, "min-text", flags.GetInt, &cfg.MinTextLength),
		override(flags, "user-agent", flags.GetString, &cfg.UserAgent),
		override(flags, "proxy", flags.GetString, &cfg.Proxy),
		override(flags, "cookie", flags.GetString, &cfg.Cookie),
		override(flags, "header", flags.GetStringToString, &cfg.Headers),
		override(flags, "no-browser", flags.GetBool, &noBrowser),
		override(flags, "no-solve", flags.GetBool, &noSolve),
		override(flags, "browser-sessions", flags.GetInt, &cfg.BrowserSessions),
		override(flags, "settle-delay", flags.GetDuration, &cfg.SettleDelay),
		override(flags, "browser-path", flags.GetString, &cfg.BrowserPath),
		override(flags, "concurrency", flags.GetInt, &cfg.Concurrency),
		override(flags, "match-subdomains", flags.GetBool, &cfg.MatchSubdomains),
		override(flags, "respect-robots", flags.GetBool, &cfg.RespectRobots),
		override(flags, "format", flags.GetString, &cfg.Format),
		override(flags, "output", flags.GetString, &cfg.OutputFile),
		override(flags, "no-db", flags.GetBool, &noDB),
		override(flags, "db-dir", flags.GetString, &dbDir),
	}
	if err := errors.Join(overrides...); err != nil {
		return err
	}

	if flags.Changed("no-browser") {
		cfg.BrowserEnabled = !noBrowser
	}
	if flags.Changed("no-solve") {
		cfg.SolveChallenge = !noSolve
	}
	if flags.Changed("no-db") {
		cfg.SaveToDB = !noDB
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if len(pageTypes) > 0 {
		parsed := make([]model.PageType, 0, len(pageTypes))
		for _, raw := range pageTypes {
			pt, err := parsePageType(raw)
			if err != nil {
				return err
			}
			parsed = append(parsed, pt)
		}
		cfg.PageTypes = parsed
	}
	cfg.Format = strings.ToLower(cfg.Format)

	return nil
}

// override sets *dst from the named flag when the user changed it.
func override[T any](flags *pflag.FlagSet, name string, get func(string) (T, error), dst *T) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// parsePageType parses "Name:phrase1,phrase2".
func parsePageType(raw string) (model.PageType, error) {
	name, phrases, ok := strings.Cut(raw, ":")
	if !ok {
		return model.PageType{}, fmt.Errorf("%w: %q must look like Name:phrase1,phrase2", model.ErrInvalidPageType, raw)
	}

	pt := model.PageType{Name: strings.TrimSpace(name)}
	for _, phrase := range strings.Split(phrases, ",") {
		if phrase = strings.TrimSpace(phrase); phrase != "" {
			pt.Phrases = append(pt.Phrases, phrase)
		}
	}
	if err := pt.Validate(); err != nil {
		return model.PageType{}, err
	}
	return pt, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Logs go to w (stderr) so that stdout carries only the export.
func setupLogger(w io.Writer, verbose, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// newOrchestrator wires the search provider, the fetcher and the
// discoverer from cfg.
func newOrchestrator(cfg *config.Config, logger *slog.Logger, sink event.Sink) (*pipeline.Orchestrator, error) {
	provider, err := search.NewGoogleClient(cfg.SearchAPIKey, cfg.SearchEngineID,
		search.WithEndpoint(cfg.SearchEndpoint),
		search.WithTimeout(cfg.SearchTimeout),
		search.WithLimiter(search.NewLimiter(cfg.SearchRate, cfg.SearchBurst)),
		search.WithQuota(search.NewQuota(cfg.SearchQuota, quotaWindow)),
		search.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	client, err := fetcher.NewHTTPClient(fetcher.ClientConfig{
		ProxyURL: cfg.Proxy,
		Headers:  cfg.Headers,
		Cookie:   cfg.Cookie,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithHTTPClient(client),
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithRetryCap(cfg.RetryCap),
		fetcher.WithRetryDelay(cfg.RetryDelay),
		fetcher.WithMinTextLength(cfg.MinTextLength),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithFingerprints(append(slices.Clone(fetcher.DefaultFingerprints), cfg.Fingerprints...)),
		fetcher.WithSink(sink),
		fetcher.WithLogger(logger),
	}
	if cfg.BrowserEnabled {
		fetchOpts = append(fetchOpts, fetcher.WithRenderer(fetcher.NewChromeRenderer(
			fetcher.WithMaxSessions(cfg.BrowserSessions),
			fetcher.WithSettleDelay(cfg.SettleDelay),
			fetcher.WithSessionTimeout(cfg.SessionTimeout),
			fetcher.WithSolveChallenge(cfg.SolveChallenge),
			fetcher.WithHeadless(cfg.Headless),
			fetcher.WithExecPath(cfg.BrowserPath),
			fetcher.WithBrowserUserAgent(cfg.UserAgent),
			fetcher.WithBrowserProxy(cfg.Proxy),
			fetcher.WithBrowserLogger(logger),
		)))
	}

	discoverOpts := []discovery.Option{
		discovery.WithMatcher(model.DomainMatcher{Mode: cfg.MatchMode()}),
		discovery.WithSink(sink),
		discovery.WithLogger(logger),
	}
	if cfg.RespectRobots {
		gate := discovery.NewRobotsGate(client, discovery.DefaultRobotsAgent, cfg.FetchTimeout, logger)
		discoverOpts = append(discoverOpts, discovery.WithGate(gate))
	}

	d := discovery.New(provider, fetcher.New(fetchOpts...), discoverOpts...)

	return pipeline.NewOrchestrator(d, cfg.PageTypes,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithSink(sink),
		pipeline.WithLogger(logger),
	)
}

// runCrawl runs the pipeline over cfg.Homepages, stores the run and writes
// the export. Progress goes to progress; the export goes to stdout unless
// an output file is configured.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, progress io.Writer) error {
	sink := event.NewMultiSink(event.NewLogSink(logger), event.NewProgressSink(progress))

	orch, err := newOrchestrator(cfg, logger, sink)
	if err != nil {
		return err
	}

	total := len(cfg.Homepages)
	fmt.Fprintf(progress, "Processing %d website(s) with %d page type(s)...\n\n", total, len(cfg.PageTypes))

	var (
		mu        sync.Mutex
		completed int
	)
	startedAt := time.Now()
	records := orch.RunWithCallback(ctx, cfg.Homepages, func(record model.SiteRecord, _ int) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		fmt.Fprintf(progress, "[%d/%d] Done: %s\n", completed, total, record.Homepage)
	})
	finishedAt := time.Now()

	if ctx.Err() != nil {
		logger.Warn("run interrupted, exporting partial results")
	}

	export := report.NewExport(orch.PageTypes(), records)
	export.GeneratedAt = finishedAt

	if cfg.SaveToDB {
		run := &database.Run{
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			PageTypes:  export.PageTypes,
		}
		// A storage failure must not lose the export.
		if err := saveRun(context.WithoutCancel(ctx), cfg.DBDir, run, records, logger); err != nil {
			logger.Warn("failed to save run", "error", err)
		} else {
			export.RunID = run.ID
		}
	}

	if err := outputExport(cfg, export, stdout); err != nil {
		return err
	}

	summary := report.Summarize(export)
	fmt.Fprintf(progress, "\nCompleted %d website(s): %d success, %d empty or blocked, %d unreachable, %d homepage fallback(s)\n",
		summary.Homepages, summary.Success, summary.EmptyOrBlocked, summary.Unreachable, summary.Fallbacks)
	if export.RunID != "" {
		fmt.Fprintf(progress, "Run ID: %s\n", export.RunID)
	}
	if cfg.OutputFile != "" {
		fmt.Fprintf(progress, "Export written to %s\n", cfg.OutputFile)
	}

	return nil
}

// saveRun stores the run in the database under dbDir.
func saveRun(ctx context.Context, dbDir string, run *database.Run, records []model.SiteRecord, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveRun(ctx, run, records); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved to database", "runID", run.ID, "path", db.Path())
	return nil
}

// outputExport writes the export in the configured format.
func outputExport(cfg *config.Config, export *report.Export, stdout io.Writer) error {
	output := stdout
	if cfg.OutputFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.OutputFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Exports hold fetched page text, so only the owner may read them.
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer, err := report.NewWriter(cfg.Format, output)
	if err != nil {
		return err
	}
	if _, err := writer.Write(export); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
