package cli

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/cperrin88/wikidumps/internal/logger"
	"github.com/cperrin88/wikidumps/pkg/config"
	"github.com/cperrin88/wikidumps/pkg/download"
	"github.com/cperrin88/wikidumps/pkg/dumpdate"
	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	wdhttp "github.com/cperrin88/wikidumps/pkg/http"
	"github.com/cperrin88/wikidumps/pkg/orchestrator"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type downloadOptions struct {
	resume      bool
	force       bool
	dryRun      bool
	attempts    int
	concurrency int
	timeout     time.Duration
	languages   []string
	files       []string
}

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	opts := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download DEST",
		Short: "Download the latest dumps",
		Long: `Download the configured dump files of every enabled language into
DEST/<language>/<YYYYMMDD>/. DEST must exist. Files that are already complete
are skipped and partial files are resumed.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", true, "resume partial files with range requests")
	cmd.Flags().BoolVar(&opts.force, "force", false, "download even when the local file is complete")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "resolve dates and print the plan without downloading")
	cmd.Flags().IntVar(&opts.attempts, "attempts", config.DefaultMaxAttempts, "transfer requests per file")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", config.DefaultConcurrency, "languages processed at once")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", config.DefaultHTTPTimeout, "timeout of a single HTTP request")
	cmd.Flags().StringArrayVar(&opts.languages, "language", nil, "language code to download instead of the configured ones (repeatable)")
	cmd.Flags().StringArrayVar(&opts.files, "file", nil, "configured file name to download instead of the enabled ones (repeatable)")

	return cmd
}

func runDownload(cmd *cobra.Command, dest string, opts *downloadOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyDownloadFlags(cmd, cfg, opts); err != nil {
		return err
	}

	builder, err := cfg.Builder()
	if err != nil {
		return err
	}
	client := wdhttp.NewHTTPClient(cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent)
	fsys := afero.NewOsFs()
	fetcher := download.NewFetcher(fsys, client, download.Options{
		Resume:       cfg.Settings.ResumeEnabled(),
		Force:        cfg.Settings.Force,
		MaxAttempts:  cfg.Settings.MaxAttempts,
		BlockSize:    cfg.Settings.BlockSize,
		RetryBackoff: cfg.Settings.RetryBackoff,
	})

	var scripts orchestrator.ScriptRunner
	if cfg.Hooks.PostDownload != "" || cfg.Hooks.PostLanguage != "" {
		manager := hooks.NewHookManager()
		if err := hooks.LoadHooks(fsys, manager, cfg.HookPaths()); err != nil {
			return err
		}
		scripts = manager
	}

	run := uuid.NewString()
	orch := orchestrator.New(dumpdate.NewResolver(builder, client), builder, fetcher, scripts, fsys,
		orchestrator.Hooks{OnEvent: renderEvent(run)})

	var files []orchestrator.FileSpec
	for _, f := range cfg.EnabledFiles() {
		files = append(files, orchestrator.FileSpec{Name: f.Name, Type: f.Type})
	}
	languages := cfg.EnabledLanguages()

	logger.Info("Starting download", logger.Fields{"run": run, "destination": dest, "languages": languages, "dry_run": opts.dryRun})
	report, err := orch.DownloadAll(cmd.Context(), dest, orchestrator.Options{
		Languages:   languages,
		Files:       files,
		Concurrency: cfg.Settings.Concurrency,
		DryRun:      opts.dryRun,
	})
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

// applyDownloadFlags overrides configuration values with the flags that were
// given and validates the result.
func applyDownloadFlags(cmd *cobra.Command, cfg *config.Config, opts *downloadOptions) error {
	flags := cmd.Flags()
	if flags.Changed("resume") {
		resume := opts.resume
		cfg.Settings.Resume = &resume
	}
	if flags.Changed("force") {
		cfg.Settings.Force = opts.force
	}
	if flags.Changed("attempts") {
		cfg.Settings.MaxAttempts = opts.attempts
	}
	if flags.Changed("concurrency") {
		cfg.Settings.Concurrency = opts.concurrency
	}
	if flags.Changed("timeout") {
		cfg.Settings.HTTPTimeout = opts.timeout
	}

	if len(opts.languages) > 0 {
		codes := slices.Clone(opts.languages)
		slices.Sort(codes)
		codes = slices.Compact(codes)
		cfg.Languages = make([]config.LanguageConfig, 0, len(codes))
		for _, code := range codes {
			cfg.Languages = append(cfg.Languages, config.LanguageConfig{Code: code})
		}
	}

	if len(opts.files) > 0 {
		selected := make([]config.FileConfig, 0, len(opts.files))
		seen := make(map[string]bool)
		for _, name := range opts.files {
			if seen[name] {
				continue
			}
			seen[name] = true
			filetype, ok := cfg.FiletypeFor(name)
			if !ok {
				return errors.ErrFilesSectionWithDetails("file %q is not configured", name)
			}
			selected = append(selected, config.FileConfig{Name: name, Type: filetype})
		}
		cfg.Files = selected
	}

	return cfg.Validate()
}

// renderEvent turns orchestrator events into log records tagged with run.
func renderEvent(run string) func(orchestrator.Event) {
	return func(e orchestrator.Event) {
		fields := logger.Fields{"run": run}
		if e.Language != "" {
			fields["language"] = e.Language
		}
		if e.File != "" {
			fields["file"] = e.File
		}

		switch e.Phase {
		case orchestrator.PhaseResolving:
			logger.Debug("Resolving dump date", fields)
		case orchestrator.PhaseResolved:
			logger.Info("Resolved dump date", fields, logger.Fields{"date": e.Msg})
		case orchestrator.PhasePlanned:
			logger.Info("Would download", fields, logger.Fields{"plan": e.Msg})
		case orchestrator.PhaseDownloading:
			logger.Info("Downloading", fields, logger.Fields{"url": e.Msg})
		case orchestrator.PhaseSkipped:
			logger.Info("Already complete, skipping", fields, logger.Fields{"path": e.Msg})
		case orchestrator.PhaseDownloaded:
			logger.Success("Downloaded", fields, logger.Fields{"path": e.Msg})
		case orchestrator.PhaseFailed:
			logger.Error("Failed", fields, logger.Fields{"error": e.Err})
		case orchestrator.PhaseHook:
			logger.Warn("Hook failed", fields, logger.Fields{"hook": e.Msg, "error": e.Err})
		case orchestrator.PhaseDone:
			if e.Language == "" {
				logger.Info("Run finished", fields, logger.Fields{"summary": e.Msg})
				return
			}
			logger.Debug("Language finished", fields, logger.Fields{"date": e.Msg})
		default:
			logger.Info(e.Msg, fields)
		}
	}
}

// printReport writes one line per file of the run.
func printReport(w io.Writer, report *orchestrator.Report) {
	tabWriter := tabwriter.NewWriter(w, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "LANGUAGE\tDATE\tFILE\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(tabWriter, "--------\t----\t----\t------\t------")

	for _, lang := range report.Languages {
		date := "-"
		if !lang.Date.IsZero() {
			date = lang.Date.String()
		}
		if lang.Err != nil {
			_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t-\tfailed\t%v\n", lang.Language, date, lang.Err)
			continue
		}
		for _, f := range lang.Files {
			status, detail := fileStatus(f)
			_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\t%s\t%s\n", lang.Language, date, f.Target.Filename, status, detail)
		}
	}
	_ = tabWriter.Flush()

	t := report.Totals()
	_, _ = fmt.Fprintf(w, "\n%d downloaded, %d skipped, %d planned, %d files failed, %d languages failed\n",
		t.Downloaded, t.Skipped, t.Planned, t.FailedFiles, t.FailedLanguages)
}

func fileStatus(f orchestrator.FileOutcome) (string, string) {
	switch {
	case f.Err != nil:
		return "failed", f.Err.Error()
	case f.Planned:
		return "planned", f.Target.Path
	case f.HookErr != nil:
		return f.Result.Status.String(), "hook: " + f.HookErr.Error()
	default:
		return f.Result.Status.String(), f.Target.Path
	}
}
