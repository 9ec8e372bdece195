//go:generate mockgen -destination=./mocks/orchestrator.go . Resolver,URLBuilder,Fetcher,ScriptRunner

package orchestrator

import (
	"context"
	"net/url"

	"github.com/cperrin88/wikidumps/pkg/download"
	"github.com/cperrin88/wikidumps/pkg/dumpdate"
	"github.com/cperrin88/wikidumps/pkg/hooks"
)

// Resolver finds the most recent dump date of a language.
type Resolver interface {
	Latest(ctx context.Context, language string) (dumpdate.Date, error)
}

// URLBuilder is the subset of dumpurl.Builder used by the orchestrator.
type URLBuilder interface {
	FileURL(language string, date dumpdate.Date, filename, filetype string) (*url.URL, error)
}

// Fetcher downloads one file to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, localPath string) (download.Result, error)
}

// ScriptRunner runs user hook scripts.
type ScriptRunner interface {
	Run(ctx context.Context, hookType hooks.HookType, hc hooks.HookContext) error
}

// Event phases.
const (
	PhaseResolving   = "resolving"
	PhaseResolved    = "resolved"
	PhasePlanned     = "planned"
	PhaseDownloading = "downloading"
	PhaseSkipped     = "skipped"
	PhaseDownloaded  = "downloaded"
	PhaseFailed      = "failed"
	PhaseHook        = "hook"
	PhaseDone        = "done"
)

// Event represents a simple progress notification.
type Event struct {
	Phase    string
	Language string // empty for run-wide events
	File     string // filename key, empty for language-wide events
	Msg      string
	Err      error
}

// Hooks carries callbacks for progress events. OnEvent is never called
// concurrently.
type Hooks struct {
	OnEvent func(Event)
}

// FileSpec is one enabled dump file.
type FileSpec struct {
	Name string // filename key, e.g. "pages-articles"
	Type string // filetype, e.g. "xml.bz2"
}

// Options control orchestrator execution.
type Options struct {
	Languages   []string
	Files       []FileSpec
	Concurrency int // languages processed at once; if <=0, 1
	DryRun      bool
}

// Target is one file to download in this run.
type Target struct {
	Language string
	Filename string
	Filetype string
	Date     dumpdate.Date
	URL      *url.URL
	Path     string
}

// LanguageState is how far the processing of a language got.
type LanguageState int

// Language states, in order.
const (
	Pending LanguageState = iota
	DateResolved
	DirectoryReady
	Done
)

func (s LanguageState) String() string {
	switch s {
	case DateResolved:
		return "date-resolved"
	case DirectoryReady:
		return "directory-ready"
	case Done:
		return "done"
	default:
		return "pending"
	}
}

// FileOutcome records what happened to one target.
type FileOutcome struct {
	Target  Target
	Result  download.Result
	Planned bool // dry run, nothing fetched
	Err     error
	HookErr error
}

// LanguageOutcome records what happened to one language. Err is set when the
// language failed before its files were processed.
type LanguageOutcome struct {
	Language string
	Date     dumpdate.Date
	State    LanguageState
	Files    []FileOutcome
	Err      error
	HookErr  error
}

// Report is the result of DownloadAll, one entry per language in
// lexicographic order.
type Report struct {
	Languages []LanguageOutcome
}

// Totals summarizes a Report.
type Totals struct {
	Downloaded      int
	Skipped         int
	Planned         int
	FailedFiles     int
	FailedLanguages int
}

// Totals counts the outcomes in r.
func (r *Report) Totals() Totals {
	var t Totals
	for _, lang := range r.Languages {
		if lang.Err != nil {
			t.FailedLanguages++
		}
		for _, f := range lang.Files {
			switch {
			case f.Err != nil:
				t.FailedFiles++
			case f.Planned:
				t.Planned++
			case f.Result.Status == download.Skipped:
				t.Skipped++
			case f.Result.Status == download.Downloaded:
				t.Downloaded++
			}
		}
	}
	return t
}
