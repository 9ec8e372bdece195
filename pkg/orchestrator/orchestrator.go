package orchestrator

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/cperrin88/wikidumps/pkg/download"
	"github.com/cperrin88/wikidumps/pkg/dumpdate"
	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Orchestrator ties the resolver, URL builder and fetcher together for a
// download run over several languages.
type Orchestrator struct {
	Resolver Resolver
	Builder  URLBuilder
	Fetcher  Fetcher
	Scripts  ScriptRunner // optional
	FS       afero.Fs     // defaults to the OS filesystem
	Hooks    Hooks        // Hooks for progress and event notifications

	emitMu sync.Mutex
}

// New constructs an Orchestrator. Helper for wiring.
// Scripts can be nil if no hook scripts are configured.
func New(resolver Resolver, builder URLBuilder, fetcher Fetcher, scripts ScriptRunner, fsys afero.Fs, h Hooks) *Orchestrator {
	return &Orchestrator{
		Resolver: resolver,
		Builder:  builder,
		Fetcher:  fetcher,
		Scripts:  scripts,
		FS:       fsys,
		Hooks:    h,
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.Hooks.OnEvent == nil {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	o.Hooks.OnEvent(e)
}

func (o *Orchestrator) fs() afero.Fs {
	if o.FS == nil {
		return afero.NewOsFs()
	}
	return o.FS
}

// run holds the state shared by the languages of one DownloadAll call.
type run struct {
	o    *Orchestrator
	fs   afero.Fs
	root string
	opts Options

	mu      sync.Mutex
	claimed map[string]string
}

// DownloadAll downloads every enabled file of every enabled language below
// root, laid out as root/<language>/<YYYYMMDD>/<file name>.
//
// Failures of a single language or file are recorded in the Report and do
// not stop the run. A template error or a canceled context ends the run and
// is returned together with the partial Report.
func (o *Orchestrator) DownloadAll(ctx context.Context, root string, opts Options) (*Report, error) {
	if o.Resolver == nil || o.Builder == nil || o.Fetcher == nil {
		return nil, fmt.Errorf("orchestrator is not fully configured")
	}

	fsys := o.fs()
	ok, err := fsutil.IsDir(fsys, root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect %s", root)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrMissingDirectory, root)
	}

	languages := slices.Clone(opts.Languages)
	slices.Sort(languages)
	languages = slices.Compact(languages)

	r := &run{o: o, fs: fsys, root: root, opts: opts, claimed: make(map[string]string)}
	report := &Report{Languages: make([]LanguageOutcome, len(languages))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Concurrency))
	for i, lang := range languages {
		g.Go(func() error {
			out, err := r.language(gctx, lang)
			report.Languages[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		return report, err
	}

	t := report.Totals()
	o.emit(Event{Phase: PhaseDone, Msg: fmt.Sprintf("%d downloaded, %d skipped, %d planned, %d files failed, %d languages failed",
		t.Downloaded, t.Skipped, t.Planned, t.FailedFiles, t.FailedLanguages)})
	return report, nil
}

// fatal reports whether err must end the whole run.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, errors.ErrTemplate)
}

func (r *run) language(ctx context.Context, lang string) (LanguageOutcome, error) {
	out := LanguageOutcome{Language: lang, State: Pending}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out, err
	}

	r.o.emit(Event{Phase: PhaseResolving, Language: lang})
	date, err := r.o.Resolver.Latest(ctx, lang)
	if err != nil {
		out.Err = err
		if fatal(ctx, err) {
			return out, err
		}
		return r.finishLanguage(ctx, out), nil
	}
	out.Date = date
	out.State = DateResolved
	r.o.emit(Event{Phase: PhaseResolved, Language: lang, Msg: date.String()})

	dir := filepath.Join(r.root, lang, date.String())
	if !r.opts.DryRun {
		if err := fsutil.EnsureDir(r.fs, dir); err != nil {
			out.Err = err
			return r.finishLanguage(ctx, out), nil
		}
	}
	out.State = DirectoryReady

	for _, spec := range r.opts.Files {
		fo, err := r.file(ctx, lang, date, dir, spec)
		out.Files = append(out.Files, fo)
		if err != nil {
			return out, err
		}
	}
	return r.finishLanguage(ctx, out), nil
}

// finishLanguage moves out to Done, reports it and runs the post-language hook.
func (r *run) finishLanguage(ctx context.Context, out LanguageOutcome) LanguageOutcome {
	out.State = Done
	status := "done"
	if out.Err != nil {
		status = "failed"
		r.o.emit(Event{Phase: PhaseFailed, Language: out.Language, Err: out.Err})
	} else {
		r.o.emit(Event{Phase: PhaseDone, Language: out.Language, Msg: out.Date.String()})
	}

	if r.o.Scripts != nil && !r.opts.DryRun {
		hc := hooks.HookContext{Language: out.Language, Status: status}
		if !out.Date.IsZero() {
			hc.Date = out.Date.String()
		}
		if err := r.o.Scripts.Run(ctx, hooks.PostLanguage, hc); err != nil {
			out.HookErr = err
			r.o.emit(Event{Phase: PhaseHook, Language: out.Language, Msg: string(hooks.PostLanguage), Err: err})
		}
	}
	return out
}

func (r *run) file(ctx context.Context, lang string, date dumpdate.Date, dir string, spec FileSpec) (FileOutcome, error) {
	fo := FileOutcome{Target: Target{Language: lang, Filename: spec.Name, Filetype: spec.Type, Date: date}}

	u, err := r.o.Builder.FileURL(lang, date, spec.Name, spec.Type)
	if err != nil {
		fo.Err = err
		if fatal(ctx, err) {
			return fo, err
		}
		r.o.emit(Event{Phase: PhaseFailed, Language: lang, File: spec.Name, Err: err})
		return fo, nil
	}
	fo.Target.URL = u
	fo.Target.Path = filepath.Join(dir, path.Base(u.Path))

	if owner, ok := r.claim(fo.Target.Path, u.String()); !ok {
		fo.Err = fmt.Errorf("%w: %s is already written from %s", errors.ErrDuplicateTarget, fo.Target.Path, owner)
		r.o.emit(Event{Phase: PhaseFailed, Language: lang, File: spec.Name, Err: fo.Err})
		return fo, nil
	}

	if r.opts.DryRun {
		fo.Planned = true
		r.o.emit(Event{Phase: PhasePlanned, Language: lang, File: spec.Name, Msg: u.String() + " -> " + fo.Target.Path})
		return fo, nil
	}

	r.o.emit(Event{Phase: PhaseDownloading, Language: lang, File: spec.Name, Msg: u.String()})
	res, err := r.o.Fetcher.Fetch(ctx, u.String(), fo.Target.Path)
	fo.Result = res
	if err != nil {
		fo.Err = err
		if ctx.Err() != nil {
			return fo, ctx.Err()
		}
		r.o.emit(Event{Phase: PhaseFailed, Language: lang, File: spec.Name, Err: err})
		return fo, nil
	}

	switch res.Status {
	case download.Skipped:
		r.o.emit(Event{Phase: PhaseSkipped, Language: lang, File: spec.Name, Msg: fo.Target.Path})
	case download.Downloaded:
		r.o.emit(Event{Phase: PhaseDownloaded, Language: lang, File: spec.Name,
			Msg: fo.Target.Path + " (" + strconv.FormatInt(res.Bytes, 10) + " bytes)"})
		fo.HookErr = r.postDownload(ctx, fo)
	}
	return fo, nil
}

func (r *run) postDownload(ctx context.Context, fo FileOutcome) error {
	if r.o.Scripts == nil {
		return nil
	}
	t := fo.Target
	err := r.o.Scripts.Run(ctx, hooks.PostDownload, hooks.HookContext{
		Language: t.Language,
		Date:     t.Date.String(),
		Filename: t.Filename,
		Path:     t.Path,
		URL:      t.URL.String(),
		Status:   fo.Result.Status.String(),
		Bytes:    fo.Result.Bytes,
	})
	if err != nil {
		r.o.emit(Event{Phase: PhaseHook, Language: t.Language, File: t.Filename, Msg: string(hooks.PostDownload), Err: err})
	}
	return err
}

// claim reserves localPath for rawURL. Only the first claim of a path wins;
// later ones get the URL that holds it.
func (r *run) claim(localPath, rawURL string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.claimed[localPath]; taken {
		return owner, false
	}
	r.claimed[localPath] = rawURL
	return rawURL, true
}
