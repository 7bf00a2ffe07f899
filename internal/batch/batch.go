// Package batch rewrites every matching file under an input directory.
//
// A run collects files by extension, validates the header fragment for each
// format in use, backs the directory up and then processes the files one at
// a time. Header and backup failures abort the run before any file is
// touched. Per-file failures are logged and collected in the Report; the run
// continues unless FailFast is set.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"headswap/internal/backup"
	"headswap/internal/cache"
	"headswap/internal/config"
	"headswap/internal/header"
	"headswap/internal/hserrors"
	"headswap/internal/markup"
	"headswap/pkg/selector"
	"headswap/pkg/tree"
)

// Outcome is what happened to a single file.
type Outcome int

const (
	Rewritten Outcome = iota
	Unchanged
	NoMatch
	Cached
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Rewritten:
		return "rewritten"
	case Unchanged:
		return "unchanged"
	case NoMatch:
		return "no_match"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// FileError is a failure confined to one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Report summarises a run.
type Report struct {
	BackupDir string
	DryRun    bool
	Files     int
	Outcomes  map[Outcome]int
	Failures  []*FileError
}

// Count returns the number of files with outcome o.
func (r *Report) Count(o Outcome) int {
	return r.Outcomes[o]
}

func (r *Report) record(o Outcome) {
	r.Outcomes[o]++
}

type Runner struct {
	cfg    *config.Config
	sel    selector.Selector
	format markup.Format
	cache  *cache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

type Option func(*Runner)

// WithCache enables skipping files recorded as already rewritten.
func WithCache(c *cache.Cache) Option {
	return func(r *Runner) {
		r.cache = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &hserrors.ConfigError{Message: "invalid configuration", Cause: err}
	}

	r := &Runner{
		cfg:    cfg,
		sel:    cfg.ParsedSelector(),
		format: cfg.ParsedFormat(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ruleset is the replacement and cache fingerprint for one format.
type ruleset struct {
	replacement tree.Node
	fingerprint string
}

func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{DryRun: r.cfg.DryRun, Outcomes: make(map[Outcome]int)}

	files, err := r.collect()
	if err != nil {
		return report, err
	}
	report.Files = len(files)

	rules, err := r.loadRules(files)
	if err != nil {
		return report, err
	}

	if len(files) == 0 {
		r.logger.Warn().Str("dir", r.cfg.InputDir).Strs("extensions", r.cfg.Extensions).Msg("No matching files found")
		return report, nil
	}

	if r.cfg.DryRun {
		r.logger.Info().Msg("Dry run, skipping backup")
	} else {
		dir, err := backup.Create(r.cfg.InputDir, r.cfg.BackupDir, r.now())
		if err != nil {
			return report, fmt.Errorf("failed to back up input directory: %w", err)
		}
		report.BackupDir = dir
		r.logger.Info().Str("backup", dir).Msg("Created backup")
	}

	var errs []error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, errors.Join(append(errs, err)...)
		}

		outcome, err := r.processFile(ctx, path, rules[markup.FormatFor(path, r.format)])
		report.record(outcome)
		if err != nil {
			fe := &FileError{Path: path, Err: err}
			report.Failures = append(report.Failures, fe)
			errs = append(errs, fe)
			r.logger.Error().Err(err).Str("path", path).Msg("Failed to process file")
			if r.cfg.FailFast {
				break
			}
		}
	}

	return report, errors.Join(errs...)
}

// collect walks the input directory and returns regular files with a
// configured extension, in lexical order.
func (r *Runner) collect() ([]string, error) {
	var files []string
	err := filepath.WalkDir(r.cfg.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			r.logger.Debug().Str("dir", path).Msg("Entering directory")
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !r.cfg.MatchesExtension(path) {
			r.logger.Debug().Str("path", path).Msg("Skipping file with unlisted extension")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &hserrors.IOError{Op: "scan", Path: r.cfg.InputDir, Cause: err}
	}
	return files, nil
}

// loadRules reads the header once and parses it for every format the files
// need. With no files it still validates the header for the default format.
func (r *Runner) loadRules(files []string) (map[markup.Format]ruleset, error) {
	data, err := header.Read(r.cfg.HeaderFile)
	if err != nil {
		return nil, err
	}

	formats := make(map[markup.Format]bool)
	for _, path := range files {
		formats[markup.FormatFor(path, r.format)] = true
	}
	if len(formats) == 0 {
		formats[markup.FormatFor(r.cfg.HeaderFile, r.format)] = true
	}

	rules := make(map[markup.Format]ruleset, len(formats))
	for f := range formats {
		el, err := header.Parse(data, f, r.sel)
		if err != nil {
			return nil, fmt.Errorf("header %s (%s): %w", r.cfg.HeaderFile, f, err)
		}
		rules[f] = ruleset{
			replacement: el,
			fingerprint: cache.Ruleset(data, r.sel.String(), f.String()),
		}
		r.logger.Debug().Str("format", f.String()).Int("children", len(el.Children)).Msg("Loaded header")
	}
	return rules, nil
}

func (r *Runner) processFile(ctx context.Context, path string, rs ruleset) (Outcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Failed, &hserrors.IOError{Op: "stat", Path: path, Cause: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Failed, &hserrors.IOError{Op: "read", Path: path, Cause: err}
	}

	if r.cache != nil {
		upToDate, err := r.cache.UpToDate(ctx, rs.fingerprint, path, data)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("Cache lookup failed")
		} else if upToDate {
			r.logger.Debug().Str("path", path).Msg("Already rewritten, skipping")
			return Cached, nil
		}
	}

	f := markup.FormatFor(path, r.format)
	out, matches, err := Transform(data, f, r.sel, rs.replacement)
	if err != nil {
		return Failed, withPath(err, path)
	}

	if matches == 0 {
		r.logger.Warn().Str("path", path).Str("selector", r.sel.String()).Msg("No element matched selector")
		return NoMatch, nil
	}

	outcome := Rewritten
	if bytes.Equal(out, data) {
		outcome = Unchanged
	}

	if r.cfg.DryRun {
		r.logger.Info().Str("path", path).Int("matches", matches).Str("outcome", outcome.String()).Msg("Would rewrite file")
		return outcome, nil
	}

	if outcome == Rewritten {
		if err := writeFile(path, out, info.Mode().Perm()); err != nil {
			return Failed, err
		}
		r.logger.Info().Str("path", path).Int("matches", matches).Msg("Rewrote file")
	} else {
		r.logger.Debug().Str("path", path).Msg("File already up to date")
	}

	if r.cache != nil {
		if err := r.cache.Remember(ctx, rs.fingerprint, path, out); err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("Failed to update cache")
		}
	}

	return outcome, nil
}

// writeFile replaces path atomically with data, keeping perm.
func writeFile(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".headswap-*")
	if err != nil {
		return &hserrors.IOError{Op: "write", Path: path, Cause: err}
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &hserrors.IOError{Op: "write", Path: path, Cause: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &hserrors.IOError{Op: "write", Path: path, Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &hserrors.IOError{Op: "write", Path: path, Cause: err}
	}
	return nil
}
