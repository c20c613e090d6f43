package site

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/govuk-jekyll/internal/archive"
	"github.com/shinji-kodama/govuk-jekyll/internal/copier"
	"github.com/shinji-kodama/govuk-jekyll/internal/manifest"
	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// DefaultArchiveRoot is the top-level folder inside the upstream main.zip.
const DefaultArchiveRoot = "govuk-frontend-main"

// Options holds the inputs of one build. All paths should be absolute;
// the CLI resolves them once before calling Run.
type Options struct {
	// URL is the archive source passed to the Fetcher.
	URL string

	// ArchiveRoot is the folder inside the archive that holds dist/ and
	// packages/. Defaults to DefaultArchiveRoot.
	ArchiveRoot string

	// TemplatesDir holds the local stylesheets, _includes, _layouts and
	// _plugins folders.
	TemplatesDir string

	// OutputDir is the site folder to generate. Created if missing.
	OutputDir string

	// WorkDir is the parent of the temporary extraction folder.
	// Empty means os.TempDir().
	WorkDir string

	// Manifest lists the copy jobs. Nil means manifest.Default().
	Manifest *manifest.Manifest
}

// Report summarizes a completed build.
type Report struct {
	// Version is the frontend version read from the archive.
	Version string

	// Jobs is the number of copy jobs run.
	Jobs int

	// Stats totals the copier statistics over all jobs.
	Stats copier.Stats
}

// Builder runs site builds. Progress lines go to Out; diagnostics go to
// Logf.
type Builder struct {
	Fetcher archive.Fetcher
	Copier  *copier.Copier
	Out     io.Writer
	Logf    func(format string, args ...interface{})
}

// NewBuilder creates a Builder. A nil copier means a host-filesystem copier
// with the default decode mode; a nil out discards progress output.
func NewBuilder(fetcher archive.Fetcher, c *copier.Copier, out io.Writer) *Builder {
	if c == nil {
		c = copier.NewCopier(nil, model.DecodeIgnore)
	}
	if out == nil {
		out = io.Discard
	}
	return &Builder{
		Fetcher: fetcher,
		Copier:  c,
		Out:     out,
		Logf:    func(string, ...interface{}) {},
	}
}

// Run performs one build. The temporary work folder is removed before Run
// returns, whether or not the build succeeded. Errors are *model.CLIError
// values whose code names the failing stage.
func (b *Builder) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.OutputDir == "" {
		return nil, model.NewCLIError(model.ExitGeneralError, "output folder must not be empty")
	}
	if b.Fetcher == nil {
		return nil, model.NewCLIError(model.ExitGeneralError, "no archive fetcher configured")
	}
	if opts.ArchiveRoot == "" {
		opts.ArchiveRoot = DefaultArchiveRoot
	}
	if opts.URL == "" {
		opts.URL = archive.DefaultURL
	}
	m := opts.Manifest
	if m == nil {
		m = manifest.Default()
	}
	logf := b.logf()

	// Step 1: Download the archive.
	b.progress("Downloading govuk-frontend archive...")
	logf("Fetching %s", opts.URL)
	data, err := b.Fetcher.Fetch(ctx, opts.URL)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDownloadFailed,
			"failed to download govuk-frontend archive", err)
	}
	logf("Downloaded %d bytes", len(data))

	// Step 2: Extract into a temporary work folder that never outlives Run.
	workDir, err := os.MkdirTemp(opts.WorkDir, "govuk-jekyll-*")
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			"failed to create work directory", err)
	}
	removed := false
	removeWork := func() error {
		if removed {
			return nil
		}
		removed = true
		logf("Removing %s", workDir)
		return os.RemoveAll(workDir)
	}
	defer func() { _ = removeWork() }()

	extracted, err := archive.Extract(data, workDir)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitArchiveInvalid,
			"failed to extract govuk-frontend archive", err)
	}
	logf("Extracted %d entries (%d bytes) into %s", len(extracted.Files), extracted.Size, workDir)

	// Step 3: Read the frontend version.
	root := filepath.Join(workDir, opts.ArchiveRoot)
	version, err := archive.ReadVersion(filepath.Join(root, archive.VersionFile))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitArchiveInvalid,
			fmt.Sprintf("failed to read frontend version from %s", opts.ArchiveRoot), err)
	}
	b.progress("Version obtained: " + version)

	// Step 4: Resolve jobs and create the site layout.
	jobs, err := m.Resolve(manifest.Roots{
		Archive:   root,
		Templates: opts.TemplatesDir,
		Output:    opts.OutputDir,
	}, map[string]string{"version": version})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitManifestInvalid, "failed to resolve copy jobs", err)
	}

	dirs, err := Scaffold(opts.OutputDir, m.Destinations()...)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitCopyFailed, "failed to create site layout", err)
	}
	logf("Created %d layout folders under %s", len(dirs), opts.OutputDir)

	// Step 5: Run each copy job in declared order.
	b.progress("Copying files...")
	report := &Report{Version: version}
	for i := range jobs {
		job := jobs[i]
		if err := ctx.Err(); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "build cancelled", err)
		}

		logf("Running %s", job.String())
		stats, err := b.Copier.Run(job)
		report.Stats.Add(stats)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitCopyFailed,
				fmt.Sprintf("failed to copy %s files", job.Name), err)
		}
		report.Jobs++
		logf("Job %s: %d files, %d renamed, %d bytes", job.Name, stats.Files, stats.Renamed, stats.Bytes)
	}

	// Step 6: Clean up before reporting success.
	if err := removeWork(); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			"failed to remove work directory", err)
	}
	b.progress("Done.")
	return report, nil
}

func (b *Builder) progress(line string) {
	if b.Out == nil {
		return
	}
	_, _ = fmt.Fprintln(b.Out, line)
}

func (b *Builder) logf() func(string, ...interface{}) {
	if b.Logf == nil {
		return func(string, ...interface{}) {}
	}
	return b.Logf
}
