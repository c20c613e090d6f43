package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/govuk-jekyll/internal/archive"
	"github.com/shinji-kodama/govuk-jekyll/internal/copier"
	"github.com/shinji-kodama/govuk-jekyll/internal/manifest"
	"github.com/shinji-kodama/govuk-jekyll/internal/model"
	"github.com/shinji-kodama/govuk-jekyll/internal/site"
)

// newFetcher creates the archive fetcher used by builds. Tests replace it
// to avoid network access.
var newFetcher = func() archive.Fetcher {
	return archive.NewGetterFetcher()
}

// dryRunArchiveRoot stands in for the temporary extraction folder when
// jobs are printed without downloading anything.
const dryRunArchiveRoot = "$WORK"

// buildFlags holds the flag values for the build.
type buildFlags struct {
	url          string // --url: archive source
	archiveRoot  string // --archive-root: top-level folder inside the archive
	templates    string // --templates: folder holding the local template folders
	manifestPath string // --manifest: job manifest file (JSON, JSONC or YAML)
	decode       string // --decode: ignore, replace or strict
	workDir      string // --work-dir: parent of the temporary extraction folder
	dryRun       bool   // --dry-run: print resolved jobs and exit
}

func newBuildFlags() *buildFlags {
	return &buildFlags{}
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", archive.DefaultURL, "GOV.UK Frontend archive URL or local path")
	cmd.Flags().StringVar(&f.archiveRoot, "archive-root", site.DefaultArchiveRoot, "Top-level folder inside the archive")
	cmd.Flags().StringVar(&f.templates, "templates", ".", "Folder containing stylesheets, _includes, _layouts and _plugins")
	cmd.Flags().StringVar(&f.manifestPath, "manifest", "", "Copy job manifest (.json, .jsonc, .yaml, .yml); default is the built-in job list")
	cmd.Flags().StringVar(&f.decode, "decode", string(model.DecodeIgnore), "How to decode files before substitution: ignore, replace or strict")
	cmd.Flags().StringVar(&f.workDir, "work-dir", "", "Parent folder for the temporary extraction (default: system temp)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print the resolved copy jobs without downloading or copying")
}

// runBuild executes the build workflow for one output folder.
//
// Steps:
//  1. Parse the decode mode and resolve paths to absolute form
//  2. Load the job manifest (built-in unless --manifest is given)
//  3. Print the resolved jobs and stop if --dry-run is set
//  4. Run the site builder
func runBuild(ctx context.Context, out io.Writer, outputFolder string, flags *buildFlags) error {
	// Step 1: Validate flags and pin every path once.
	mode, err := model.ParseDecodeMode(flags.decode)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --decode value", err)
	}

	outputDir, err := filepath.Abs(outputFolder)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to resolve output folder", err)
	}
	templatesDir, err := filepath.Abs(flags.templates)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to resolve templates folder", err)
	}
	VerboseLog("Output folder: %s", outputDir)
	VerboseLog("Templates folder: %s", templatesDir)

	// Step 2: Load the manifest.
	m, err := loadManifest(flags.manifestPath)
	if err != nil {
		return err
	}
	VerboseLog("Loaded %d copy jobs", len(m.Jobs))

	// Step 3: Dry run.
	if flags.dryRun {
		return printJobs(out, m, manifest.Roots{
			Archive:   filepath.Join(dryRunArchiveRoot, flags.archiveRoot),
			Templates: templatesDir,
			Output:    outputDir,
		})
	}

	// Step 4: Build.
	c := copier.NewCopier(nil, mode)
	if verbose {
		c.SetLogger(VerboseLog)
	}
	b := site.NewBuilder(newFetcher(), c, out)
	b.Logf = VerboseLog

	report, err := b.Run(ctx, site.Options{
		URL:          flags.url,
		ArchiveRoot:  flags.archiveRoot,
		TemplatesDir: templatesDir,
		OutputDir:    outputDir,
		WorkDir:      flags.workDir,
		Manifest:     m,
	})
	if err != nil {
		return err
	}
	VerboseLog("Built govuk-frontend %s: %d jobs, %d files (%d renamed), %d bytes",
		report.Version, report.Jobs, report.Stats.Files, report.Stats.Renamed, report.Stats.Bytes)
	return nil
}

// loadManifest returns the built-in manifest for an empty path, otherwise
// the parsed file. Every failure carries ExitManifestInvalid.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.Default(), nil
	}

	m, err := manifest.Load(path)
	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return nil, cliErr
		}
		return nil, model.WrapCLIError(model.ExitManifestInvalid, "invalid manifest", err)
	}
	return m, nil
}

// printJobs writes the resolved jobs as YAML, or JSON with --json.
// The ${version} placeholder is left unexpanded since nothing is downloaded.
func printJobs(out io.Writer, m *manifest.Manifest, roots manifest.Roots) error {
	jobs, err := m.Resolve(roots, nil)
	if err != nil {
		return model.WrapCLIError(model.ExitManifestInvalid, "failed to resolve copy jobs", err)
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(struct {
			Jobs []model.CopyJob `json:"jobs"`
		}{Jobs: jobs}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal jobs: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	data, err := manifest.MarshalJobs(jobs)
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	_, err = out.Write(data)
	return err
}
