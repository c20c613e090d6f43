// Package cli implements the cobra-based command line for govuk-jekyll.
//
// This file defines the root command, the global flags and the error to
// exit code mapping. The build itself is wired up in build.go.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// Global flag variables. They are bound to persistent flags on the root
// command each time NewRootCommand is called.
var (
	// jsonOutput switches error and --dry-run output to JSON.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, every copied file and build stage is reported on stderr.
	verbose bool
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Usage lines printed when no output folder is given.
const (
	usageSummary = "Generates a Jekyll-compatible template from the GOV.UK Design System frontend."
	usageLine    = "Usage: govuk-jekyll outputFolder"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command is the build: it takes the output folder as its only
// positional argument. Without one it prints a two-line usage summary and
// exits successfully.
func NewRootCommand() *cobra.Command {
	flags := newBuildFlags()

	rootCmd := &cobra.Command{
		Use:   "govuk-jekyll <outputFolder>",
		Short: "Generate a Jekyll site template from GOV.UK Frontend",
		Long: `govuk-jekyll downloads the GOV.UK Frontend archive, reads its version and
assembles a Jekyll site layout from the frontend's Sass, JavaScript and
static assets together with the local stylesheets, _includes, _layouts and
_plugins folders.

Examples:
  govuk-jekyll ./site
  govuk-jekyll --templates ./theme ./site
  govuk-jekyll --manifest jobs.yaml --dry-run ./site
  govuk-jekyll --url ./main.zip --decode strict ./site`,

		Args: cobra.MaximumNArgs(1),

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, usageSummary)
				_, _ = fmt.Fprintln(out, usageLine)
				return nil
			}
			return runBuild(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output errors and --dry-run jobs in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	flags.register(rootCmd)

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// An interrupt cancels the command's context, which aborts the download
// or stops before the next copy job. CLIError types carry their own exit
// codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		// Generic error — exit with code 1.
		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout carries the
		// progress lines and --dry-run output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		// Text format: "Error: <message>" on stderr.
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
// The builder and copier receive it as their Logf.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}
