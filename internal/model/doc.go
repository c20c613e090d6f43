// Package model defines the domain types and value objects for the
// govuk-jekyll CLI.
//
// This package contains pure data structures with no external dependencies:
// copy-job descriptors (CopyJob), ordered literal substitutions
// (Substitutions), extension filters (ExtensionSet) and decode modes
// (DecodeMode).
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
