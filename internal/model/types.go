package model

import (
	"fmt"
	"strings"
)

// Substitution is a single literal find/replace pair. Both strings are
// matched and inserted verbatim; there is no pattern syntax.
type Substitution struct {
	// Find is the literal text to search for. Must not be empty.
	Find string `json:"find" yaml:"find"`

	// Replace is the literal text inserted in place of every occurrence
	// of Find.
	Replace string `json:"replace" yaml:"replace"`
}

// Substitutions is an ordered list of literal find/replace pairs.
// Order matters: each pair is applied to the result of the previous one,
// both for file contents and for destination paths.
//
// A nil Substitutions is valid and means "copy verbatim".
type Substitutions []Substitution

// Apply replaces every non-overlapping occurrence of each Find with its
// Replace, pair by pair in list order, and returns the result.
func (s Substitutions) Apply(text string) string {
	for _, sub := range s {
		if sub.Find == "" {
			continue
		}
		text = strings.ReplaceAll(text, sub.Find, sub.Replace)
	}
	return text
}

// IsEmpty reports whether the list contains no pairs.
func (s Substitutions) IsEmpty() bool {
	return len(s) == 0
}

// Clone returns an independent copy of the list so callers never share
// one backing array between jobs.
func (s Substitutions) Clone() Substitutions {
	if s == nil {
		return nil
	}
	out := make(Substitutions, len(s))
	copy(out, s)
	return out
}

// Validate checks that no pair has an empty Find string.
func (s Substitutions) Validate() error {
	for i, sub := range s {
		if sub.Find == "" {
			return fmt.Errorf("substitution %d: find must not be empty", i)
		}
	}
	return nil
}

// DecodeMode selects how a copied file is decoded as UTF-8 text before
// content substitution.
type DecodeMode string

const (
	// DecodeIgnore drops byte sequences that are not valid UTF-8.
	// Never fails. This is the default.
	DecodeIgnore DecodeMode = "ignore"

	// DecodeReplace substitutes U+FFFD for each invalid sequence.
	// Never fails.
	DecodeReplace DecodeMode = "replace"

	// DecodeStrict rejects files that are not valid UTF-8.
	DecodeStrict DecodeMode = "strict"
)

// String returns the string representation of DecodeMode.
func (m DecodeMode) String() string {
	return string(m)
}

// IsValid checks whether the DecodeMode value is one of the predefined modes.
func (m DecodeMode) IsValid() bool {
	switch m {
	case DecodeIgnore, DecodeReplace, DecodeStrict:
		return true
	default:
		return false
	}
}

// ParseDecodeMode converts a string to a DecodeMode.
// An empty string yields DecodeIgnore.
func ParseDecodeMode(s string) (DecodeMode, error) {
	if s == "" {
		return DecodeIgnore, nil
	}
	mode := DecodeMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid decode mode: %q (valid: ignore, replace, strict)", s)
	}
	return mode, nil
}

// ExtensionSet is the allow-list of lowercase file extensions (without the
// leading ".") that a copy pass includes.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds an ExtensionSet, lowercasing and trimming a leading
// "." from every entry. Empty entries are ignored.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return set
}

// Contains reports whether ext is a member of the set. ext is compared as-is,
// callers pass an already-lowercased extension.
func (s ExtensionSet) Contains(ext string) bool {
	_, ok := s[ext]
	return ok
}

// ExtensionOf returns the lowercased text after the last "." in name.
// A name with no "." yields the whole lowercased name, so "Makefile" has
// the extension "makefile".
func ExtensionOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return strings.ToLower(name)
}

// CopyJob describes one pass of the selective tree copier. Paths are
// absolute once a manifest has been resolved.
type CopyJob struct {
	// Name identifies the job in logs and error messages.
	Name string `json:"name" yaml:"name"`

	// Source is the directory tree to read from.
	Source string `json:"source" yaml:"source"`

	// Destination is the directory the filtered tree is mirrored into.
	// It need not exist.
	Destination string `json:"destination" yaml:"destination"`

	// Extensions is the allow-list of lowercase extensions.
	Extensions []string `json:"extensions" yaml:"extensions"`

	// Exclude lists doublestar globs, matched against the slash-separated
	// path relative to Source. Matching files are skipped.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// Substitutions applies to both file contents and destination paths.
	Substitutions Substitutions `json:"substitutions,omitempty" yaml:"substitutions,omitempty"`
}

// ExtensionSet returns the job's extensions as a lookup set.
func (j *CopyJob) ExtensionSet() ExtensionSet {
	return NewExtensionSet(j.Extensions...)
}

// Validate checks the fields every copy pass needs.
func (j *CopyJob) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("copy job: name must not be empty")
	}
	if j.Source == "" {
		return fmt.Errorf("copy job %q: source must not be empty", j.Name)
	}
	if j.Destination == "" {
		return fmt.Errorf("copy job %q: destination must not be empty", j.Name)
	}
	if len(j.ExtensionSet()) == 0 {
		return fmt.Errorf("copy job %q: at least one extension is required", j.Name)
	}
	if err := j.Substitutions.Validate(); err != nil {
		return fmt.Errorf("copy job %q: %w", j.Name, err)
	}
	return nil
}

// String returns a one-line summary of the job for verbose output.
// Format: "name: source -> destination [ext,ext]"
func (j *CopyJob) String() string {
	return fmt.Sprintf("%s: %s -> %s [%s]", j.Name, j.Source, j.Destination, strings.Join(j.Extensions, ","))
}

// ExitCode defines the CLI exit codes. Scripts driving the build can branch
// on these to tell a network problem from a bad manifest.
type ExitCode int

const (
	// ExitSuccess indicates the build completed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDownloadFailed indicates the frontend archive could not be fetched.
	ExitDownloadFailed ExitCode = 2

	// ExitArchiveInvalid indicates the archive could not be extracted or
	// lacks the expected version file.
	ExitArchiveInvalid ExitCode = 3

	// ExitCopyFailed indicates a copy job failed part-way.
	ExitCopyFailed ExitCode = 4

	// ExitManifestInvalid indicates the job manifest could not be loaded
	// or failed validation.
	ExitManifestInvalid ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
