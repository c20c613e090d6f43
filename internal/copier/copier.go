package copier

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// dirPerm is the mode used for destination directories created on demand.
const dirPerm os.FileMode = 0o755

// Stats summarizes the effect of one copy pass.
type Stats struct {
	// Files is the number of files materialized under the destination.
	Files int

	// Renamed is the number of destination files whose path was rewritten
	// by a substitution.
	Renamed int

	// Bytes is the total number of bytes written, after substitution.
	Bytes int64
}

// Add folds another pass's counters into s.
func (s *Stats) Add(other Stats) {
	s.Files += other.Files
	s.Renamed += other.Renamed
	s.Bytes += other.Bytes
}

// Copier produces filtered, substituted copies of directory trees.
//
// It holds no state between calls apart from its configuration, so one
// Copier can run any number of jobs in sequence.
type Copier struct {
	fs     billy.Filesystem
	decode model.DecodeMode
	logf   func(format string, args ...interface{})
}

// NewCopier creates a Copier that reads and writes through fs.
// A nil fs means the host filesystem rooted at "/", so absolute paths are
// used as-is.
// An empty or invalid mode falls back to model.DecodeIgnore.
func NewCopier(fs billy.Filesystem, mode model.DecodeMode) *Copier {
	if fs == nil {
		fs = osfs.New("/")
	}
	if !mode.IsValid() {
		mode = model.DecodeIgnore
	}
	return &Copier{
		fs:     fs,
		decode: mode,
		logf:   func(string, ...interface{}) {},
	}
}

// SetLogger installs a printf-style function that receives one line per
// copied or renamed file. Passing nil silences the copier again.
func (c *Copier) SetLogger(logf func(format string, args ...interface{})) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	c.logf = logf
}

// walkState carries the per-job settings through the recursion.
type walkState struct {
	extensions model.ExtensionSet
	exclude    []string
	subs       model.Substitutions
	root       string
	stats      Stats
}

// Run executes one copy job: it validates the job, then mirrors every
// qualifying file from job.Source into job.Destination.
func (c *Copier) Run(job model.CopyJob) (Stats, error) {
	if err := job.Validate(); err != nil {
		return Stats{}, err
	}
	for _, pattern := range job.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return Stats{}, fmt.Errorf("copy job %q: invalid exclude pattern %q", job.Name, pattern)
		}
	}

	st := &walkState{
		extensions: job.ExtensionSet(),
		exclude:    job.Exclude,
		subs:       job.Substitutions.Clone(),
		root:       job.Destination,
	}
	if err := c.copyDir(st, job.Source, job.Destination, ""); err != nil {
		return st.stats, fmt.Errorf("copy job %q: %w", job.Name, err)
	}
	return st.stats, nil
}

// CopyTree recursively copies every file under source whose lowercase
// extension is in extensions to the same relative path under destination,
// applying subs to the file contents and to the destination path.
//
// Destination directories are created only for branches that contain at
// least one qualifying file.
func (c *Copier) CopyTree(source, destination string, extensions model.ExtensionSet, subs model.Substitutions) error {
	st := &walkState{
		extensions: extensions,
		subs:       subs.Clone(),
		root:       destination,
	}
	return c.copyDir(st, source, destination, "")
}

// copyDir handles one directory level. rel is the slash-separated path of
// src relative to the job's source root, used for exclude matching.
func (c *Copier) copyDir(st *walkState, src, dst, rel string) error {
	entries, err := c.fs.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", src, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		srcPath := c.fs.Join(src, name)
		dstPath := c.fs.Join(dst, name)
		relPath := path.Join(rel, name)

		isDir, err := c.isDir(srcPath, entry)
		if err != nil {
			return err
		}
		if isDir {
			if err := c.copyDir(st, srcPath, dstPath, relPath); err != nil {
				return err
			}
			continue
		}

		if !st.extensions.Contains(model.ExtensionOf(name)) || excluded(st.exclude, relPath) {
			continue
		}
		if err := c.copyMatch(st, srcPath, dst, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// isDir reports whether entry is a directory, following symbolic links the
// way a plain stat would.
func (c *Copier) isDir(p string, entry os.FileInfo) (bool, error) {
	if entry.Mode()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := c.fs.Stat(p)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return info.IsDir(), nil
}

// copyMatch materializes one qualifying file: ensure its directory, copy
// the bytes, substitute contents, then rename by substitution.
func (c *Copier) copyMatch(st *walkState, srcPath, dstDir, dstPath string) error {
	if err := c.fs.MkdirAll(dstDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dstDir, err)
	}

	written, err := c.copyFile(srcPath, dstPath)
	if err != nil {
		return err
	}

	if !st.subs.IsEmpty() {
		written, err = c.substituteContent(dstPath, st.subs)
		if err != nil {
			return err
		}
	}

	finalPath, err := c.renameBySubstitution(dstPath, st.subs)
	if err != nil {
		return err
	}
	if finalPath != dstPath {
		if err := c.pruneEmpty(filepath.Dir(dstPath), st.root); err != nil {
			return err
		}
	}

	st.stats.Files++
	st.stats.Bytes += written
	if finalPath != dstPath {
		st.stats.Renamed++
		c.logf("copied %s -> %s", srcPath, finalPath)
	} else {
		c.logf("copied %s", finalPath)
	}
	return nil
}

// copyFile streams src to dst, preserving the source file mode.
func (c *Copier) copyFile(src, dst string) (int64, error) {
	info, err := c.fs.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	srcFile, err := c.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := c.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = dstFile.Close()
		return n, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := dstFile.Close(); err != nil {
		return n, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return n, nil
}

// substituteContent rewrites the copied file in place with subs applied
// to its decoded text. Returns the new size in bytes.
func (c *Copier) substituteContent(p string, subs model.Substitutions) (int64, error) {
	info, err := c.fs.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", p, err)
	}

	raw, err := c.readFile(p)
	if err != nil {
		return 0, err
	}

	text, err := Decode(raw, c.decode)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", p, err)
	}

	out := []byte(subs.Apply(text))
	if err := util.WriteFile(c.fs, p, out, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", p, err)
	}
	return int64(len(out)), nil
}

// renameBySubstitution applies each pair to the file's full path in order.
// Each pair re-checks the path left by the previous rename. Returns the
// final path.
func (c *Copier) renameBySubstitution(p string, subs model.Substitutions) (string, error) {
	current := p
	for _, sub := range subs {
		if sub.Find == "" || !strings.Contains(current, sub.Find) {
			continue
		}
		next := strings.ReplaceAll(current, sub.Find, sub.Replace)
		if err := c.fs.MkdirAll(filepath.Dir(next), dirPerm); err != nil {
			return current, fmt.Errorf("failed to create directory for %s: %w", next, err)
		}
		if err := c.fs.Rename(current, next); err != nil {
			return current, fmt.Errorf("failed to rename %s to %s: %w", current, next, err)
		}
		current = next
	}
	return current, nil
}

// pruneEmpty removes dir and its ancestors while they are empty, stopping
// below root. A rename that rewrote a directory component leaves the old
// directory behind otherwise.
func (c *Copier) pruneEmpty(dir, root string) error {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		entries, err := c.fs.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := c.fs.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove empty directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Copier) readFile(p string) ([]byte, error) {
	f, err := c.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// excluded reports whether rel matches any of the doublestar patterns.
// Patterns were validated by Run, so match errors cannot occur here.
func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
