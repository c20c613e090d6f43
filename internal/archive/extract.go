package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Result describes an extracted archive.
type Result struct {
	// Root is the directory the archive was extracted into.
	Root string

	// Files lists the archive entry names in archive order.
	Files []string

	// Size is the total uncompressed size in bytes.
	Size int64
}

// Extract writes every entry of the zip archive in data under dest,
// preserving the directory structure and file modes. dest is created if
// needed.
//
// Regular files and directories are written first and symlinks last, so no
// write ever passes through a link taken from the archive. Every path is
// resolved with securejoin, which keeps links already present under dest
// scoped to it.
func Extract(data []byte, dest string) (*Result, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zip reader: %w", err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory %s: %w", dest, err)
	}

	// Containment checks run against the real path of dest.
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve extraction directory %s: %w", dest, err)
	}

	result := &Result{Root: dest}
	var links []*zip.File
	for _, file := range zipReader.File {
		if file.FileInfo().Mode()&os.ModeSymlink != 0 {
			links = append(links, file)
		} else if err := extractFile(file, root); err != nil {
			return nil, fmt.Errorf("failed to extract file %s: %w", file.Name, err)
		}
		result.Files = append(result.Files, file.Name)
		result.Size += int64(file.UncompressedSize64)
	}

	for _, file := range links {
		if err := extractSymlink(file, root); err != nil {
			return nil, fmt.Errorf("failed to extract symlink %s: %w", file.Name, err)
		}
	}
	return result, nil
}

// extractFile extracts a single regular file or directory entry below destDir.
func extractFile(file *zip.File, destDir string) error {
	destPath, err := safeJoin(destDir, file.Name)
	if err != nil {
		return err
	}

	info := file.FileInfo()
	if info.IsDir() {
		return os.MkdirAll(destPath, dirMode(info.Mode()))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories %s: %w", filepath.Dir(destPath), err)
	}

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file %s in zip: %w", file.Name, err)
	}
	defer func() { _ = rc.Close() }()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode(info.Mode()))
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}

	if _, err := io.Copy(destFile, rc); err != nil {
		_ = destFile.Close()
		return fmt.Errorf("failed to copy file content to %s: %w", destPath, err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return nil
}

// extractSymlink recreates a symlink entry. The link target is the entry
// body. It must resolve inside destDir, and ".." may only appear at its
// start, so a target never climbs back out through another link.
func extractSymlink(file *zip.File, destDir string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file %s in zip: %w", file.Name, err)
	}
	defer func() { _ = rc.Close() }()

	target, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read symlink target: %w", err)
	}
	link := string(target)

	// The link itself is placed under its real parent directory.
	name := filepath.FromSlash(strings.TrimSuffix(file.Name, "/"))
	if _, err := safeJoin(destDir, file.Name); err != nil {
		return err
	}
	parent, err := securejoin.SecureJoin(destDir, filepath.Dir(name))
	if err != nil {
		return fmt.Errorf("failed to resolve parent of %s: %w", file.Name, err)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories %s: %w", parent, err)
	}
	destPath := filepath.Join(parent, filepath.Base(name))

	resolved := link
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(parent, resolved)
	}
	if !within(destDir, resolved) || climbsAfterDescent(link) {
		return fmt.Errorf("symlink %s points outside the archive: %s", file.Name, link)
	}

	if info, err := os.Lstat(destPath); err == nil && info.IsDir() {
		return fmt.Errorf("symlink %s would replace a directory", file.Name)
	}
	_ = os.Remove(destPath)
	return os.Symlink(link, destPath)
}

// climbsAfterDescent reports whether target has a ".." element after a
// regular one, as in "b/..", whose real meaning depends on what b is.
// The target is inspected as written, before any cleaning.
func climbsAfterDescent(target string) bool {
	descended := false
	for _, part := range strings.Split(filepath.ToSlash(target), "/") {
		switch part {
		case "..":
			if descended {
				return true
			}
		case "", ".":
		default:
			descended = true
		}
	}
	return false
}

// safeJoin joins name onto destDir, rejecting names that climb out of it,
// and resolves any symlinks already on disk without leaving destDir.
func safeJoin(destDir, name string) (string, error) {
	lexical := filepath.Join(destDir, filepath.FromSlash(name))
	if !within(destDir, lexical) {
		return "", fmt.Errorf("invalid file path detected: file=%s, dest=%s", name, lexical)
	}

	destPath, err := securejoin.SecureJoin(destDir, filepath.FromSlash(name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return destPath, nil
}

// within reports whether p is destDir itself or a path below it.
func within(destDir, p string) bool {
	root := filepath.Clean(destDir)
	p = filepath.Clean(p)
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}

func dirMode(m os.FileMode) os.FileMode {
	if m.Perm() == 0 {
		return 0o755
	}
	return m.Perm() | 0o700
}

func fileMode(m os.FileMode) os.FileMode {
	if m.Perm() == 0 {
		return 0o644
	}
	return m.Perm()
}
