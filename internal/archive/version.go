package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VersionFile is the location of the version file relative to the archive root.
var VersionFile = filepath.Join("dist", "VERSION.txt")

// ReadVersion reads a plain-text file holding a single version string and
// returns it with surrounding whitespace trimmed.
func ReadVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", fmt.Errorf("version file %s is empty", path)
	}
	return version, nil
}
