package site

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout lists the top-level folders every generated site contains, in the
// order they are created. Downstream Jekyll themes depend on these names.
var Layout = []string{
	"_sass",
	"_includes",
	"_layouts",
	"_plugins",
	"assets",
	"javascript",
	"stylesheets",
}

// Scaffold creates output and the Layout folders below it, followed by any
// extra top-level folders not already in Layout. Existing folders are left
// untouched. Returns the absolute paths of the folders in creation order.
func Scaffold(output string, extra ...string) ([]string, error) {
	if output == "" {
		return nil, fmt.Errorf("output folder must not be empty")
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder %s: %w", output, err)
	}

	names := make([]string, 0, len(Layout)+len(extra))
	seen := make(map[string]bool, len(Layout)+len(extra))
	for _, name := range append(append([]string(nil), Layout...), extra...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	created := make([]string, 0, len(names))
	for _, name := range names {
		dir := filepath.Join(output, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		created = append(created, dir)
	}
	return created, nil
}
