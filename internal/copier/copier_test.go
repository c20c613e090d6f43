package copier

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// writeTree creates each file in files (path -> contents) on fs.
// Parent directories are created implicitly.
func writeTree(t *testing.T, fs billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644), "failed to write %s", name)
	}
}

// listFiles returns the sorted slash-separated paths of every regular file
// under root, relative to root. A missing root yields an empty list.
func listFiles(t *testing.T, fs billy.Filesystem, root string) []string {
	t.Helper()
	var out []string
	err := util.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), filepath.ToSlash(root)+"/")
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func readString(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err, "failed to open %s", name)
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	buf := make([]byte, 512)
	for {
		n, rerr := f.Read(buf)
		sb.Write(buf[:n])
		if rerr != nil {
			break
		}
	}
	return sb.String()
}

// TestCopyTree_FiltersByExtension covers the worked example: only .scss
// files are mirrored, at the same relative paths.
func TestCopyTree_FiltersByExtension(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/pkg/a.scss":     "a",
		"/src/pkg/b.js":       "b",
		"/src/pkg/sub/c.scss": "c",
	})

	c := NewCopier(fs, model.DecodeIgnore)
	err := c.CopyTree("/src", "/dst", model.NewExtensionSet("scss"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg/a.scss", "pkg/sub/c.scss"}, listFiles(t, fs, "/dst"))
	assert.Equal(t, "a", readString(t, fs, "/dst/pkg/a.scss"))
	assert.Equal(t, "c", readString(t, fs, "/dst/pkg/sub/c.scss"))
}

// TestCopyTree_EmptyBranchesOmitted verifies that directories without any
// qualifying file, at any depth, are never created.
func TestCopyTree_EmptyBranchesOmitted(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/keep/x.css":          "x",
		"/src/skip/only.js":        "js",
		"/src/skip/deeper/more.md": "md",
	})

	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("css"), nil))

	_, err := fs.Stat("/dst/skip")
	assert.True(t, os.IsNotExist(err), "directory with no matches must not be created")
	_, err = fs.Stat("/dst/keep")
	assert.NoError(t, err)
}

// TestCopyTree_NoMatchesLeavesDestinationAbsent checks that a pass matching
// zero files succeeds and materializes nothing.
func TestCopyTree_NoMatchesLeavesDestinationAbsent(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/a.txt": "a"})

	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("rb"), nil))

	_, err := fs.Stat("/dst")
	assert.True(t, os.IsNotExist(err))
}

// TestCopyTree_ExtensionCaseAndNoDot covers case-insensitive extension
// matching and the whole-filename edge case for names without a dot.
func TestCopyTree_ExtensionCaseAndNoDot(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/LOGO.PNG":  "png",
		"/src/Makefile":  "make",
		"/src/README":    "readme",
		"/src/icon.Svg":  "svg",
		"/src/notes.txt": "txt",
	})

	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("png", "svg", "makefile"), nil))

	assert.Equal(t, []string{"LOGO.PNG", "Makefile", "icon.Svg"}, listFiles(t, fs, "/dst"))
}

// TestCopyTree_SubstitutesContentAndName covers the version example: the
// pair rewrites both the file body and the file name.
func TestCopyTree_SubstitutesContentAndName(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/versionGoesHere.scss": `$version: "versionGoesHere";`,
	})

	subs := model.Substitutions{{Find: "versionGoesHere", Replace: "5.4.0"}}
	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("scss"), subs))

	assert.Equal(t, []string{"5.4.0.scss"}, listFiles(t, fs, "/dst"))
	assert.Equal(t, `$version: "5.4.0";`, readString(t, fs, "/dst/5.4.0.scss"))

	// The source tree is read-only input.
	assert.Equal(t, `$version: "versionGoesHere";`, readString(t, fs, "/src/versionGoesHere.scss"))
}

// TestCopyTree_SequentialRenames verifies that each pair re-checks the path
// produced by the previous rename.
func TestCopyTree_SequentialRenames(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/alpha.scss": "alpha"})

	subs := model.Substitutions{
		{Find: "alpha", Replace: "beta"},
		{Find: "beta", Replace: "gamma"},
	}
	c := NewCopier(fs, model.DecodeIgnore)
	stats, err := c.Run(model.CopyJob{
		Name:          "chain",
		Source:        "/src",
		Destination:   "/dst",
		Extensions:    []string{"scss"},
		Substitutions: subs,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gamma.scss"}, listFiles(t, fs, "/dst"))
	assert.Equal(t, "gamma", readString(t, fs, "/dst/gamma.scss"))
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Renamed)
}

// TestCopyTree_RenameAppliesToEveryOccurrence checks replace-all on paths,
// including directory components of the destination path.
func TestCopyTree_RenameAppliesToEveryOccurrence(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/vX/vX.html": "<p>vX</p>"})

	subs := model.Substitutions{{Find: "vX", Replace: "v5"}}
	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("html"), subs))

	assert.Equal(t, "<p>v5</p>", readString(t, fs, "/dst/v5/v5.html"))

	_, err := fs.Stat("/dst/vX")
	assert.True(t, os.IsNotExist(err), "the directory emptied by the rename must be removed")
	assert.Equal(t, []string{"v5/v5.html"}, listFiles(t, fs, "/dst"))
}

// TestCopyTree_RenameKeepsSharedDirectories checks that pruning stops at
// directories still holding files and never removes the destination root.
func TestCopyTree_RenameKeepsSharedDirectories(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/css/vX/a.scss": "a",
		"/src/css/keep.scss": "keep",
		"/src/vX.scss":       "root",
	})

	subs := model.Substitutions{{Find: "vX", Replace: "v5"}}
	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("scss"), subs))

	assert.ElementsMatch(t, []string{"css/keep.scss", "css/v5/a.scss", "v5.scss"}, listFiles(t, fs, "/dst"))

	_, err := fs.Stat("/dst/css/vX")
	assert.True(t, os.IsNotExist(err))
	_, err = fs.Stat("/dst/css")
	assert.NoError(t, err)
}

// TestCopyTree_BinaryUntouchedWithoutSubstitutions makes sure passes with
// no substitutions never round-trip bytes through the text decoder.
func TestCopyTree_BinaryUntouchedWithoutSubstitutions(t *testing.T) {
	fs := memfs.New()
	binary := string([]byte{0x89, 'P', 'N', 'G', 0xff, 0xfe, 0x00, 0x80})
	writeTree(t, fs, map[string]string{"/src/img/logo.png": binary})

	c := NewCopier(fs, model.DecodeIgnore)
	require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("png"), nil))

	assert.Equal(t, binary, readString(t, fs, "/dst/img/logo.png"))
}

// TestCopyTree_InvalidBytesTolerated verifies that invalid UTF-8 does not
// abort a substituting pass in the lossy modes.
func TestCopyTree_InvalidBytesTolerated(t *testing.T) {
	subs := model.Substitutions{{Find: "X", Replace: "Y"}}
	src := string([]byte{'X', 0xff, 'X'})

	tests := []struct {
		mode model.DecodeMode
		want string
	}{
		{model.DecodeIgnore, "YY"},
		{model.DecodeReplace, "Y\uFFFDY"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			fs := memfs.New()
			writeTree(t, fs, map[string]string{"/src/a.scss": src})

			c := NewCopier(fs, tt.mode)
			require.NoError(t, c.CopyTree("/src", "/dst", model.NewExtensionSet("scss"), subs))
			assert.Equal(t, tt.want, readString(t, fs, "/dst/a.scss"))
		})
	}
}

// TestCopyTree_StrictModeFails checks that strict decoding surfaces invalid
// input as an error instead of silently dropping bytes.
func TestCopyTree_StrictModeFails(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/a.scss": string([]byte{'a', 0xc3})})

	c := NewCopier(fs, model.DecodeStrict)
	err := c.CopyTree("/src", "/dst", model.NewExtensionSet("scss"), model.Substitutions{{Find: "a", Replace: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid UTF-8")
}

// TestCopyTree_MissingSource verifies a missing source directory is an error.
func TestCopyTree_MissingSource(t *testing.T) {
	fs := memfs.New()
	c := NewCopier(fs, model.DecodeIgnore)

	err := c.CopyTree("/nope", "/dst", model.NewExtensionSet("scss"), nil)
	assert.Error(t, err)
}

// TestRun_Exclude verifies that doublestar exclude globs skip files by
// their path relative to the job source.
func TestRun_Exclude(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{
		"/src/govuk/all.js":                           "all",
		"/src/govuk/components/button/button.js":      "btn",
		"/src/govuk/components/button/button.test.js": "test",
	})

	c := NewCopier(fs, model.DecodeIgnore)
	stats, err := c.Run(model.CopyJob{
		Name:        "javascript",
		Source:      "/src",
		Destination: "/dst",
		Extensions:  []string{"js"},
		Exclude:     []string{"**/*.test.js"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"govuk/all.js", "govuk/components/button/button.js"}, listFiles(t, fs, "/dst"))
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(len("all")+len("btn")), stats.Bytes)
}

// TestRun_InvalidJob checks that validation and glob errors are reported
// before anything is copied.
func TestRun_InvalidJob(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/a.js": "a"})
	c := NewCopier(fs, model.DecodeIgnore)

	_, err := c.Run(model.CopyJob{Name: "x", Source: "/src", Destination: "/dst"})
	assert.Error(t, err, "a job without extensions is invalid")

	_, err = c.Run(model.CopyJob{Name: "x", Source: "/src", Destination: "/dst", Extensions: []string{"js"}, Exclude: []string{"[a-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")

	_, statErr := fs.Stat("/dst")
	assert.True(t, os.IsNotExist(statErr))
}

// TestRun_Logger verifies that the installed logger receives one line per file.
func TestRun_Logger(t *testing.T) {
	fs := memfs.New()
	writeTree(t, fs, map[string]string{"/src/a.rb": "a", "/src/b.rb": "b"})

	var lines []string
	c := NewCopier(fs, model.DecodeIgnore)
	c.SetLogger(func(format string, args ...interface{}) {
		lines = append(lines, format)
	})

	_, err := c.Run(model.CopyJob{Name: "plugins", Source: "/src", Destination: "/dst", Extensions: []string{"rb"}})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

// TestCopyTree_HostFilesystem runs the copier against the real filesystem
// to check mode preservation and overwrite of existing destination files.
func TestCopyTree_HostFilesystem(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "run.rb"), []byte("puts 1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "stale.rb"), []byte("fresh"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "nested", "stale.rb"), []byte("stale content"), 0o644))

	c := NewCopier(osfs.New("/"), model.DecodeIgnore)
	require.NoError(t, c.CopyTree(src, dst, model.NewExtensionSet("rb"), nil))

	data, err := os.ReadFile(filepath.Join(dst, "nested", "stale.rb"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data), "existing destination files are overwritten")

	info, err := os.Stat(filepath.Join(dst, "nested", "run.rb"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "source file mode is preserved")
}

func TestStats_Add(t *testing.T) {
	s := Stats{Files: 1, Renamed: 1, Bytes: 10}
	s.Add(Stats{Files: 2, Bytes: 5})
	assert.Equal(t, Stats{Files: 3, Renamed: 1, Bytes: 15}, s)
}
