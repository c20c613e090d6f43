package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/govuk-jekyll/internal/model"
)

// Origin names the root directory a job's source path is relative to.
type Origin string

const (
	// OriginArchive resolves sources against the extracted archive root.
	OriginArchive Origin = "archive"

	// OriginTemplates resolves sources against the local templates directory.
	OriginTemplates Origin = "templates"
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	return string(o)
}

// IsValid checks whether the Origin value is one of the predefined origins.
func (o Origin) IsValid() bool {
	return o == OriginArchive || o == OriginTemplates
}

// VersionVar is the placeholder expanded to the frontend version in
// substitution replacement values.
const VersionVar = "${version}"

// JobSpec is the unresolved form of a copy job as written in a manifest.
type JobSpec struct {
	Name          string              `json:"name" yaml:"name"`
	Origin        Origin              `json:"origin" yaml:"origin"`
	Source        string              `json:"source" yaml:"source"`
	Destination   string              `json:"destination" yaml:"destination"`
	Extensions    []string            `json:"extensions" yaml:"extensions,flow"`
	Exclude       []string            `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Substitutions model.Substitutions `json:"substitutions,omitempty" yaml:"substitutions,omitempty"`
}

// Manifest is an ordered list of job specs. Jobs run in list order.
type Manifest struct {
	Jobs []JobSpec `json:"jobs" yaml:"jobs"`
}

// Roots holds the absolute directories job paths are resolved against.
type Roots struct {
	// Archive is the extracted archive's top-level directory.
	Archive string

	// Templates is the local templates directory.
	Templates string

	// Output is the site directory all destinations live in.
	Output string
}

// Default returns the built-in manifest. Each call builds fresh slices, so
// callers may modify the result freely.
func Default() *Manifest {
	return &Manifest{Jobs: []JobSpec{
		{
			Name:        "sass",
			Origin:      OriginArchive,
			Source:      "packages/govuk-frontend",
			Destination: "_sass",
			Extensions:  []string{"scss"},
		},
		{
			Name:        "javascript",
			Origin:      OriginArchive,
			Source:      "dist",
			Destination: "javascript",
			Extensions:  []string{"js"},
		},
		{
			Name:        "assets",
			Origin:      OriginArchive,
			Source:      "dist/assets",
			Destination: "assets",
			Extensions:  []string{"woff", "woff2", "eot", "ico", "png", "svg"},
		},
		{
			Name:          "stylesheets",
			Origin:        OriginTemplates,
			Source:        "stylesheets",
			Destination:   "stylesheets",
			Extensions:    []string{"scss"},
			Substitutions: model.Substitutions{{Find: "versionGoesHere", Replace: VersionVar}},
		},
		{
			Name:        "includes",
			Origin:      OriginTemplates,
			Source:      "_includes",
			Destination: "_includes",
			Extensions:  []string{"html"},
		},
		{
			Name:        "layouts",
			Origin:      OriginTemplates,
			Source:      "_layouts",
			Destination: "_layouts",
			Extensions:  []string{"html"},
		},
		{
			Name:        "plugins",
			Origin:      OriginTemplates,
			Source:      "_plugins",
			Destination: "_plugins",
			Extensions:  []string{"rb"},
		},
	}}
}

// Load reads a manifest file. ".json" and ".jsonc" files may contain
// comments and trailing commas; ".yaml" and ".yml" files are parsed as YAML.
// The result is validated before it is returned.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitManifestInvalid,
				fmt.Sprintf("manifest not found: %s", path), err)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest at %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes manifest data in the format implied by ext and validates it.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q (valid: .json, .jsonc, .yaml, .yml)", ext)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every job spec and that job names are unique.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest defines no jobs")
	}

	seen := make(map[string]bool, len(m.Jobs))
	for i := range m.Jobs {
		spec := &m.Jobs[i]
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
		if seen[spec.Name] {
			return fmt.Errorf("job %d: duplicate job name %q", i, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// Validate checks a single job spec.
func (s *JobSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !s.Origin.IsValid() {
		return fmt.Errorf("job %q: invalid origin %q (valid: archive, templates)", s.Name, s.Origin)
	}
	if s.Source == "" {
		return fmt.Errorf("job %q: source must not be empty", s.Name)
	}
	if s.Destination == "" {
		return fmt.Errorf("job %q: destination must not be empty", s.Name)
	}
	if filepath.IsAbs(s.Destination) || escapesRoot(s.Destination) {
		return fmt.Errorf("job %q: destination must be relative to the output folder", s.Name)
	}
	if len(model.NewExtensionSet(s.Extensions...)) == 0 {
		return fmt.Errorf("job %q: at least one extension is required", s.Name)
	}
	for _, pattern := range s.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("job %q: invalid exclude pattern %q", s.Name, pattern)
		}
	}
	if err := s.Substitutions.Validate(); err != nil {
		return fmt.Errorf("job %q: %w", s.Name, err)
	}
	return nil
}

// Resolve turns the specs into copy jobs with absolute paths, expanding
// "${name}" placeholders from vars in substitution replacement values.
func (m *Manifest) Resolve(roots Roots, vars map[string]string) ([]model.CopyJob, error) {
	expander := newExpander(vars)

	jobs := make([]model.CopyJob, 0, len(m.Jobs))
	for _, spec := range m.Jobs {
		base := roots.Archive
		if spec.Origin == OriginTemplates {
			base = roots.Templates
		}
		if base == "" {
			return nil, fmt.Errorf("job %q: no root directory for origin %q", spec.Name, spec.Origin)
		}

		subs := make(model.Substitutions, 0, len(spec.Substitutions))
		for _, sub := range spec.Substitutions {
			subs = append(subs, model.Substitution{Find: sub.Find, Replace: expander.Replace(sub.Replace)})
		}

		jobs = append(jobs, model.CopyJob{
			Name:          spec.Name,
			Source:        resolvePath(base, spec.Source),
			Destination:   resolvePath(roots.Output, spec.Destination),
			Extensions:    append([]string(nil), spec.Extensions...),
			Exclude:       append([]string(nil), spec.Exclude...),
			Substitutions: subs,
		})
	}
	return jobs, nil
}

// Destinations returns the top-level output folder of every job, in order
// and without duplicates.
func (m *Manifest) Destinations() []string {
	var out []string
	seen := make(map[string]bool, len(m.Jobs))
	for _, spec := range m.Jobs {
		dir := strings.SplitN(filepath.ToSlash(filepath.Clean(spec.Destination)), "/", 2)[0]
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// MarshalJobs renders resolved jobs as YAML, used by dry runs.
func MarshalJobs(jobs []model.CopyJob) ([]byte, error) {
	return yaml.Marshal(struct {
		Jobs []model.CopyJob `yaml:"jobs"`
	}{Jobs: jobs})
}

// escapesRoot reports whether the relative path p climbs above its root.
func escapesRoot(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	return clean == ".." || strings.HasPrefix(clean, "../")
}

func resolvePath(base, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// newExpander builds a replacer for "${key}" placeholders. Unknown
// placeholders are left as written.
func newExpander(vars map[string]string) *strings.Replacer {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "${"+k+"}", v)
	}
	return strings.NewReplacer(pairs...)
}
