// Package manifest declares the copy jobs a build runs.
//
// A manifest is an ordered list of job specs. Each spec names the root its
// source is relative to (the extracted archive or the local templates
// directory), the destination folder inside the site, the extension
// allow-list and an optional substitution list.
//
// Default returns the built-in jobs that produce the Jekyll layout. A custom
// manifest can be loaded from JSON with comments (via
// github.com/tidwall/jsonc) or from YAML (via gopkg.in/yaml.v3).
package manifest
