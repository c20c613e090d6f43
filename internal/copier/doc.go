// Package copier implements the selective tree copier used by every build
// pass of govuk-jekyll.
//
// A copy pass walks a source directory recursively and mirrors into a
// destination directory only the files whose lowercase extension is in an
// allow-list. Destination directories are created lazily, so branches with
// no qualifying files never appear in the output.
//
// An optional ordered list of literal substitutions is applied first to the
// text of each copied file and then to its full destination path. Contents
// are only decoded and rewritten when the list is non-empty, so passes over
// binary assets (fonts, images) produce byte-identical copies.
//
// All filesystem access goes through a github.com/go-git/go-billy/v5
// Filesystem, which lets tests run the copier against memfs.
package copier
