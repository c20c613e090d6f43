// Package archive fetches and unpacks the GOV.UK Frontend distribution.
//
// It has three small pieces:
//
//   - Fetcher downloads an archive and returns its raw bytes. GetterFetcher
//     is backed by github.com/hashicorp/go-getter, so the source can be an
//     http(s) URL or a local path.
//   - Extract materializes every entry of a zip archive under a directory,
//     rejecting entries that would escape it.
//   - ReadVersion reads the single-line VERSION.txt shipped in the archive.
package archive
