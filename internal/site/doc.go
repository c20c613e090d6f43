// Package site assembles a Jekyll site directory from the GOV.UK Frontend
// archive and the local template folders.
//
// Scaffold creates the fixed top-level layout. Builder runs a full build:
// it fetches and extracts the archive into a temporary work directory,
// reads the frontend version, resolves the job manifest against the
// archive, templates and output roots, and runs each copy job in order.
package site
