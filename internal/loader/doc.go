// Package loader turns byte sources into datasets.
//
// It decodes CSV, Excel workbooks (first sheet), SAS transport (XPT) files
// and ZIP archives of those formats. Failures are returned as data inside
// the Result rather than as Go errors crossing the boundary, so callers
// always receive a definite outcome: a dataset, a per-entry archive
// breakdown, or a classified load error.
//
// Archive extraction uses a per-call scratch directory that is removed on
// every exit path.
package loader
