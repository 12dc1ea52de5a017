// Package dataset defines the immutable in-memory tabular value produced by
// the loader and consumed by the profiler and export surfaces.
//
// A Dataset is an ordered sequence of named columns. Each column holds cells
// of a single resolved type (numeric, boolean or text) plus missing markers.
// Cell types are resolved exactly once, at construction time, and never
// re-inferred on access.
//
// Datasets are read-only after construction, so concurrent readers are
// always safe.
package dataset
