// Package profiler computes the statistical summary of a dataset: shape,
// memory estimate, duplicate rows, per-column missing analysis and type,
// descriptive statistics, and a pairwise-complete Pearson correlation
// matrix over numeric columns.
//
// Profiling is a pure function of its input. It performs no I/O, defines no
// failure modes, and is deterministic for a given dataset.
package profiler
