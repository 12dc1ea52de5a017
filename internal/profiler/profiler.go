package profiler

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"aegis/internal/dataset"
)

// Storage accounting constants for the memory estimate: the tagged cell
// value plus per-column slice and name overhead. Order-of-magnitude
// usefulness is the contract, not byte parity with any allocator.
const (
	cellOverheadBytes   = 40
	columnOverheadBytes = 48
)

// Profile computes the full report for a dataset.
func Profile(ds *dataset.Dataset) *Report {
	rows := ds.RowCount()
	cols := ds.ColumnCount()

	report := &Report{
		RowCount:    rows,
		ColumnCount: cols,
		Columns:     make([]ColumnProfile, 0, cols),
	}

	for j := 0; j < cols; j++ {
		col := ds.Column(j)
		profile := profileColumn(col, rows)
		report.TotalMissing += profile.MissingCount
		report.MemoryBytes += columnMemory(col)
		report.Columns = append(report.Columns, profile)
	}

	report.DuplicateRows = countDuplicateRows(ds)
	report.MissingRanked = rankMissing(report.Columns)
	report.Correlation = correlationMatrix(ds)

	return report
}

// profileColumn computes missing analysis and descriptive statistics for
// one column.
func profileColumn(col dataset.Column, rows int) ColumnProfile {
	missing := 0
	for i := 0; i < col.Len(); i++ {
		if col.Cell(i).IsMissing() {
			missing++
		}
	}

	profile := ColumnProfile{
		Name:         col.Name(),
		Type:         col.Type(),
		MissingCount: missing,
	}
	if rows > 0 {
		profile.MissingPercent = float64(missing) / float64(rows) * 100
	}

	if col.Type() == dataset.TypeNumeric {
		profile.Numeric = numericStats(col)
	} else {
		profile.Categorical = categoricalStats(col)
	}
	return profile
}

// numericStats summarizes the non-missing values of a numeric column.
func numericStats(col dataset.Column) *NumericStats {
	xs := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if f, ok := col.Cell(i).Float(); ok {
			xs = append(xs, f)
		}
	}

	s := &NumericStats{
		Count:  len(xs),
		Mean:   Float(math.NaN()),
		Std:    Float(math.NaN()),
		Min:    Float(math.NaN()),
		Q1:     Float(math.NaN()),
		Median: Float(math.NaN()),
		Q3:     Float(math.NaN()),
		Max:    Float(math.NaN()),
	}
	if len(xs) == 0 {
		return s
	}

	s.Mean = Float(stat.Mean(xs, nil))
	if len(xs) >= 2 {
		// Sample variance (ddof = 1).
		s.Std = Float(math.Sqrt(stat.Variance(xs, nil)))
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s.Min = Float(sorted[0])
	s.Max = Float(sorted[len(sorted)-1])
	s.Q1 = Float(quantile(sorted, 0.25))
	s.Median = Float(quantile(sorted, 0.5))
	s.Q3 = Float(quantile(sorted, 0.75))
	return s
}

// quantile interpolates linearly between order statistics at p*(n-1), the
// convention spreadsheet users expect. Input must be sorted and non-empty.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := p * float64(n-1)
	i := int(math.Floor(h))
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// categoricalStats summarizes a text or boolean column: non-missing count,
// distinct values, and the most frequent value with first-encounter
// tie-breaking.
func categoricalStats(col dataset.Column) *CategoricalStats {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	s := &CategoricalStats{}

	for i := 0; i < col.Len(); i++ {
		v := col.Cell(i)
		if v.IsMissing() {
			continue
		}
		s.Count++
		key := v.String()
		if _, ok := counts[key]; !ok {
			firstSeen[key] = i
		}
		counts[key]++
	}

	s.Unique = len(counts)
	bestIdx := -1
	for key, n := range counts {
		if n > s.Frequency || (n == s.Frequency && (bestIdx == -1 || firstSeen[key] < bestIdx)) {
			s.Top = key
			s.Frequency = n
			bestIdx = firstSeen[key]
		}
	}
	return s
}

// countDuplicateRows counts every row whose full value tuple, missing
// markers included, repeats an earlier row. A row occurring k times
// contributes k-1.
func countDuplicateRows(ds *dataset.Dataset) int {
	seen := make(map[string]struct{}, ds.RowCount())
	duplicates := 0

	var key strings.Builder
	for i := 0; i < ds.RowCount(); i++ {
		key.Reset()
		for j := 0; j < ds.ColumnCount(); j++ {
			v := ds.Cell(i, j)
			key.WriteByte(byte('0' + v.Kind()))
			key.WriteString(v.String())
			key.WriteByte(0x1f)
		}
		k := key.String()
		if _, ok := seen[k]; ok {
			duplicates++
		} else {
			seen[k] = struct{}{}
		}
	}
	return duplicates
}

// rankMissing orders columns by missing count, descending, stable on
// column order.
func rankMissing(cols []ColumnProfile) []MissingEntry {
	ranked := make([]MissingEntry, len(cols))
	for i, c := range cols {
		ranked[i] = MissingEntry{
			Column:         c.Name,
			MissingCount:   c.MissingCount,
			MissingPercent: c.MissingPercent,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MissingCount > ranked[j].MissingCount
	})
	return ranked
}

// columnMemory estimates the storage footprint of one column.
func columnMemory(col dataset.Column) int64 {
	size := int64(columnOverheadBytes + len(col.Name()))
	size += int64(col.Len()) * cellOverheadBytes
	for i := 0; i < col.Len(); i++ {
		if s, ok := col.Cell(i).Str(); ok {
			size += int64(len(s))
		}
	}
	return size
}

// correlationMatrix computes the pairwise-complete Pearson matrix over
// numeric columns. Present only when at least two numeric columns exist.
func correlationMatrix(ds *dataset.Dataset) *CorrelationMatrix {
	var numeric []dataset.Column
	for j := 0; j < ds.ColumnCount(); j++ {
		if ds.Column(j).Type() == dataset.TypeNumeric {
			numeric = append(numeric, ds.Column(j))
		}
	}
	if len(numeric) < 2 {
		return nil
	}

	m := &CorrelationMatrix{
		Columns: make([]string, len(numeric)),
		Values:  make([][]Float, len(numeric)),
	}
	for i, col := range numeric {
		m.Columns[i] = col.Name()
		m.Values[i] = make([]Float, len(numeric))
	}

	for i := range numeric {
		m.Values[i][i] = Float(selfCorrelation(numeric[i]))
		for j := i + 1; j < len(numeric); j++ {
			r := pairwiseCorrelation(numeric[i], numeric[j])
			m.Values[i][j] = Float(r)
			m.Values[j][i] = Float(r)
		}
	}
	return m
}

// selfCorrelation fills the diagonal: exactly 1 for a column with nonzero
// variance, NaN otherwise.
func selfCorrelation(col dataset.Column) float64 {
	xs := make([]float64, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if f, ok := col.Cell(i).Float(); ok {
			xs = append(xs, f)
		}
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return math.NaN()
	}
	return 1
}

// pairwiseCorrelation computes Pearson correlation over rows where both
// columns are non-missing. Returns NaN with fewer than two complete pairs
// or when either side has zero variance; a zero-variance column therefore
// has a NaN diagonal rather than 1.
func pairwiseCorrelation(a, b dataset.Column) float64 {
	xs := make([]float64, 0, a.Len())
	ys := make([]float64, 0, a.Len())
	for i := 0; i < a.Len(); i++ {
		x, okx := a.Cell(i).Float()
		y, oky := b.Cell(i).Float()
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}

	r := stat.Correlation(xs, ys, nil)
	// Guard against floating point drift outside [-1, 1].
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}
