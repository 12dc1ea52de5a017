package profiler

import (
	"math"
	"strconv"

	"aegis/internal/dataset"
)

// Float is a float64 that marshals NaN and infinities as JSON null, so
// undefined statistics survive serialization to display layers.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// NumericStats describes a numeric column. Std is the sample standard
// deviation (ddof = 1); quartiles use linear interpolation between order
// statistics. These are NaN when fewer than the required observations
// exist.
type NumericStats struct {
	Count  int   `json:"count"`
	Mean   Float `json:"mean"`
	Std    Float `json:"std"`
	Min    Float `json:"min"`
	Q1     Float `json:"q1"`
	Median Float `json:"median"`
	Q3     Float `json:"q3"`
	Max    Float `json:"max"`
}

// CategoricalStats describes a text or boolean column. Ties for the most
// frequent value break toward the first-encountered value.
type CategoricalStats struct {
	Count     int    `json:"count"`
	Unique    int    `json:"unique"`
	Top       string `json:"top"`
	Frequency int    `json:"frequency"`
}

// ColumnProfile is the per-column slice of the report.
type ColumnProfile struct {
	Name           string             `json:"name"`
	Type           dataset.ColumnType `json:"type"`
	MissingCount   int                `json:"missing_count"`
	MissingPercent float64            `json:"missing_percent"`
	Numeric        *NumericStats      `json:"numeric,omitempty"`
	Categorical    *CategoricalStats  `json:"categorical,omitempty"`
}

// MissingEntry is one row of the ranked missing-value list.
type MissingEntry struct {
	Column         string  `json:"column"`
	MissingCount   int     `json:"missing_count"`
	MissingPercent float64 `json:"missing_percent"`
}

// CorrelationMatrix is the pairwise-complete Pearson matrix over numeric
// columns. Cells are NaN (serialized as null) when either column has zero
// variance or fewer than two complete pairs exist; that includes the
// diagonal of a zero-variance column.
type CorrelationMatrix struct {
	Columns []string  `json:"columns"`
	Values  [][]Float `json:"values"`
}

// Report is the full profile of a dataset. It is derived data: recomputed
// on demand and never persisted.
type Report struct {
	RowCount      int                `json:"row_count"`
	ColumnCount   int                `json:"column_count"`
	MemoryBytes   int64              `json:"memory_bytes"`
	DuplicateRows int                `json:"duplicate_rows"`
	TotalMissing  int                `json:"total_missing"`
	Columns       []ColumnProfile    `json:"columns"`
	MissingRanked []MissingEntry     `json:"missing_ranked"`
	Correlation   *CorrelationMatrix `json:"correlation,omitempty"`
}
