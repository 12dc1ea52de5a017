package dataset

import (
	"fmt"
	"strings"
)

// ColumnType is the type a column resolved to at load time.
type ColumnType string

const (
	TypeNumeric ColumnType = "numeric"
	TypeBoolean ColumnType = "boolean"
	TypeText    ColumnType = "text"
)

// Column is a named, typed sequence of cells.
type Column struct {
	name  string
	typ   ColumnType
	cells []Value
}

// NewColumn creates a column. The cells slice is owned by the column after
// the call and must not be mutated by the caller.
func NewColumn(name string, typ ColumnType, cells []Value) Column {
	return Column{name: name, typ: typ, cells: cells}
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Type returns the resolved column type.
func (c Column) Type() ColumnType { return c.typ }

// Len returns the number of cells.
func (c Column) Len() int { return len(c.cells) }

// Cell returns the cell at row i.
func (c Column) Cell(i int) Value { return c.cells[i] }

// Dataset is an immutable tabular value: ordered named columns of equal
// length with unique names.
type Dataset struct {
	name string
	cols []Column
}

// FromColumns builds a Dataset from pre-typed columns, enforcing the
// equal-length invariant and disambiguating duplicate names.
func FromColumns(name string, cols []Column) (*Dataset, error) {
	for i := 1; i < len(cols); i++ {
		if cols[i].Len() != cols[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d",
				cols[i].name, cols[i].Len(), cols[0].Len())
		}
	}
	dedupeNames(cols)
	return &Dataset{name: name, cols: cols}, nil
}

// FromStringRows builds a Dataset from a header and raw string rows, the
// shape produced by CSV and spreadsheet decoding. Short rows are padded with
// missing markers; rows wider than the header grow synthetic column names.
// Each column's type is resolved once from the cells actually present:
// numeric if every non-missing cell parses as a number, boolean if every
// non-missing cell parses as a boolean, text otherwise (including columns
// that are entirely missing).
func FromStringRows(name string, header []string, rows [][]string) (*Dataset, error) {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	names := make([]string, width)
	for i := 0; i < width; i++ {
		if i < len(header) {
			names[i] = header[i]
		}
		if names[i] == "" {
			names[i] = fmt.Sprintf("column_%d", i)
		}
	}

	cols := make([]Column, width)
	for j := 0; j < width; j++ {
		raw := make([]string, len(rows))
		parsed := make([]Value, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			}
			parsed[i] = ParseCell(raw[i])
		}
		cols[j] = NewColumn(names[j], resolveType(parsed), parsed)
		if cols[j].typ == TypeText {
			// Mixed columns keep their original source text, so a cell that
			// happened to parse as a number is not reformatted.
			for i := range parsed {
				if !parsed[i].IsMissing() && parsed[i].Kind() != KindText {
					parsed[i] = Text(strings.TrimSpace(raw[i]))
				}
			}
		}
	}

	return FromColumns(name, cols)
}

// resolveType picks the single type for a column from its parsed cells.
func resolveType(cells []Value) ColumnType {
	numeric, boolean, present := true, true, false
	for _, v := range cells {
		if v.IsMissing() {
			continue
		}
		present = true
		if v.Kind() != KindNumber {
			numeric = false
		}
		if v.Kind() != KindBool {
			boolean = false
		}
	}
	switch {
	case present && numeric:
		return TypeNumeric
	case present && boolean:
		return TypeBoolean
	default:
		return TypeText
	}
}

// dedupeNames suffixes repeated column names with .1, .2, ... so no source
// column is silently dropped. A suffixed candidate can itself collide with
// a name seen earlier (header "a,a.1,a"), so the index is bumped until the
// candidate is free.
func dedupeNames(cols []Column) {
	seen := make(map[string]int, len(cols))
	for i := range cols {
		name := cols[i].name
		n, ok := seen[name]
		if !ok {
			seen[name] = 1
			continue
		}
		candidate := fmt.Sprintf("%s.%d", name, n)
		for seen[candidate] > 0 {
			n++
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		seen[name] = n + 1
		seen[candidate] = 1
		cols[i].name = candidate
	}
}

// Name returns the dataset's source name (typically the file name).
func (d *Dataset) Name() string { return d.name }

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if len(d.cols) == 0 {
		return 0
	}
	return d.cols[0].Len()
}

// ColumnCount returns the number of columns.
func (d *Dataset) ColumnCount() int { return len(d.cols) }

// Columns returns the ordered column names.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.name
	}
	return names
}

// Column returns the column at index j.
func (d *Dataset) Column(j int) Column { return d.cols[j] }

// ColumnByName returns the named column.
func (d *Dataset) ColumnByName(name string) (Column, bool) {
	for _, c := range d.cols {
		if c.name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Cell returns the cell at row i, column j.
func (d *Dataset) Cell(i, j int) Value { return d.cols[j].cells[i] }

// Row returns row i as a slice of cells in column order.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.cols))
	for j, c := range d.cols {
		row[j] = c.cells[i]
	}
	return row
}
