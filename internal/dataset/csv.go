package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
)

// CSVFileName derives a download file name for an exported dataset from its
// source name, swapping the extension for .csv.
func CSVFileName(source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		base = "dataset"
	}
	return base + ".csv"
}

// MarshalCSV serializes the dataset to CSV bytes: comma delimiter, a header
// row of column names, missing cells as empty fields. Re-loading the output
// through the CSV loader reproduces the same column names, row count and
// cell values, lossy only across documented type coercions (a text cell
// spelled like a missing token re-imports as missing).
func (d *Dataset) MarshalCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(d.Columns()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(d.cols))
	for i := 0; i < d.RowCount(); i++ {
		for j := range d.cols {
			record[j] = d.cols[j].cells[i].String()
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
