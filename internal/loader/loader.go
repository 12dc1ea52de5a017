package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"aegis/internal/dataset"
	apperrors "aegis/internal/errors"
)

// Format identifies a supported source format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatXPT   Format = "xpt"
	FormatZIP   Format = "zip"
)

// DetectFormat sniffs the format from a file name extension.
func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx", ".xls":
		return FormatExcel, true
	case ".xpt":
		return FormatXPT, true
	case ".zip":
		return FormatZIP, true
	default:
		return "", false
	}
}

// ArchiveEntry is the per-file outcome of an archive load. Entries whose
// name does not match a supported tabular format carry neither a dataset
// nor an error.
type ArchiveEntry struct {
	Name    string               `json:"name"`
	Size    int64                `json:"size"`
	Dataset *dataset.Dataset     `json:"-"`
	Err     *apperrors.LoadError `json:"error,omitempty"`
}

// Result is the outcome of a single load call: exactly one of Dataset,
// Entries (for archives) or Err is populated.
type Result struct {
	Name    string
	Format  Format
	Dataset *dataset.Dataset
	Entries []ArchiveEntry
	Err     *apperrors.LoadError
}

// OK reports whether the load produced usable output.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Config holds loader options.
type Config struct {
	// ScratchDir is the root for per-call archive extraction directories.
	// Empty means the OS default temp directory.
	ScratchDir string
}

// Loader decodes byte sources into datasets.
type Loader struct {
	logger     *slog.Logger
	scratchDir string
}

// New creates a loader.
func New(logger *slog.Logger, cfg Config) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:     logger.With(slog.String("component", "loader")),
		scratchDir: cfg.ScratchDir,
	}
}

// Load decodes data as the declared format. The error taxonomy is carried
// inside the Result; decode panics from malformed input are converted to
// decode errors so nothing escapes this boundary.
func (l *Loader) Load(ctx context.Context, name string, data []byte, format Format) *Result {
	res := &Result{Name: name, Format: format}

	if len(data) == 0 {
		res.Err = apperrors.NewEmptySourceError(string(format))
		return res
	}

	switch format {
	case FormatCSV, FormatExcel, FormatXPT:
		res.Dataset, res.Err = l.loadSingle(name, data, format)
	case FormatZIP:
		res.Entries, res.Err = l.loadArchive(ctx, name, data)
	default:
		res.Err = apperrors.NewUnsupportedFormatError(string(format))
	}

	if res.Err != nil {
		l.logger.WarnContext(ctx, "load failed",
			slog.String("source", name),
			slog.String("format", string(format)),
			slog.String("reason", res.Err.Reason))
		return res
	}

	if res.Dataset != nil {
		l.logger.InfoContext(ctx, "loaded dataset",
			slog.String("source", name),
			slog.String("format", string(format)),
			slog.Int("rows", res.Dataset.RowCount()),
			slog.Int("columns", res.Dataset.ColumnCount()))
	} else {
		l.logger.InfoContext(ctx, "loaded archive",
			slog.String("source", name),
			slog.Int("entries", len(res.Entries)))
	}
	return res
}

// loadSingle decodes a non-archive source.
func (l *Loader) loadSingle(name string, data []byte, format Format) (ds *dataset.Dataset, lerr *apperrors.LoadError) {
	if len(data) == 0 {
		return nil, apperrors.NewEmptySourceError(string(format))
	}

	defer func() {
		if rec := recover(); rec != nil {
			ds = nil
			lerr = apperrors.NewDecodeErrorf(string(format), "decoder panic: %v", rec)
		}
	}()

	switch format {
	case FormatCSV:
		return l.loadCSV(name, data)
	case FormatExcel:
		return l.loadExcel(name, data)
	case FormatXPT:
		return l.loadXPT(name, data)
	default:
		return nil, apperrors.NewUnsupportedFormatError(string(format))
	}
}

// loadCSV decodes RFC 4180 text. Rows may vary in width; short rows are
// padded with missing markers by the dataset builder.
func (l *Loader) loadCSV(name string, data []byte) (*dataset.Dataset, *apperrors.LoadError) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatCSV), "parse csv: %v", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewDecodeError(string(FormatCSV), "no header row")
	}

	ds, err := dataset.FromStringRows(name, records[0], records[1:])
	if err != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatCSV), "build dataset: %v", err)
	}
	return ds, nil
}

// loadExcel decodes the first sheet of a workbook.
func (l *Loader) loadExcel(name string, data []byte) (*dataset.Dataset, *apperrors.LoadError) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatExcel), "open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewDecodeError(string(FormatExcel), "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatExcel), "read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewDecodeErrorf(string(FormatExcel), "sheet %q has no header row", sheets[0])
	}

	ds, err := dataset.FromStringRows(name, rows[0], rows[1:])
	if err != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatExcel), "build dataset: %v", err)
	}
	return ds, nil
}
