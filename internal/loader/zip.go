package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "aegis/internal/errors"
)

// loadArchive extracts a ZIP container to a per-call scratch directory,
// walks the unpacked files and parses every entry whose extension matches a
// supported tabular format. Entry failures are recorded per entry and never
// fail the archive load; only an unopenable container is fatal. Nested
// archives are listed but not recursed into.
func (l *Loader) loadArchive(ctx context.Context, name string, data []byte) ([]ArchiveEntry, *apperrors.LoadError) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewArchiveError("open archive: " + err.Error())
	}

	scratch, err := os.MkdirTemp(l.scratchDir, "aegis-extract-")
	if err != nil {
		return nil, apperrors.NewArchiveError("create scratch directory: " + err.Error())
	}
	defer os.RemoveAll(scratch)

	entries := make([]ArchiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entry := ArchiveEntry{
			Name: f.Name,
			Size: int64(f.UncompressedSize64),
		}

		format, supported := DetectFormat(f.Name)
		tabular := supported && format != FormatZIP

		path, extractErr := extractEntry(scratch, f)
		if extractErr != nil {
			if tabular {
				entry.Err = apperrors.NewDecodeErrorf(string(format), "extract %q: %v", f.Name, extractErr)
			}
			entries = append(entries, entry)
			continue
		}

		if tabular {
			content, readErr := os.ReadFile(path)
			switch {
			case readErr != nil:
				entry.Err = apperrors.NewDecodeErrorf(string(format), "read %q: %v", f.Name, readErr)
			case len(content) == 0:
				entry.Err = apperrors.NewEmptySourceError(string(format))
			default:
				entry.Dataset, entry.Err = l.loadSingle(filepath.Base(f.Name), content, format)
			}
		}
		entries = append(entries, entry)
	}

	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		l.logger.WarnContext(ctx, "archive loaded with entry failures",
			slog.String("source", name),
			slog.Int("entries", len(entries)),
			slog.Int("failed", failed))
	}

	return entries, nil
}

// extractEntry writes one archive member under the scratch root, refusing
// paths that would escape it.
func extractEntry(scratch string, f *zip.File) (string, error) {
	clean := filepath.Join(scratch, filepath.Clean("/"+f.Name))
	if !strings.HasPrefix(clean, scratch+string(os.PathSeparator)) {
		return "", os.ErrPermission
	}
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return "", err
	}

	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	out, err := os.Create(clean)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", err
	}
	return clean, nil
}
