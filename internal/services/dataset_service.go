package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis/internal/config"
	"aegis/internal/dataset"
	apperrors "aegis/internal/errors"
	"aegis/internal/loader"
	"aegis/internal/profiler"
)

// Service errors mapped to HTTP statuses by the transport layer.
var (
	ErrNotFound     = errors.New("dataset not found")
	ErrEntryMissing = errors.New("archive entry not found")
	ErrNoDataset    = errors.New("entry carries no dataset")
)

// StoredDataset is one session-store entry: either a single dataset or the
// per-entry breakdown of an archive.
type StoredDataset struct {
	ID       string
	Name     string
	Format   loader.Format
	LoadedAt time.Time
	Dataset  *dataset.Dataset
	Entries  []loader.ArchiveEntry
}

// DatasetService loads, stores and profiles datasets for the dashboard.
// Datasets are immutable once stored, so concurrent readers need no
// locking beyond the store map itself.
type DatasetService struct {
	mu     sync.RWMutex
	logger *slog.Logger
	loader *loader.Loader
	store  map[string]*StoredDataset
	order  []string

	maxDatasets int
	ttl         time.Duration
	now         func() time.Time
}

// NewDatasetService creates the service with bounds from the upload config.
func NewDatasetService(logger *slog.Logger, ldr *loader.Loader, cfg config.UploadConfig) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		logger:      logger.With(slog.String("component", "dataset_service")),
		loader:      ldr,
		store:       make(map[string]*StoredDataset),
		maxDatasets: cfg.MaxDatasets,
		ttl:         cfg.SessionTTL,
		now:         time.Now,
	}
}

// Upload loads the bytes as the declared format — sniffed from the file
// name when declared is empty — and stores the outcome. Load failures come
// back as *errors.LoadError so the handler can map them onto the API
// envelope.
func (s *DatasetService) Upload(ctx context.Context, filename string, data []byte, declared loader.Format) (*StoredDataset, *apperrors.LoadError) {
	format := declared
	if format == "" {
		sniffed, ok := loader.DetectFormat(filename)
		if !ok {
			return nil, apperrors.NewUnsupportedFormatError(filename)
		}
		format = sniffed
	}

	res := s.loader.Load(ctx, filename, data, format)
	if res.Err != nil {
		return nil, res.Err
	}

	stored := &StoredDataset{
		ID:       uuid.New().String(),
		Name:     filename,
		Format:   format,
		LoadedAt: s.now(),
		Dataset:  res.Dataset,
		Entries:  res.Entries,
	}

	s.mu.Lock()
	s.pruneLocked()
	s.store[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	for len(s.order) > s.maxDatasets {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.store, oldest)
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "dataset stored",
		slog.String("id", stored.ID),
		slog.String("name", filename),
		slog.String("format", string(format)))
	return stored, nil
}

// Get returns a stored dataset by ID.
func (s *DatasetService) Get(ctx context.Context, id string) (*StoredDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.store[id]
	if !ok || s.expired(stored) {
		return nil, ErrNotFound
	}
	return stored, nil
}

// List returns stored datasets in upload order.
func (s *DatasetService) List(ctx context.Context) []*StoredDataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*StoredDataset, 0, len(s.order))
	for _, id := range s.order {
		if stored, ok := s.store[id]; ok && !s.expired(stored) {
			out = append(out, stored)
		}
	}
	return out
}

// Delete removes a stored dataset.
func (s *DatasetService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store[id]; !ok {
		return ErrNotFound
	}
	delete(s.store, id)
	for i, stored := range s.order {
		if stored == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Profile computes the report for a stored dataset, or for one named entry
// of a stored archive. Reports are derived data and recomputed per call.
func (s *DatasetService) Profile(ctx context.Context, id, entry string) (*profiler.Report, error) {
	ds, err := s.resolve(ctx, id, entry)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := profiler.Profile(ds)
	s.logger.DebugContext(ctx, "profile computed",
		slog.String("id", id),
		slog.Int("rows", report.RowCount),
		slog.Int("columns", report.ColumnCount),
		slog.Duration("elapsed", time.Since(start)))
	return report, nil
}

// ExportCSV re-serializes a stored dataset (or archive entry) to CSV bytes.
func (s *DatasetService) ExportCSV(ctx context.Context, id, entry string) ([]byte, error) {
	ds, err := s.resolve(ctx, id, entry)
	if err != nil {
		return nil, err
	}
	return ds.MarshalCSV()
}

// resolve finds the dataset behind an ID, descending into an archive entry
// when requested.
func (s *DatasetService) resolve(ctx context.Context, id, entry string) (*dataset.Dataset, error) {
	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry == "" {
		if stored.Dataset == nil {
			return nil, ErrNoDataset
		}
		return stored.Dataset, nil
	}

	for _, e := range stored.Entries {
		if e.Name == entry {
			if e.Dataset == nil {
				return nil, ErrNoDataset
			}
			return e.Dataset, nil
		}
	}
	return nil, ErrEntryMissing
}

// pruneLocked drops expired entries. Callers must hold the write lock.
func (s *DatasetService) pruneLocked() {
	if s.ttl <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if stored, ok := s.store[id]; ok && s.expired(stored) {
			delete(s.store, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *DatasetService) expired(stored *StoredDataset) bool {
	return s.ttl > 0 && s.now().Sub(stored.LoadedAt) > s.ttl
}
