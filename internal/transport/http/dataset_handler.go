package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"aegis/internal/dataset"
	apperrors "aegis/internal/errors"
	"aegis/internal/loader"
	"aegis/internal/services"
)

// DatasetHandler handles dataset upload, inspection, profiling and export.
type DatasetHandler struct {
	service        *services.DatasetService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(service *services.DatasetService, logger *slog.Logger, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "dataset_handler")),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the dataset routes.
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Upload)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.DatasetCtx)
		r.Get("/", h.GetMetadata)
		r.Get("/profile", h.GetProfile)
		r.Get("/export", h.Export)
		r.Delete("/", h.Delete)
	})

	return r
}

// DatasetCtx validates the {id} parameter before it reaches the handlers.
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			apperrors.WriteError(w, apperrors.ErrValidation("id", "Dataset ID must be a UUID"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ArchiveEntryStatus is the per-entry slice of an archive upload response.
type ArchiveEntryStatus struct {
	Name    string               `json:"name"`
	Size    int64                `json:"size"`
	Rows    int                  `json:"rows,omitempty"`
	Columns int                  `json:"columns,omitempty"`
	Loaded  bool                 `json:"loaded"`
	Error   *apperrors.LoadError `json:"error,omitempty"`
}

// DatasetResponse describes a stored dataset or archive.
type DatasetResponse struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Format   string               `json:"format"`
	LoadedAt time.Time            `json:"loaded_at"`
	Rows     int                  `json:"rows,omitempty"`
	Columns  []string             `json:"columns,omitempty"`
	Entries  []ArchiveEntryStatus `json:"entries,omitempty"`
}

func datasetResponse(stored *services.StoredDataset) *DatasetResponse {
	resp := &DatasetResponse{
		ID:       stored.ID,
		Name:     stored.Name,
		Format:   string(stored.Format),
		LoadedAt: stored.LoadedAt,
	}
	if stored.Dataset != nil {
		resp.Rows = stored.Dataset.RowCount()
		resp.Columns = stored.Dataset.Columns()
	}
	for _, e := range stored.Entries {
		status := ArchiveEntryStatus{
			Name:   e.Name,
			Size:   e.Size,
			Loaded: e.Dataset != nil,
			Error:  e.Err,
		}
		if e.Dataset != nil {
			status.Rows = e.Dataset.RowCount()
			status.Columns = e.Dataset.ColumnCount()
		}
		resp.Entries = append(resp.Entries, status)
	}
	return resp
}

// Upload handles POST /api/datasets: a multipart form with a "file" part
// and an optional "format" field overriding extension sniffing.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperrors.WriteError(w, apperrors.ErrPayloadTooLarge)
			return
		}
		apperrors.WriteError(w, apperrors.ErrValidation("file", "Multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperrors.WriteError(w, apperrors.ErrPayloadTooLarge)
			return
		}
		apperrors.WriteError(w, apperrors.InvalidRequestWithError(err))
		return
	}

	declared, apiErr := declaredFormat(r.FormValue("format"))
	if apiErr != nil {
		apperrors.WriteError(w, apiErr)
		return
	}

	stored, lerr := h.service.Upload(r.Context(), header.Filename, data, declared)
	if lerr != nil {
		apperrors.WriteError(w, lerr.APIError())
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, datasetResponse(stored))
}

// declaredFormat parses the optional format override.
func declaredFormat(raw string) (loader.Format, *apperrors.APIError) {
	switch loader.Format(raw) {
	case "":
		return "", nil
	case loader.FormatCSV, loader.FormatExcel, loader.FormatXPT, loader.FormatZIP:
		return loader.Format(raw), nil
	default:
		return "", apperrors.ErrValidation("format", fmt.Sprintf("Unknown format %q", raw))
	}
}

// List handles GET /api/datasets.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	stored := h.service.List(r.Context())
	out := make([]*DatasetResponse, 0, len(stored))
	for _, s := range stored {
		out = append(out, datasetResponse(s))
	}
	render.JSON(w, r, map[string]interface{}{
		"datasets": out,
		"count":    len(out),
	})
}

// GetMetadata handles GET /api/datasets/{id}.
func (h *DatasetHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, datasetResponse(stored))
}

// GetProfile handles GET /api/datasets/{id}/profile, with an optional
// ?entry= selector for archive members.
func (h *DatasetHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry := r.URL.Query().Get("entry")

	report, err := h.service.Profile(r.Context(), id, entry)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Export handles GET /api/datasets/{id}/export, streaming the dataset back
// as a CSV attachment.
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry := r.URL.Query().Get("entry")

	data, err := h.service.ExportCSV(r.Context(), id, entry)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	filename := id + ".csv"
	if stored, gerr := h.service.Get(r.Context(), id); gerr == nil {
		filename = exportFilename(stored, entry)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func exportFilename(stored *services.StoredDataset, entry string) string {
	name := stored.Name
	if entry != "" {
		name = entry
	}
	return dataset.CSVFileName(name)
}

// Delete handles DELETE /api/datasets/{id}.
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// writeServiceError maps service errors onto the API envelope.
func (h *DatasetHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		apperrors.WriteError(w, apperrors.ErrDatasetNotFound)
	case errors.Is(err, services.ErrEntryMissing):
		apperrors.WriteError(w, apperrors.NotFoundError("Archive entry"))
	case errors.Is(err, services.ErrNoDataset):
		apperrors.WriteError(w, apperrors.ErrUnprocessableEntity)
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path))
		apperrors.WriteError(w, apperrors.ErrInternalServer)
	}
}
