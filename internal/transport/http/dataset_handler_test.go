package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/config"
	apperrors "aegis/internal/errors"
	"aegis/internal/loader"
	"aegis/internal/services"
)

const sampleCSV = "id,age\n1,34\n2,51\n"

func newTestHandler(t *testing.T, maxUploadBytes int64) (*DatasetHandler, *services.DatasetService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ldr := loader.New(logger, loader.Config{ScratchDir: t.TempDir()})
	svc := services.NewDatasetService(logger, ldr, config.UploadConfig{
		MaxDatasets: 8,
		SessionTTL:  time.Hour,
	})
	return NewDatasetHandler(svc, logger, maxUploadBytes), svc
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadDataset(t *testing.T, h *DatasetHandler, filename string, content []byte) DatasetResponse {
	t.Helper()
	body, contentType := multipartBody(t, filename, content, nil)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, "upload failed: %s", rec.Body.String())

	var resp DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	resp := uploadDataset(t, h, "patients.csv", []byte(sampleCSV))
	assert.Equal(t, "patients.csv", resp.Name)
	assert.Equal(t, "csv", resp.Format)
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, []string{"id", "age"}, resp.Columns)
	_, err := uuid.Parse(resp.ID)
	assert.NoError(t, err)
}

func TestUploadEndpoint_Failures(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	t.Run("missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("format", "csv"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		body, contentType := multipartBody(t, "patients.csv", nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp apperrors.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "EMPTY_SOURCE", resp.Error.ErrorCode)
	})

	t.Run("unknown declared format", func(t *testing.T) {
		body, contentType := multipartBody(t, "patients.csv", []byte(sampleCSV), map[string]string{"format": "parquet"})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized payload", func(t *testing.T) {
		small, _ := newTestHandler(t, 64)
		body, contentType := multipartBody(t, "patients.csv", bytes.Repeat([]byte("x"), 1024), nil)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		small.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestListEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	uploadDataset(t, h, "a.csv", []byte(sampleCSV))
	uploadDataset(t, h, "b.csv", []byte(sampleCSV))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Datasets []DatasetResponse `json:"datasets"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Datasets, 2)
	assert.Equal(t, "a.csv", resp.Datasets[0].Name)
}

func TestGetMetadataEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	created := uploadDataset(t, h, "patients.csv", []byte(sampleCSV))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, 2, resp.Rows)
}

func TestDatasetCtx_RejectsBadID(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetadata_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DATASET_NOT_FOUND", resp.Error.ErrorCode)
}

func TestProfileEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	created := uploadDataset(t, h, "patients.csv", []byte(sampleCSV))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID+"/profile", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2.0, report["row_count"])
	assert.Equal(t, 2.0, report["column_count"])
	assert.NotNil(t, report["correlation"])
}

func TestExportEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	created := uploadDataset(t, h, "patients.csv", []byte(sampleCSV))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID+"/export", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="patients.csv"`)
	assert.Equal(t, sampleCSV, rec.Body.String())
}

func TestDeleteEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, 1<<20)
	created := uploadDataset(t, h, "patients.csv", []byte(sampleCSV))

	req := httptest.NewRequest(http.MethodDelete, "/"+created.ID, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/"+created.ID, nil)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
