package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/jikan/internal/entities"
	"github.com/hyperjump/jikan/internal/export"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/internal/storage"
)

// multipartMemory is the part of an upload kept in memory before spilling to temp files.
const multipartMemory = 32 << 20

const resultFilename = "transformed.xlsx"

// timeNow is swapped in tests.
var timeNow = time.Now

type transformResponse struct {
	Status   string                `json:"status"`
	ID       string                `json:"id"`
	FileURL  string                `json:"file_url"`
	Rows     int                   `json:"rows"`
	Dates    []string              `json:"dates"`
	Warnings []models.Warning      `json:"warnings"`
	Failures []*models.SourceError `json:"failures"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	sources, ok := s.readUploads(w, r)
	if !ok {
		return
	}
	res := s.processor.ListEntities(sources)
	res.ShortNames = entities.Filter(res.ShortNames, r.FormValue("q"))
	if res.ShortNames == nil {
		res.ShortNames = []string{}
	}
	s.logger.Debug("list entities request",
		zap.Int("sources", len(sources)),
		zap.Int("short_names", len(res.ShortNames)),
		zap.Int("failed", len(res.Failures)),
	)
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	sources, ok := s.readUploads(w, r)
	if !ok {
		return
	}
	selected := selectedShortNames(r.MultipartForm)
	if len(selected) == 0 {
		s.respondError(w, http.StatusBadRequest, "no short names selected")
		return
	}

	res, err := s.processor.Transform(r.Context(), sources, selected)
	if err != nil {
		s.logger.Error("transform failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if len(res.Failures) == len(sources) {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    "no source could be transformed",
			"failures": res.Failures,
		})
		return
	}

	content, err := export.Bytes(res.Table, export.FormatXLSX)
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stored := &storage.Result{
		Filename: resultFilename,
		Content:  content,
		Table:    res.Table,
		Warnings: res.Warnings,
	}
	if err := s.storage.SaveResult(r.Context(), stored); err != nil {
		s.logger.Error("save result failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dates := res.Table.Dates
	if dates == nil {
		dates = []string{}
	}
	s.respondJSON(w, http.StatusOK, transformResponse{
		Status:   "success",
		ID:       stored.ID,
		FileURL:  "/api/v1/results/" + stored.ID,
		Rows:     res.Table.Len(),
		Dates:    dates,
		Warnings: res.Warnings,
		Failures: res.Failures,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.storage.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "result not found")
			return
		}
		s.logger.Error("get result failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ttl := s.config.Storage.ResultTTL; ttl > 0 && res.CreatedAt.Add(ttl).Before(timeNow()) {
		s.respondError(w, http.StatusNotFound, "result expired")
		return
	}

	content, filename := res.Content, res.Filename
	if format == export.FormatCSV {
		content, err = export.Bytes(res.Table, export.FormatCSV)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		filename = strings.TrimSuffix(filename, ".xlsx") + ".csv"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete result request", zap.String("id", id))
	if err := s.storage.DeleteResult(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "result not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountResults(r.Context())
	if err != nil {
		s.logger.Error("status: count results failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"results": count,
	}

	// Add configuration info
	configInfo := map[string]interface{}{
		"identifier_header": s.config.Sheet.IdentifierHeader,
		"sheet_name":        s.config.Sheet.SheetName,
		"data_start_column": s.config.Sheet.StartColumn(),
		"extensions":        s.config.Sheet.Extensions,
		"max_upload_mb":     s.config.Server.MaxUploadMB,
		"result_ttl":        s.config.Storage.ResultTTL.String(),
		"concurrency":       s.config.Transform.Concurrency,
	}
	if diskBytes, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// readUploads parses the multipart body and loads every "file" part. It writes an
// error response and returns false when the request is unusable.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]models.Source, bool) {
	if limit := s.config.Server.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return nil, false
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return nil, false
	}

	var sources []models.Source
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			sources = append(sources, models.Source{
				Name: fh.Filename,
				Err:  fmt.Errorf("%w: %v", models.ErrSourceUnreadable, err),
			})
			continue
		}
		sources = append(sources, s.extractor.LoadBytes(fh.Filename, content)...)
	}
	return sources, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// selectedShortNames collects the selection from "short_names[]" and "short_names" fields,
// trimming values and dropping blanks. Order and duplicates are preserved.
func selectedShortNames(form *multipart.Form) []string {
	if form == nil {
		return nil
	}
	var out []string
	for _, key := range []string{"short_names[]", "short_names"} {
		for _, v := range form.Value[key] {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
