package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"

	"saldo/internal/export"
	"saldo/internal/importer"
	applog "saldo/internal/log"
)

// uploadedFile reads the multipart "file" part of an import request.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: file is required", errMalformed)
	}
	return file, header, nil
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	preview, err := s.transactions.PreviewImport(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.uploadedFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	var mapping importer.Mapping
	raw := r.FormValue("mapping")
	if raw == "" {
		writeError(w, r, fmt.Errorf("%w: mapping is required", errMalformed))
		return
	}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		writeError(w, r, fmt.Errorf("%w: mapping: %v", errMalformed, err))
		return
	}

	created, err := s.transactions.Import(r.Context(), header.Filename, file, mapping)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Import rejected",
			applog.FieldOperation, applog.OpImport,
			"file", header.Filename,
			applog.FieldError, err)
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.imports, 1)
	atomic.AddInt64(&s.metrics.transactionsCreated, int64(len(created)))
	s.invalidateMonths(created...)
	writeJSON(w, http.StatusCreated, importResponse{Count: len(created), Transactions: created})
}

// handleExport renders into memory first so a failure can still be
// reported as a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errMalformed, err))
		return
	}
	f, err := ParseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.transactions.Export(r.Context(), &buf, format, f); err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.exports, 1)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		s.logger.WarnContext(r.Context(), "Export write interrupted",
			applog.FieldOperation, applog.OpExport,
			applog.FieldFormat, format,
			applog.FieldError, err)
	}
}
