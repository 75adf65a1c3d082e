package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/JonMunkholm/persons/internal/core"
	"github.com/JonMunkholm/persons/internal/logging"
)

// handleImport accepts a multipart CSV upload in the "file" field, spools it
// to a temporary file and starts a background import of it. The spool file is
// removed when the import finishes.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// Fail before spooling a large upload nobody can process.
	if s.service.GuardStatus().Busy {
		s.respondError(w, r, core.ErrOperationInProgress, 0)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)

	path, filename, err := spoolUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, errBadRequest(fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, err, 0)
		return
	}

	id, err := s.service.StartImport(path)
	if err != nil {
		os.Remove(path)
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "operation_id", id).Info("import started",
		"file", filename)

	go s.removeWhenDone(id, path)

	writeJSON(w, http.StatusAccepted, started(id))
}

// spoolUpload streams the "file" part of a multipart body to a temporary file
// without buffering it in memory. Other parts are skipped.
func spoolUpload(r *http.Request) (path, filename string, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", "", errBadRequest("expected multipart/form-data with a file field")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", "", errBadRequest("no file provided")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", "", err
			}
			return "", "", errBadRequest("invalid multipart body")
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		tmp, err := spool(part)
		part.Close()
		if err != nil {
			return "", "", fmt.Errorf("spool upload: %w", err)
		}
		return tmp, part.FileName(), nil
	}
}

// spool copies src to a temporary file and returns its path.
func spool(src io.Reader) (string, error) {
	f, err := os.CreateTemp("", "persons-import-*.csv")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *Server) removeWhenDone(id, path string) {
	if _, err := s.service.Result(context.Background(), id); err != nil {
		slog.Warn("import result unavailable", "operation_id", id, "error", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove spooled upload", "path", path, "error", err)
	}
}

// exportXLSXRequest selects the filtered records and columns of a spreadsheet
// export. File is a plain name created inside the export directory.
type exportXLSXRequest struct {
	filterParams
	Fields []string `json:"fields"`
	File   string   `json:"file"`
}

// handleExportXLSX starts a spreadsheet export.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var req exportXLSXRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	filter, err := req.filter()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	fields, err := core.ParseFields(req.Fields)
	if err != nil {
		if !errors.Is(err, core.ErrEmptyFieldSelection) {
			err = errBadRequest(err.Error())
		}
		s.respondError(w, r, err, 0)
		return
	}

	dest, err := s.exportFileName(req.File, ".xlsx")
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id, err := s.service.StartExportXLSX(filter, fields, dest)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "operation_id", id).Info("xlsx export started", "dest", dest, "fields", len(fields))
	writeJSON(w, http.StatusAccepted, started(id))
}

// exportXMLRequest selects the filtered records of an XML export.
type exportXMLRequest struct {
	filterParams
	File string `json:"file"`
}

// handleExportXML starts a streaming XML export.
func (s *Server) handleExportXML(w http.ResponseWriter, r *http.Request) {
	var req exportXMLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	filter, err := req.filter()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	dest, err := s.exportFileName(req.File, ".xml")
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id, err := s.service.StartExportXML(filter, dest)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "operation_id", id).Info("xml export started", "dest", dest)
	writeJSON(w, http.StatusAccepted, started(id))
}
