package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/persons/internal/core"
)

// handleOperationStatus returns the current status without blocking.
func (s *Server) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	status, err := s.service.Status(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleOperationProgress streams status updates via Server-Sent Events.
// Supports resumption via lastEventId: the event id is the progress
// percentage, so a reconnecting client skips what it has already seen.
func (s *Server) handleOperationProgress(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	statusCh, err := s.service.SubscribeProgress(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var last core.OperationStatus
	for {
		select {
		case status, ok := <-statusCh:
			if !ok {
				// Channel closed: last holds the final status.
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = status

			eventID := status.Progress.Percent()
			if status.Phase == core.PhaseRunning && eventID <= lastEventID {
				continue
			}
			lastEventID = eventID

			data, _ := json.Marshal(status)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelOperation cancels a running operation.
func (s *Server) handleCancelOperation(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	if err := s.service.Cancel(id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"operationId": id, "status": "cancelling"})
}

// handleOperationResult returns the final result. Without wait=true a running
// operation answers 202 with its current status.
func (s *Server) handleOperationResult(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		status, err := s.service.Status(id)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		if !isTerminal(status.Phase) {
			writeJSON(w, http.StatusAccepted, status)
			return
		}
	}

	result, err := s.service.Result(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(result))
}

// handleOperationFile downloads the index'th (1-based) file of a completed
// export.
func (s *Server) handleOperationFile(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 1 {
		s.respondError(w, r, errBadRequest("file index must be a positive integer"), 0)
		return
	}

	status, err := s.service.Status(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if status.Phase != core.PhaseComplete {
		s.respondError(w, r, errBadRequest("operation has not completed"), http.StatusConflict)
		return
	}

	result, err := s.service.Result(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if index > len(result.Files) {
		s.respondError(w, r, errBadRequest(fmt.Sprintf("operation produced %d file(s)", len(result.Files))), http.StatusNotFound)
		return
	}

	path := result.Files[index-1]
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func isTerminal(p core.OperationPhase) bool {
	switch p {
	case core.PhaseComplete, core.PhaseFailed, core.PhaseCancelled:
		return true
	}
	return false
}
