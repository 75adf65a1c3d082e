package web

import (
	"net/http"

	"github.com/JonMunkholm/persons/internal/core"
	"github.com/JonMunkholm/persons/internal/logging"
)

// previewResponse is the first page of filtered persons and the filtered total.
type previewResponse struct {
	Total   int64            `json:"total"`
	Shown   int              `json:"shown"`
	Persons []personResponse `json:"persons"`
}

// handlePreview returns the first PreviewLimit persons matching the query
// filter (from, to, firstName, lastName, surName, city, country).
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterQuery(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	records, total, err := s.service.Preview(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := previewResponse{
		Total:   total,
		Shown:   len(records),
		Persons: make([]personResponse, len(records)),
	}
	for i, rec := range records {
		resp.Persons[i] = toPersonResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClear deletes every stored person.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Clear(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	logging.FromContext(r.Context()).Info("persons cleared", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

// statusResponse reports whether an operation is running.
type statusResponse struct {
	core.GuardStatus
	Fields []core.Field `json:"fields"`
}

// handleStatus reports the operation slot and the exportable fields.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		GuardStatus: s.service.GuardStatus(),
		Fields:      core.AllFields,
	})
}
