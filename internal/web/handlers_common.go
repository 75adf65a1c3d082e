package web

// handlers_common.go holds request parsing and response shapes shared by the
// handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/persons/internal/core"
)

// maxJSONBody bounds export request bodies.
const maxJSONBody = 1 << 20

// filterParams is the JSON/query form of core.Filter. Dates are YYYY-MM-DD.
type filterParams struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	SurName   string `json:"surName,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`
}

func (p filterParams) filter() (core.Filter, error) {
	from, err := core.ParseDateBound(p.From)
	if err != nil {
		return core.Filter{}, errBadRequest("from: " + err.Error())
	}
	to, err := core.ParseDateBound(p.To)
	if err != nil {
		return core.Filter{}, errBadRequest("to: " + err.Error())
	}
	if from != nil && to != nil && to.Before(*from) {
		return core.Filter{}, errBadRequest("to must not be before from")
	}
	return core.Filter{
		DateFrom:  from,
		DateTo:    to,
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		SurName:   strings.TrimSpace(p.SurName),
		City:      strings.TrimSpace(p.City),
		Country:   strings.TrimSpace(p.Country),
	}, nil
}

// parseFilterQuery reads a filter from URL query parameters.
func parseFilterQuery(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	return filterParams{
		From:      q.Get("from"),
		To:        q.Get("to"),
		FirstName: q.Get("firstName"),
		LastName:  q.Get("lastName"),
		SurName:   q.Get("surName"),
		City:      q.Get("city"),
		Country:   q.Get("country"),
	}.filter()
}

// decodeJSON decodes a bounded request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// exportFileName validates a client-supplied file name and places it in the
// export directory. Directory components are rejected.
func (s *Server) exportFileName(name, wantExt string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errBadRequest("file is required")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", errBadRequest("file must be a plain file name")
	}
	if !strings.EqualFold(filepath.Ext(name), wantExt) {
		name += wantExt
	}
	if err := os.MkdirAll(s.cfg.Transfer.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	return filepath.Join(s.cfg.Transfer.ExportDir, name), nil
}

func operationID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "operationID")
	if id == "" {
		return "", errBadRequest("missing operation id")
	}
	return id, nil
}

// personResponse is a Record as the API returns it.
type personResponse struct {
	Date      string `json:"date,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	SurName   string `json:"surName"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

func toPersonResponse(r core.Record) personResponse {
	return personResponse{
		Date:      core.FieldDate.Value(r),
		FirstName: r.FirstName,
		LastName:  r.LastName,
		SurName:   r.SurName,
		City:      r.City,
		Country:   r.Country,
	}
}

// operationStarted is returned by the endpoints that start background work.
type operationStarted struct {
	OperationID string `json:"operationId"`
	StatusURL   string `json:"statusUrl"`
	ProgressURL string `json:"progressUrl"`
}

func started(id string) operationStarted {
	return operationStarted{
		OperationID: id,
		StatusURL:   fmt.Sprintf("/api/operations/%s", id),
		ProgressURL: fmt.Sprintf("/api/operations/%s/progress", id),
	}
}

// resultResponse wraps the operation result for JSON encoding.
type resultResponse struct {
	OperationID string              `json:"operationId"`
	Kind        core.OperationKind  `json:"kind"`
	Phase       core.OperationPhase `json:"phase"`
	Processed   int64               `json:"processed"`
	Total       int64               `json:"total"`
	Files       []string            `json:"files,omitempty"`
	Duration    string              `json:"duration"`
	Error       string              `json:"error,omitempty"`
	Code        string              `json:"code,omitempty"`
}

func toResultResponse(res *core.OperationResult) resultResponse {
	out := resultResponse{
		OperationID: res.OperationID,
		Kind:        res.Kind,
		Phase:       res.Phase,
		Processed:   res.Processed,
		Total:       res.Total,
		Duration:    res.Duration.String(),
		Error:       res.Error,
		Code:        res.Code,
	}
	for _, f := range res.Files {
		out.Files = append(out.Files, filepath.Base(f))
	}
	return out
}
