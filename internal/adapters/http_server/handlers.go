// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"propvalue/internal/app"
	"propvalue/internal/domain"
)

const (
	maxBodyBytes       = 1 << 20
	maxImportBodyBytes = 16 << 20
	maxImportRecords   = 1000
)

type ReportGenerator interface {
	GenerateReport(ctx context.Context, q domain.ReportQuery, requesterID string) (domain.Report, error)
}

type Reader interface {
	GetReport(ctx context.Context, id string) (domain.Report, error)
	Comparables(ctx context.Context, outcode string) ([]domain.Property, error)
}

type Importer interface {
	Import(ctx context.Context, records []map[string]any, importerID string) []domain.ImportOutcome
}

type Handlers struct {
	Q        Reader
	Reports  ReportGenerator
	Imports  Importer
	validate *validator.Validate
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.validate == nil {
		h.validate = app.NewValidator()
	}
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/reports", h.createReport)
		r.Get("/reports/{id}", h.getReport)
		r.Post("/predictions", h.predict)
		r.Post("/narratives/parse", h.parseNarrative)
		r.Post("/imports", h.importRecords)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps pipeline sentinels onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInsufficientComparables):
		writeProblem(w, http.StatusUnprocessableEntity, "Insufficient comparables", err.Error())
	case errors.Is(err, domain.ErrPersistence), errors.Is(err, domain.ErrUpstreamUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Service unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Body too large", err.Error())
			return false
		}
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) createReport(w http.ResponseWriter, r *http.Request) {
	var q domain.ReportQuery
	if !decodeBody(w, r, maxBodyBytes, &q) {
		return
	}
	rep, err := h.Reports.GenerateReport(r.Context(), q, strings.TrimSpace(r.Header.Get(userHeader)))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/reports/"+rep.ID)
	writeJSON(w, http.StatusCreated, rep)
}

func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := h.Q.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	etag, body := calcETagAndBody(resp)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getReport body")
	}
}

type predictionResponse struct {
	Postcode        string                  `json:"postcode"`
	ComparableCount int                     `json:"comparable_count"`
	PredictedPrice  *domain.PricePrediction `json:"predicted_price"`
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	var q domain.ReportQuery
	if !decodeBody(w, r, maxBodyBytes, &q) {
		return
	}
	if err := h.validate.StructCtx(r.Context(), q); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	pc, ok := app.NormalizePostcode(q.Postcode)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "postcode is not a valid UK postcode")
		return
	}
	comps, err := h.Q.Comparables(r.Context(), app.Outcode(pc))
	if err != nil {
		writeError(w, errors.Join(domain.ErrPersistence, err))
		return
	}
	if len(comps) == 0 {
		writeError(w, domain.ErrInsufficientComparables)
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{
		Postcode:        pc,
		ComparableCount: len(comps),
		PredictedPrice:  app.Predict(domain.PricingTarget{Area: q.Area, PropertyType: q.PropertyType}, comps),
	})
}

func (h *Handlers) parseNarrative(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, maxBodyBytes, &body) {
		return
	}
	writeJSON(w, http.StatusOK, app.ParseNarrative(body.Text))
}

type importRequest struct {
	ImporterID string           `json:"importer_id"`
	Records    []map[string]any `json:"records"`
}

type importResponse struct {
	Imported int                    `json:"imported"`
	Failed   int                    `json:"failed"`
	Outcomes []domain.ImportOutcome `json:"outcomes"`
}

func (h *Handlers) importRecords(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeBody(w, r, maxImportBodyBytes, &req) {
		return
	}
	if req.ImporterID == "" {
		req.ImporterID = strings.TrimSpace(r.Header.Get(userHeader))
	}
	switch {
	case req.ImporterID == "":
		writeProblem(w, http.StatusBadRequest, "Invalid request", "importer_id is required")
		return
	case utf8.RuneCountInString(req.ImporterID) > domain.MaxIdentityLen:
		writeProblem(w, http.StatusBadRequest, "Invalid request", "importer_id is too long")
		return
	case len(req.Records) == 0:
		writeProblem(w, http.StatusBadRequest, "Invalid request", "records must not be empty")
		return
	case len(req.Records) > maxImportRecords:
		writeProblem(w, http.StatusBadRequest, "Invalid request", "too many records in one batch")
		return
	}

	out := importResponse{Outcomes: h.Imports.Import(r.Context(), req.Records, req.ImporterID)}
	for _, o := range out.Outcomes {
		if o.Success {
			out.Imported++
		} else {
			out.Failed++
		}
	}
	writeJSON(w, http.StatusOK, out)
}
