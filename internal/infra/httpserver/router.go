package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/bryanwahyu/automaton-comply/internal/application/analysis"
	appdocs "github.com/bryanwahyu/automaton-comply/internal/application/documents"
	domai "github.com/bryanwahyu/automaton-comply/internal/domain/ai"
	domanalysis "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-comply/internal/domain/auditlog"
	domdocs "github.com/bryanwahyu/automaton-comply/internal/domain/documents"
	"github.com/bryanwahyu/automaton-comply/internal/domain/questions"
	"github.com/bryanwahyu/automaton-comply/internal/middleware"
)

// uploads larger than this are rejected before buffering
const maxUploadBytes = 32 << 20

type Router struct {
	docsSvc     *appdocs.Service
	analysisSvc *appanalysis.Service
	questions   questions.Repository
	trail       auditlog.Repository
}

func NewRouter(docsSvc *appdocs.Service, analysisSvc *appanalysis.Service, qs questions.Repository, trail auditlog.Repository) http.Handler {
	r := &Router{docsSvc: docsSvc, analysisSvc: analysisSvc, questions: qs, trail: trail}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{org}", func(rt chi.Router) {
		rt.Post("/documents", r.wrap(r.handleUpload))
		rt.Get("/documents", r.wrap(r.handleListDocuments))
		rt.Get("/documents/{id}", r.wrap(r.handleGetDocument))
		rt.Get("/documents/{id}/chunks", r.wrap(r.handleGetChunks))
		rt.Post("/documents/{id}/reprocess", r.wrap(r.handleReprocess))
		rt.Delete("/documents/{id}", r.wrap(r.handleDeleteDocument))

		rt.Get("/questions", r.wrap(r.handleListQuestions))

		rt.Post("/audits/{auditID}/jobs", r.wrap(r.handleCreateJob))
		rt.Get("/jobs/{id}", r.wrap(r.handleGetJob))
		rt.Post("/jobs/{id}/advance", r.wrap(r.handleAdvanceJob))
		rt.Post("/jobs/{id}/cancel", r.wrap(r.handleCancelJob))

		rt.Post("/audits/{auditID}/questions/{questionID}/analyze", r.wrap(r.handleAnalyzeQuestion))
		rt.Get("/audits/{auditID}/suggestions", r.wrap(r.handleListSuggestions))
		rt.Post("/audits/{auditID}/suggestions/{questionID}/review", r.wrap(r.handleReviewSuggestion))

		rt.Get("/trail", r.wrap(r.handleTrail))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows),
				errors.Is(err, domdocs.ErrNotFound),
				errors.Is(err, domanalysis.ErrJobNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.Is(err, domai.ErrNoCredentials),
				errors.Is(err, domanalysis.ErrNoDocuments),
				errors.Is(err, domanalysis.ErrNoChunks),
				errors.Is(err, domdocs.ErrEmptyDocument):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, errBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

func actorFrom(req *http.Request) string {
	actor := middleware.SanitizeString(req.Header.Get("X-Actor"))
	if actor == "" {
		actor = "anonymous"
	}
	return actor
}

func orgFrom(req *http.Request) (string, error) {
	org := chi.URLParam(req, "org")
	if err := middleware.ValidateOrgID(org); err != nil {
		return "", badRequest("%v", err)
	}
	return org, nil
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/{org}/documents
// multipart form: file=<upload>, name=<display name, optional>
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return badRequest("parse multipart form: %v", err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest("file field is required")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := middleware.ValidateUpload(header.Filename, contentType); err != nil {
		return badRequest("%v", err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	middleware.IncrementIngestions()
	doc, err := r.docsSvc.Upload(req.Context(), appdocs.UploadCommand{
		OrgID:       org,
		Name:        middleware.SanitizeString(req.FormValue("name")),
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
		Actor:       actorFrom(req),
	})
	if err != nil {
		middleware.IncrementIngestionsFailed()
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(doc)
}

// GET /v1/{org}/documents
func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	list, err := r.docsSvc.List(req.Context(), org)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// GET /v1/{org}/documents/{id}
func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	doc, err := r.docsSvc.Get(req.Context(), org, domdocs.DocumentID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, doc)
}

// GET /v1/{org}/documents/{id}/chunks
func (r *Router) handleGetChunks(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	chunks, err := r.docsSvc.GetChunks(req.Context(), org, domdocs.DocumentID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, chunks)
}

// POST /v1/{org}/documents/{id}/reprocess
func (r *Router) handleReprocess(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	doc, err := r.docsSvc.Reprocess(req.Context(), org, domdocs.DocumentID(chi.URLParam(req, "id")), actorFrom(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(doc)
}

// DELETE /v1/{org}/documents/{id}
func (r *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	if err := r.docsSvc.Delete(req.Context(), org, domdocs.DocumentID(chi.URLParam(req, "id")), actorFrom(req)); err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"status": "deleted", "deletedAt": time.Now()})
}

// GET /v1/{org}/questions?chapter=
func (r *Router) handleListQuestions(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}
	list, err := r.questions.List(req.Context(), req.URL.Query().Get("chapter"))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// POST /v1/{org}/audits/{auditID}/jobs
// Body: {"chapter": "..."} (optional)
func (r *Router) handleCreateJob(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	auditID := chi.URLParam(req, "auditID")
	if err := middleware.ValidateAuditID(auditID); err != nil {
		return badRequest("%v", err)
	}

	var body struct {
		Chapter string `json:"chapter"`
	}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest("decode body: %v", err)
		}
	}

	job, err := r.analysisSvc.CreateJob(req.Context(), appanalysis.CreateJobCommand{
		AuditID: auditID,
		OrgID:   org,
		Chapter: body.Chapter,
		Actor:   actorFrom(req),
	})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(job)
}

// GET /v1/{org}/jobs/{id}
func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}
	job, err := r.analysisSvc.Get(req.Context(), domanalysis.JobID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// POST /v1/{org}/jobs/{id}/advance
func (r *Router) handleAdvanceJob(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}
	job, err := r.analysisSvc.Advance(req.Context(), domanalysis.JobID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// POST /v1/{org}/jobs/{id}/cancel
func (r *Router) handleCancelJob(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}
	job, err := r.analysisSvc.Cancel(req.Context(), domanalysis.JobID(chi.URLParam(req, "id")), actorFrom(req))
	if err != nil {
		return err
	}
	return writeJSON(w, job)
}

// POST /v1/{org}/audits/{auditID}/questions/{questionID}/analyze
// Body: {"context": "..."} (optional auditor steering context)
func (r *Router) handleAnalyzeQuestion(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	auditID := chi.URLParam(req, "auditID")
	if err := middleware.ValidateAuditID(auditID); err != nil {
		return badRequest("%v", err)
	}

	var body struct {
		Context string `json:"context"`
	}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest("decode body: %v", err)
		}
	}

	middleware.IncrementAnalyses()
	sug, err := r.analysisSvc.AnalyzeQuestion(req.Context(), appanalysis.AnalyzeQuestionCommand{
		AuditID:    auditID,
		OrgID:      org,
		QuestionID: chi.URLParam(req, "questionID"),
		Context:    middleware.SanitizeString(body.Context),
		Actor:      actorFrom(req),
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	return writeJSON(w, sug)
}

// GET /v1/{org}/audits/{auditID}/suggestions
func (r *Router) handleListSuggestions(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}
	list, err := r.analysisSvc.ListSuggestions(req.Context(), chi.URLParam(req, "auditID"))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// POST /v1/{org}/audits/{auditID}/suggestions/{questionID}/review
// Body: {"status": "ACCEPTED" | "REJECTED"}
func (r *Router) handleReviewSuggestion(w http.ResponseWriter, req *http.Request) error {
	if _, err := orgFrom(req); err != nil {
		return err
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("decode body: %v", err)
	}
	status := domanalysis.ReviewStatus(body.Status)
	if status != domanalysis.ReviewAccepted && status != domanalysis.ReviewRejected {
		return badRequest("status must be %s or %s", domanalysis.ReviewAccepted, domanalysis.ReviewRejected)
	}

	sug, err := r.analysisSvc.ReviewSuggestion(
		req.Context(),
		chi.URLParam(req, "auditID"),
		chi.URLParam(req, "questionID"),
		status,
		actorFrom(req),
	)
	if err != nil {
		return err
	}
	return writeJSON(w, sug)
}

// GET /v1/{org}/trail?limit=20
func (r *Router) handleTrail(w http.ResponseWriter, req *http.Request) error {
	org, err := orgFrom(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.trail.ListByOrg(req.Context(), org, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}
