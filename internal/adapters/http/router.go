package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
	"github.com/contact-ajmal/radiant-insights/internal/observability/metrics"
)

const maxUploadMemory = 32 << 20

type Router struct {
	subjects ports.SubjectDirectory
	ingestor ports.StudyIngestor
	studies  ports.StudyCatalog
	runner   ports.AnalysisRunner
	analyses ports.AnalysisReader

	metrics *metrics.HTTPServerMetrics
	backend ports.BackendInfo
	tempDir string

	rateLimitRPS   float64
	rateLimitBurst int
}

func NewRouter(
	subjects ports.SubjectDirectory,
	ingestor ports.StudyIngestor,
	studies ports.StudyCatalog,
	runner ports.AnalysisRunner,
	analyses ports.AnalysisReader,
	serverMetrics *metrics.HTTPServerMetrics,
	backend ports.BackendInfo,
	tempDir string,
	rateLimitRPS float64,
	rateLimitBurst int,
) *Router {
	return &Router{
		subjects:       subjects,
		ingestor:       ingestor,
		studies:        studies,
		runner:         runner,
		analyses:       analyses,
		metrics:        serverMetrics,
		backend:        backend,
		tempDir:        tempDir,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	mux.HandleFunc("POST /v1/subjects", rt.createSubject)
	mux.HandleFunc("GET /v1/subjects/{id}", rt.getSubject)
	mux.HandleFunc("GET /v1/subjects/{id}/studies", rt.listSubjectStudies)

	mux.HandleFunc("POST /v1/studies/upload", rt.uploadStudy)
	mux.HandleFunc("GET /v1/studies/{id}", rt.getStudy)
	mux.HandleFunc("DELETE /v1/studies/{id}", rt.deleteStudy)
	mux.HandleFunc("GET /v1/studies/{id}/analyses", rt.listStudyAnalyses)

	mux.HandleFunc("POST /v1/analyses", rt.createAnalysis)
	mux.HandleFunc("GET /v1/analyses/{id}", rt.getAnalysis)
	mux.HandleFunc("POST /v1/analyses/{id}/review", rt.reviewAnalysis)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = metricsMiddleware(handler, rt.metrics)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": rt.backend.Kind,
		"model":   rt.backend.Model,
	})
}

func (rt *Router) createSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID   string `json:"subject_id"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DateOfBirth string `json:"date_of_birth"`
		Gender      string `json:"gender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	subject := domain.Subject{
		SubjectID: req.SubjectID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
			return
		}
		subject.DateOfBirth = dob
	}

	if err := rt.subjects.CreateSubject(r.Context(), &subject); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (rt *Router) getSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := rt.subjects.GetSubject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (rt *Router) listSubjectStudies(w http.ResponseWriter, r *http.Request) {
	studies, err := rt.studies.ListSubjectStudies(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if studies == nil {
		studies = []domain.Study{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"studies": studies})
}

func (rt *Router) uploadStudy(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	subjectID := strings.TrimSpace(r.FormValue("subject_id"))
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "form field 'subject_id' is required")
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}

	files, err := rt.bufferUploads(parts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "buffer uploads failed")
		return
	}

	summary, err := rt.ingestor.Ingest(r.Context(), subjectID, files)
	rt.observeIngest(summary, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// bufferUploads copies every part to the scoped temp dir. Ownership of the
// temp files passes to the ingestion pipeline, which removes them on every
// exit path.
func (rt *Router) bufferUploads(parts []*multipart.FileHeader) ([]ports.UploadedFile, error) {
	files := make([]ports.UploadedFile, 0, len(parts))
	for _, part := range parts {
		src, err := part.Open()
		if err != nil {
			removeBuffered(files)
			return nil, fmt.Errorf("open multipart file: %w", err)
		}

		tmp, err := os.CreateTemp(rt.tempDir, "upload-*.dcm")
		if err != nil {
			src.Close()
			removeBuffered(files)
			return nil, fmt.Errorf("create temp file: %w", err)
		}
		size, err := io.Copy(tmp, src)
		src.Close()
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tmp.Name())
			removeBuffered(files)
			return nil, fmt.Errorf("buffer upload %s: %w", part.Filename, err)
		}

		files = append(files, ports.UploadedFile{
			Filename: part.Filename,
			TempPath: tmp.Name(),
			Size:     size,
		})
	}
	return files, nil
}

func removeBuffered(files []ports.UploadedFile) {
	for _, f := range files {
		_ = os.Remove(f.TempPath)
	}
}

func (rt *Router) observeIngest(summary *domain.IngestSummary, err error) {
	images := 0
	if summary != nil {
		images = summary.TotalImages
	}
	rt.metrics.ObserveIngest("api", images, err)
}

func (rt *Router) getStudy(w http.ResponseWriter, r *http.Request) {
	study, err := rt.studies.GetStudy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, study)
}

func (rt *Router) deleteStudy(w http.ResponseWriter, r *http.Request) {
	if err := rt.studies.DeleteStudy(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listStudyAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := rt.analyses.ListStudyAnalyses(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if analyses == nil {
		analyses = []domain.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

func (rt *Router) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudyID            string `json:"study_id"`
		ClinicalIndication string `json:"clinical_indication"`
		AnalysisType       string `json:"analysis_type"`
		PriorStudyID       string `json:"prior_study_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.StudyID) == "" {
		writeError(w, http.StatusBadRequest, "study_id is required")
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = string(domain.AnalysisPrimary)
	}

	started := time.Now()
	report, err := rt.runner.Run(r.Context(), ports.AnalysisRequest{
		StudyID:            req.StudyID,
		ClinicalIndication: req.ClinicalIndication,
		AnalysisType:       req.AnalysisType,
		PriorStudyID:       req.PriorStudyID,
	})
	elapsed := time.Since(started)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	rt.metrics.ObserveAnalysis("api", req.AnalysisType, status, elapsed)

	if err != nil {
		writeDomainError(w, err)
		return
	}
	rt.metrics.ObserveInference("api", rt.backend.Kind, time.Duration(report.ProcessingTime*float64(time.Second)))
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := rt.analyses.GetAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) reviewAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.runner.Review(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	analysis, err := rt.analyses.GetAnalysis(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), errorMessage(err))
}

// errorMessage keeps wrapped internals out of client responses for server
// faults.
func errorMessage(err error) string {
	if mapErrorToHTTPStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
