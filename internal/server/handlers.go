package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK), zap.String("mode", string(query.Mode)))

	start := time.Now()
	results, err := s.retriever.SearchMode(r.Context(), query)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	if results == nil {
		results = []*models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Results:   results,
		Query:     query.Query,
		Mode:      query.Mode,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	template := query.Template
	if template == "" {
		template = s.generator.DefaultTemplate()
	}
	if _, ok := s.prompts.Get(template); !ok {
		s.respondError(w, http.StatusBadRequest, "template not found: "+template)
		return
	}
	s.logger.Debug("ask request", zap.String("query", query.Query), zap.String("template", template))

	results, err := s.retriever.Search(r.Context(), query.Query, query.TopK)
	if err != nil {
		s.respondFailure(w, "retrieval failed", err)
		return
	}
	docs := make([]*models.Document, len(results))
	for i, res := range results {
		docs[i] = res.Document
	}
	answer, err := s.generator.Generate(r.Context(), query.Query, docs, template)
	if err != nil {
		s.respondFailure(w, "generation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.AskResponse{
		Answer:   answer,
		Template: template,
		Sources:  results,
	})
}

type ingestRequest struct {
	Directory string `json:"directory"`
}

type ingestResponse struct {
	RunID     string `json:"run_id"`
	Directory string `json:"directory"`
	Ingested  int    `json:"ingested"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Directory == "" {
		req.Directory = s.config.DataDir
	}
	runID := uuid.New().String()
	s.logger.Info("ingest request", zap.String("run_id", runID), zap.String("directory", req.Directory))

	n, err := s.retriever.LoadDocuments(r.Context(), req.Directory)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("run_id", runID), zap.Int("ingested", n), zap.Error(err))
		s.respondFailure(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ingestResponse{RunID: runID, Directory: req.Directory, Ingested: n})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "position must be an integer")
		return
	}
	doc, err := s.retriever.Document(r.Context(), position)
	if err != nil {
		s.respondFailure(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.prompts.Descriptions())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retriever.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":       stats.Documents,
		"vectors":         stats.Vectors,
		"dimension":       stats.Dimension,
		"state":           stats.State,
		"keyword_enabled": stats.KeywordEnabled,
		"backend":         stats.Backend,
		"watching":        s.watching,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.IndexPath,
		s.config.Storage.DocumentsPath,
		s.config.Storage.KeywordIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"data_dir":         s.config.DataDir,
		"storage_type":     s.config.Storage.Type,
		"index_path":       s.config.Storage.IndexPath,
		"documents_path":   s.config.Storage.DocumentsPath,
		"top_k":            s.config.Retrieval.TopK,
		"default_template": s.config.Generation.DefaultTemplate,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrIndexNotInitialized):
		return http.StatusConflict
	case errors.Is(err, models.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTemplateNotFound):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrKeywordDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrEmbeddingBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
