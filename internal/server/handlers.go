package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/models"
	"github.com/hyperjump/docrag/internal/rag"
)

type indexRequest struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type contextRequest struct {
	Question string `json:"question"`
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Results []*models.SearchResult `json:"results"`
}

type statsResponse struct {
	*models.StoreStats
	Indexing         bool   `json:"indexing"`
	ActiveDocumentID string `json:"active_document_id,omitempty"`
	DiskUsageBytes   *int64 `json:"disk_usage_bytes,omitempty"`
}

// decodeBody decodes a size-capped JSON body into v. On failure it writes
// the error response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	s.respondError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "untitled"
	}
	s.logger.Debug("index document request", zap.String("name", name), zap.Int("bytes", len(req.Text)))

	// A run that started is finished even if the client goes away.
	info, err := s.rag.IndexText(context.WithoutCancel(r.Context()), req.Text, name, req.Pages, nil)
	if errors.Is(err, rag.ErrBusy) {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"id": info.ID, "status": "indexed", "document": info})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.rag.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.rag.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.rag.LoadDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("load failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	info, _ := s.rag.ActiveDocumentInfo()
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "loaded", "document": info})
}

func (s *Server) handleActiveDocument(w http.ResponseWriter, r *http.Request) {
	info, ok := s.rag.ActiveDocumentInfo()
	if !ok {
		s.respondError(w, http.StatusNotFound, "no active document")
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	s.rag.ClearActiveDocument()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	results := s.rag.Search(req.Query)
	s.respondJSON(w, http.StatusOK, searchResponse{Query: req.Query, Count: len(results), Results: results})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	rc, ok := s.rag.GetRetrievalContext(req.Question)
	if !ok {
		s.respondError(w, http.StatusNotFound, "no active document")
		return
	}
	s.respondJSON(w, http.StatusOK, rc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rag.GetStats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statsResponse{
		StoreStats:       stats,
		Indexing:         s.rag.IsIndexing(),
		ActiveDocumentID: s.rag.ActiveDocumentID(),
	}
	if s.size != nil {
		if n, err := s.size(); err == nil {
			resp.DiskUsageBytes = &n
		} else {
			s.logger.Warn("disk usage unavailable", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.rag.Config())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.RAGConfigPatch
	if !s.decodeBody(w, r, &patch) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.rag.Configure(patch))
}

func (s *Server) handleWatchDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
