package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/classifier"
	"github.com/Keshav04042001/mindmeld/internal/models"
	"github.com/Keshav04042001/mindmeld/internal/nlp"
)

type trainRequest struct {
	LabelSet string `json:"label_set,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

type trainResponse struct {
	RunID   string   `json:"run_id"`
	Reused  bool     `json:"reused"`
	Trained bool     `json:"trained"`
	Roles   []string `json:"roles,omitempty"`
	Hash    string   `json:"hash"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	intent := chi.URLParam(r, "intent")
	entity := chi.URLParam(r, "entity")

	var req trainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	runID := uuid.NewString()
	s.logger.Debug("train request",
		zap.String("run_id", runID),
		zap.String("domain", domain),
		zap.String("intent", intent),
		zap.String("entity", entity),
		zap.Bool("force", req.Force))

	res, err := s.processor.Train(r.Context(), domain, intent, entity, nlp.TrainOptions{
		LabelSet: req.LabelSet,
		Force:    req.Force,
	})
	if err != nil {
		var annErr *classifier.AnnotationError
		if errors.As(err, &annErr) {
			s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   annErr.Error(),
				"queries": annErr.Queries,
			})
			return
		}
		s.logger.Error("training failed", zap.String("run_id", runID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, trainResponse{
		RunID:   runID,
		Reused:  res.Reused,
		Trained: res.Trained,
		Roles:   res.Roles,
		Hash:    res.Hash,
	})
}

type predictRequest struct {
	Query       models.ProcessedQuery `json:"query"`
	EntityIndex int                   `json:"entity_index"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	intent := chi.URLParam(r, "intent")
	entity := chi.URLParam(r, "entity")

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EntityIndex < 0 || req.EntityIndex >= len(req.Query.Entities) {
		s.respondError(w, http.StatusBadRequest, "entity_index out of range")
		return
	}

	role, err := s.processor.Predict(r.Context(), domain, intent, entity, req.Query, req.EntityIndex)
	if err != nil {
		if errors.Is(err, nlp.ErrNotReady) || errors.Is(err, classifier.ErrUntrained) {
			s.respondError(w, http.StatusConflict, "classifier is not trained")
			return
		}
		s.logger.Error("prediction failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"role": role})
}

type encodeRequest struct {
	Texts []string `json:"texts"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Texts) == 0 {
		s.respondError(w, http.StatusBadRequest, "texts is required")
		return
	}
	vectors, err := s.processor.Encode(r.Context(), req.Texts)
	if err != nil {
		s.logger.Error("encoding failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"encodings": vectors})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("clear encoding cache request")
	if err := s.processor.ClearEncodingCache(); err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	res, err := s.ingester.Run(r.Context())
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.processor.Invalidate()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"run_id":      res.RunID,
		"query_files": res.QueryFiles,
		"queries":     res.Queries,
		"gazetteers":  res.Gazetteers,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	queryCount, err := s.storage.CountQueries(r.Context())
	if err != nil {
		s.logger.Error("status: count queries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	gazetteers, err := s.storage.ListGazetteers(r.Context())
	if err != nil {
		s.logger.Error("status: list gazetteers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slots, cacheSize := s.processor.Status()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"queries":        queryCount,
		"gazetteers":     len(gazetteers),
		"classifiers":    slots,
		"embedder":       s.processor.EmbedderType(),
		"encoding_cache": cacheSize,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
