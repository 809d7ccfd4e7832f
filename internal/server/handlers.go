package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/redact"
	"github.com/straja-ai/adaware/internal/signals"
)

type analyzeRequest struct {
	Text          string                    `json:"text" binding:"max=20000"`
	OCRConfidence float64                   `json:"ocr_confidence" binding:"gte=0,lte=1"`
	ImageURL      string                    `json:"image_url" binding:"omitempty,url"`
	PageURL       string                    `json:"page_url" binding:"omitempty,url"`
	Vision        *signals.VisionFacts      `json:"vision"`
	NLP           *signals.NLPFacts         `json:"nlp"`
	Quality       *signals.ImageQuality     `json:"image_quality"`
	Similarity    *float64                  `json:"similarity" binding:"omitempty,gte=0,lte=1"`
	Catalog       *signals.CatalogMatch     `json:"catalog"`
	Domain        *signals.DomainReputation `json:"domain"`
	UseOpinion    bool                      `json:"use_opinion"`
}

func (r analyzeRequest) bundle() signals.Bundle {
	return signals.Bundle{
		Text:          r.Text,
		OCRConfidence: r.OCRConfidence,
		ImageRef:      r.ImageURL,
		PageURL:       r.PageURL,
		Vision:        r.Vision,
		NLP:           r.NLP,
		Quality:       r.Quality,
		Similarity:    r.Similarity,
		Catalog:       r.Catalog,
		Domain:        r.Domain,
	}
}

type feedbackRequest struct {
	AnalysisID string `json:"analysis_id" binding:"required,max=64"`
	UserLabel  string `json:"user_label" binding:"omitempty,adlabel"`
	IsCorrect  *bool  `json:"is_correct" binding:"required"`
	Notes      string `json:"notes" binding:"max=2000"`
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message, RequestID: c.GetString(ctxRequestID)}})
}

func writeBindError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(c, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
}

func (s *Server) handleHealth(c *gin.Context) {
	backend := "none"
	if s.store != nil {
		backend = s.cfg.History.Backend
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"opinion": s.engine.OpinionEnabled(),
		"history": backend,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.ImageURL == "" && !req.Vision.OK() {
		writeError(c, http.StatusBadRequest, "invalid_request", "one of text, image_url or vision is required")
		return
	}

	client := clientOf(c)
	opts := engine.Options{UseOpinion: req.UseOpinion && client.AllowOpinion, ClientID: client.ID}
	res, err := s.engine.Evaluate(c.Request.Context(), req.bundle(), opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(c, http.StatusServiceUnavailable, "canceled", "evaluation canceled")
			return
		}
		logger.Log.Errorf("analyze failed: %s", redact.String(err.Error()))
		writeError(c, http.StatusInternalServerError, "internal_error", "evaluation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request_id": c.GetString(ctxRequestID), "result": res})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		writeError(c, http.StatusServiceUnavailable, "history_disabled", "history is disabled")
		return false
	}
	return true
}

func (s *Server) handleHistoryList(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": recs})
}

func (s *Server) handleHistoryGet(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": rec})
}

func (s *Server) handleFeedback(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	fb := history.Feedback{
		AnalysisID: req.AnalysisID,
		UserLabel:  strings.ToUpper(strings.TrimSpace(req.UserLabel)),
		IsCorrect:  *req.IsCorrect,
		Notes:      req.Notes,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.store.SaveFeedback(c.Request.Context(), fb); err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStats(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	entries, hitRate := s.engine.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   st,
		"cache":   gin.H{"entries": entries, "hit_rate": hitRate},
	})
}

func (s *Server) storeFailure(c *gin.Context, err error) {
	if errors.Is(err, history.ErrNotFound) {
		writeError(c, http.StatusNotFound, "not_found", "analysis not found")
		return
	}
	logger.Log.Errorf("history store: %s", redact.String(err.Error()))
	writeError(c, http.StatusInternalServerError, "store_error", "history store unavailable")
}
