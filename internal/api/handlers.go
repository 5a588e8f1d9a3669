/**
 * @description
 * HTTP handlers for the document routes used by the PaperMind front-end. Every failure
 * is reported as HTTP 500 with a {"detail": "..."} body.
 */
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/rs/zerolog"
)

// Documents is the application service behind the document routes.
type Documents interface {
	ProcessDocument(ctx context.Context, fileURL, fileName string) (*domain.ProcessedDocument, error)
	Ask(ctx context.Context, collectionID, message, model string, history []domain.ChatTurn) (string, error)
	DeleteCollection(ctx context.Context, collectionID string) error
}

// Handler holds the dependencies for the document handlers.
type Handler struct {
	docs   Documents
	logger zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(docs Documents, logger zerolog.Logger) *Handler {
	return &Handler{docs: docs, logger: logger.With().Str("component", "api").Logger()}
}

type processPDFRequest struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type processPDFResponse struct {
	Success      bool   `json:"success"`
	CollectionID string `json:"collection_id"`
	ResourceID   string `json:"resource_id"`
}

type deleteCollectionRequest struct {
	CollectionID string `json:"collection_id"`
}

type deleteCollectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type queryCollectionRequest struct {
	Message      string            `json:"message"`
	CollectionID string            `json:"collection_id"`
	Model        string            `json:"model,omitempty"`
	ChatHistory  []domain.ChatTurn `json:"chat_history,omitempty"`
}

type queryCollectionResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *Handler) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	var req processPDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "process-pdf", fmt.Errorf("invalid request body: %w", err))
		return
	}

	doc, err := h.docs.ProcessDocument(r.Context(), req.FileURL, req.FileName)
	if err != nil {
		h.fail(w, r, "process-pdf", err)
		return
	}
	respondWithJSON(w, http.StatusOK, processPDFResponse{
		Success:      true,
		CollectionID: doc.CollectionID,
		ResourceID:   doc.ResourceID,
	})
}

func (h *Handler) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	var req deleteCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "delete-collection", fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := h.docs.DeleteCollection(r.Context(), req.CollectionID); err != nil {
		h.fail(w, r, "delete-collection", err)
		return
	}
	respondWithJSON(w, http.StatusOK, deleteCollectionResponse{
		Success: true,
		Message: fmt.Sprintf("Collection %s deleted successfully", req.CollectionID),
	})
}

func (h *Handler) handleQueryCollection(w http.ResponseWriter, r *http.Request) {
	var req queryCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "query-collection", fmt.Errorf("invalid request body: %w", err))
		return
	}

	answer, err := h.docs.Ask(r.Context(), req.CollectionID, req.Message, req.Model, req.ChatHistory)
	if err != nil {
		h.fail(w, r, "query-collection", err)
		return
	}
	respondWithJSON(w, http.StatusOK, queryCollectionResponse{Message: answer})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	event := h.logger.Error().Err(err).Str("route", route)
	if userID, ok := UserFromContext(r.Context()); ok {
		event = event.Str("user_id", userID)
	}
	event.Msg("request failed")
	respondWithJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
