package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDocuments struct{ err error }

func (f failingDocuments) ProcessDocument(ctx context.Context, fileURL, fileName string) (*domain.ProcessedDocument, error) {
	return nil, f.err
}

func (f failingDocuments) Ask(ctx context.Context, collectionID, message, model string, history []domain.ChatTurn) (string, error) {
	return "", f.err
}

func (f failingDocuments) DeleteCollection(ctx context.Context, collectionID string) error {
	return f.err
}

func TestFailureLogCarriesAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(failingDocuments{err: errors.New("upstream failure: boom")}, zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodDelete, "/delete-collection", strings.NewReader(`{"collection_id":"col-1"}`))
	req = req.WithContext(context.WithValue(req.Context(), UserIDContextKey, "user456"))
	rec := httptest.NewRecorder()
	h.handleDeleteCollection(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "user456", line["user_id"])
	assert.Equal(t, "delete-collection", line["route"])
}

func TestFailureLogWithoutUser(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(failingDocuments{err: errors.New("boom")}, zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodPost, "/query-collection", strings.NewReader(`{"message":"q","collection_id":"col-1"}`))
	rec := httptest.NewRecorder()
	h.handleQueryCollection(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	_, present := line["user_id"]
	assert.False(t, present)
}
