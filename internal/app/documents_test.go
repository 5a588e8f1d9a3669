package app

import (
	"context"
	"errors"
	"testing"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/JojoDuke/papermind-ai-backend/pkg/wetroclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectionClientStub struct {
	createID   string
	createErr  error
	insertErr  error
	queryErr   error
	deleteErr  error
	answer     string
	calls      []string
	lastModel  string
	lastColl   string
	lastKind   string
	lastTurns  []wetroclient.ChatMessage
	deletedIDs []string
}

func (c *collectionClientStub) CreateCollection(ctx context.Context) (string, error) {
	c.calls = append(c.calls, "create")
	return c.createID, c.createErr
}

func (c *collectionClientStub) InsertResource(ctx context.Context, collectionID, resource, kind string) (*wetroclient.InsertResult, error) {
	c.calls = append(c.calls, "insert")
	c.lastColl = collectionID
	c.lastKind = kind
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	return &wetroclient.InsertResult{ResourceID: "res_1"}, nil
}

func (c *collectionClientStub) QueryCollection(ctx context.Context, collectionID, query, model string) (string, error) {
	c.calls = append(c.calls, "query")
	c.lastColl = collectionID
	c.lastModel = model
	return c.answer, c.queryErr
}

func (c *collectionClientStub) Chat(ctx context.Context, collectionID, message string, history []wetroclient.ChatMessage, model string) (string, error) {
	c.calls = append(c.calls, "chat")
	c.lastColl = collectionID
	c.lastModel = model
	c.lastTurns = history
	return c.answer, c.queryErr
}

func (c *collectionClientStub) DeleteCollection(ctx context.Context, collectionID string) error {
	c.calls = append(c.calls, "delete")
	c.deletedIDs = append(c.deletedIDs, collectionID)
	return c.deleteErr
}

func TestProcessDocument(t *testing.T) {
	client := &collectionClientStub{createID: "col-1"}
	svc := NewDocumentService(client, "default-model", "", zerolog.Nop())

	doc, err := svc.ProcessDocument(context.Background(), "https://files.example/a.pdf", "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, &domain.ProcessedDocument{CollectionID: "col-1", ResourceID: "res_1"}, doc)
	assert.Equal(t, []string{"create", "insert"}, client.calls)
	assert.Equal(t, "col-1", client.lastColl)
	assert.Equal(t, wetroclient.ResourceTypeFile, client.lastKind)
}

func TestProcessDocumentCreateFailureSkipsInsert(t *testing.T) {
	client := &collectionClientStub{createErr: &wetroclient.APIError{Op: "create_collection", StatusCode: 502}}
	svc := NewDocumentService(client, "", "", zerolog.Nop())

	_, err := svc.ProcessDocument(context.Background(), "https://files.example/a.pdf", "a.pdf")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, wetroclient.ErrUpstream)
	assert.Equal(t, []string{"create"}, client.calls)
}

func TestProcessDocumentInsertFailureDoesNotDelete(t *testing.T) {
	client := &collectionClientStub{createID: "col-1", insertErr: errors.New("bad file")}
	svc := NewDocumentService(client, "", "", zerolog.Nop())

	_, err := svc.ProcessDocument(context.Background(), "https://files.example/a.pdf", "a.pdf")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Empty(t, client.deletedIDs)
}

func TestAskWithoutHistoryQueries(t *testing.T) {
	client := &collectionClientStub{answer: "yes"}
	svc := NewDocumentService(client, "default-model", "", zerolog.Nop())

	answer, err := svc.Ask(context.Background(), "col-1", "Is it?", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", answer)
	assert.Equal(t, []string{"query"}, client.calls)
	assert.Equal(t, "default-model", client.lastModel)
}

func TestAskWithHistoryChatsInOrder(t *testing.T) {
	client := &collectionClientStub{answer: "more"}
	svc := NewDocumentService(client, "default-model", "", zerolog.Nop())

	history := []domain.ChatTurn{
		{Role: domain.ChatRoleUser, Content: "first"},
		{Role: domain.ChatRoleSystem, Content: "reply"},
		{Role: domain.ChatRoleUser, Content: "first"},
	}
	_, err := svc.Ask(context.Background(), "col-1", "Tell me more", "custom-model", history)
	require.NoError(t, err)

	assert.Equal(t, []string{"chat"}, client.calls)
	assert.Equal(t, "custom-model", client.lastModel)
	assert.Equal(t, []wetroclient.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "system", Content: "reply"},
		{Role: "user", Content: "first"},
	}, client.lastTurns)
}

func TestAskFallsBackToDefaultCollection(t *testing.T) {
	client := &collectionClientStub{answer: "ok"}
	svc := NewDocumentService(client, "", "col-default", zerolog.Nop())

	_, err := svc.Ask(context.Background(), "  ", "q", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "col-default", client.lastColl)
}

func TestAskWithoutAnyCollection(t *testing.T) {
	client := &collectionClientStub{}
	svc := NewDocumentService(client, "", "", zerolog.Nop())

	_, err := svc.Ask(context.Background(), "", "q", "", nil)
	assert.ErrorIs(t, err, ErrCollectionRequired)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.EqualError(t, err, "collection_id is required")
	assert.Empty(t, client.calls)
}

func TestDeleteCollectionWrapsUpstream(t *testing.T) {
	client := &collectionClientStub{deleteErr: &wetroclient.APIError{Op: "delete_collection", StatusCode: 404}}
	svc := NewDocumentService(client, "", "", zerolog.Nop())

	err := svc.DeleteCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUpstream)

	var apiErr *wetroclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}
