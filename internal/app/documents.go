package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/JojoDuke/papermind-ai-backend/internal/domain"
	"github.com/JojoDuke/papermind-ai-backend/internal/metrics"
	"github.com/JojoDuke/papermind-ai-backend/pkg/wetroclient"
	"github.com/rs/zerolog"
)

// CollectionClient is the subset of the Wetro client used by DocumentService.
type CollectionClient interface {
	CreateCollection(ctx context.Context) (string, error)
	InsertResource(ctx context.Context, collectionID, resource, kind string) (*wetroclient.InsertResult, error)
	QueryCollection(ctx context.Context, collectionID, query, model string) (string, error)
	Chat(ctx context.Context, collectionID, message string, history []wetroclient.ChatMessage, model string) (string, error)
	DeleteCollection(ctx context.Context, collectionID string) error
}

// ErrCollectionRequired is returned when neither the request nor the configuration names a collection.
var ErrCollectionRequired error = validationError("collection_id is required")

type validationError string

func (e validationError) Error() string { return string(e) }
func (e validationError) Unwrap() error { return domain.ErrValidation }

// DocumentService relays document operations to the collection service.
type DocumentService struct {
	client              CollectionClient
	defaultModel        string
	defaultCollectionID string
	logger              zerolog.Logger
}

func NewDocumentService(client CollectionClient, defaultModel, defaultCollectionID string, logger zerolog.Logger) *DocumentService {
	return &DocumentService{
		client:              client,
		defaultModel:        defaultModel,
		defaultCollectionID: strings.TrimSpace(defaultCollectionID),
		logger:              logger.With().Str("component", "document_service").Logger(),
	}
}

// ProcessDocument creates a fresh collection and inserts the file at fileURL into it.
// The collection is left in place if the insert fails.
func (s *DocumentService) ProcessDocument(ctx context.Context, fileURL, fileName string) (*domain.ProcessedDocument, error) {
	collectionID, err := s.client.CreateCollection(ctx)
	metrics.ObserveUpstream("create_collection", err)
	if err != nil {
		return nil, upstream(err)
	}

	result, err := s.client.InsertResource(ctx, collectionID, fileURL, wetroclient.ResourceTypeFile)
	metrics.ObserveUpstream("insert_resource", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection_id", collectionID).Str("file_name", fileName).Msg("resource insert failed after collection create")
		return nil, upstream(err)
	}

	s.logger.Info().Str("collection_id", collectionID).Str("resource_id", result.ResourceID).Str("file_name", fileName).Msg("document processed")
	return &domain.ProcessedDocument{CollectionID: collectionID, ResourceID: result.ResourceID}, nil
}

// Ask answers message over a collection. A non-empty history switches to the chat endpoint.
// An empty collectionID falls back to the configured default collection.
func (s *DocumentService) Ask(ctx context.Context, collectionID, message, model string, history []domain.ChatTurn) (string, error) {
	collectionID = strings.TrimSpace(collectionID)
	if collectionID == "" {
		collectionID = s.defaultCollectionID
	}
	if collectionID == "" {
		return "", ErrCollectionRequired
	}
	if strings.TrimSpace(model) == "" {
		model = s.defaultModel
	}

	if len(history) == 0 {
		answer, err := s.client.QueryCollection(ctx, collectionID, message, model)
		metrics.ObserveUpstream("query_collection", err)
		if err != nil {
			return "", upstream(err)
		}
		return answer, nil
	}

	turns := make([]wetroclient.ChatMessage, len(history))
	for i, turn := range history {
		turns[i] = wetroclient.ChatMessage{Role: string(turn.Role), Content: turn.Content}
	}
	answer, err := s.client.Chat(ctx, collectionID, message, turns, model)
	metrics.ObserveUpstream("chat", err)
	if err != nil {
		return "", upstream(err)
	}
	return answer, nil
}

// DeleteCollection removes a collection.
func (s *DocumentService) DeleteCollection(ctx context.Context, collectionID string) error {
	err := s.client.DeleteCollection(ctx, collectionID)
	metrics.ObserveUpstream("delete_collection", err)
	if err != nil {
		return upstream(err)
	}
	s.logger.Info().Str("collection_id", collectionID).Msg("collection deleted")
	return nil
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}
