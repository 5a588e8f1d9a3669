/**
 * @description
 * This package provides a client for the Wetro document-intelligence API. It wraps the
 * authenticated HTTP calls used to create a collection, insert a resource into it, query
 * it, chat over it and delete it. The client holds no state beyond its configuration and
 * is safe for concurrent use.
 *
 * @dependencies
 * - github.com/google/uuid: collection identifiers are generated locally.
 */
package wetroclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the production Wetro API.
const DefaultBaseURL = "https://api.wetrocloud.com"

// ResourceTypeFile is the resource kind used for uploaded documents.
const ResourceTypeFile = "file"

const noResponseText = "No response from Wetro"

// ErrUpstream is matched by every error the client returns for a failed remote call.
var ErrUpstream = errors.New("wetro request failed")

// Client is a client for the Wetro API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	newID      func() string
}

// NewClient creates a new Wetro API client.
func NewClient(baseURL, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		newID: func() string { return uuid.NewString() },
	}
}

// APIError describes a non-success answer from Wetro.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wetro %s failed (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("wetro %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUpstream }

// ChatMessage is one turn of a chat history as Wetro expects it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InsertResult is returned after a resource has been added to a collection.
type InsertResult struct {
	ResourceID string `json:"resource_id"`
}

type insertRequest struct {
	CollectionID string `json:"collection_id"`
	Resource     string `json:"resource"`
	Type         string `json:"type"`
}

type queryRequest struct {
	CollectionID string `json:"collection_id"`
	RequestQuery string `json:"request_query"`
	Model        string `json:"model,omitempty"`
}

type chatRequest struct {
	CollectionID string        `json:"collection_id"`
	Message      string        `json:"message"`
	ChatHistory  []ChatMessage `json:"chat_history"`
	Model        string        `json:"model,omitempty"`
}

type deleteRequest struct {
	CollectionID string `json:"collection_id"`
}

// envelope is the subset of fields every Wetro response carries.
type envelope struct {
	Success    *bool           `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Detail     string          `json:"detail"`
	ResourceID string          `json:"resource_id"`
	Response   json.RawMessage `json:"response"`
}

func (e envelope) failureMessage() string {
	for _, msg := range []string{e.Error, e.Detail, e.Message} {
		if msg != "" {
			return msg
		}
	}
	return ""
}

// CreateCollection generates a fresh collection id and asks Wetro to materialize it.
func (c *Client) CreateCollection(ctx context.Context) (string, error) {
	collectionID := c.newID()

	form := url.Values{}
	form.Set("collection_id", collectionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/collection/create/", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := c.do(req, "create_collection"); err != nil {
		return "", err
	}
	return collectionID, nil
}

// InsertResource registers an external resource (e.g. a document URL) into a collection.
// An empty kind means ResourceTypeFile.
func (c *Client) InsertResource(ctx context.Context, collectionID, resource, kind string) (*InsertResult, error) {
	if kind == "" {
		kind = ResourceTypeFile
	}
	env, err := c.doJSON(ctx, http.MethodPost, "/v1/resource/insert/", "insert_resource", insertRequest{
		CollectionID: collectionID,
		Resource:     resource,
		Type:         kind,
	})
	if err != nil {
		return nil, err
	}
	return &InsertResult{ResourceID: env.ResourceID}, nil
}

// QueryCollection asks a one-shot question over the collection's contents.
func (c *Client) QueryCollection(ctx context.Context, collectionID, query, model string) (string, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/v1/collection/query/", "query_collection", queryRequest{
		CollectionID: collectionID,
		RequestQuery: query,
		Model:        model,
	})
	if err != nil {
		return "", err
	}
	return renderResponse(env.Response), nil
}

// Chat sends a message along with the prior turns of the conversation. History is
// forwarded exactly as given.
func (c *Client) Chat(ctx context.Context, collectionID, message string, history []ChatMessage, model string) (string, error) {
	if history == nil {
		history = []ChatMessage{}
	}
	env, err := c.doJSON(ctx, http.MethodPost, "/v1/collection/chat/", "chat", chatRequest{
		CollectionID: collectionID,
		Message:      message,
		ChatHistory:  history,
		Model:        model,
	})
	if err != nil {
		return "", err
	}
	return renderResponse(env.Response), nil
}

// DeleteCollection removes a collection. A collection that does not exist fails like
// any other non-success response.
func (c *Client) DeleteCollection(ctx context.Context, collectionID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/v1/collection/delete/", "delete_collection", deleteRequest{CollectionID: collectionID})
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path, op string, payload interface{}) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) (*envelope, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error()}
	}

	var env envelope
	decodeErr := json.Unmarshal(bodyBytes, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = env.failureMessage()
		}
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: "failed to decode response: " + decodeErr.Error()}
	}
	if env.Success == nil || !*env.Success {
		msg := env.failureMessage()
		if msg == "" {
			msg = "success flag not set"
		}
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

// renderResponse turns Wetro's response field into text. Structured answers are
// rendered as compact JSON.
func renderResponse(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return noResponseText
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}
