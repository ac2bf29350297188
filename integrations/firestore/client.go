// Package firestore is a document store backed by the Firestore REST API.
package firestore

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

	"github.com/aqlanhadi/kisht/store"
	log "github.com/sirupsen/logrus"
)

var _ store.Store = (*Client)(nil)

const (
	DefaultBaseURL  = "https://firestore.googleapis.com/v1"
	defaultDatabase = "(default)"
	defaultTimeout  = 30 * time.Second
)

// Config holds what the client needs to reach a database
type Config struct {
	ProjectID  string
	DatabaseID string
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

// Client talks to one Firestore database
type Client struct {
	baseURL string
	root    string
	http    *http.Client
	tokens  TokenSource
}

// New returns a client for cfg. BaseURL defaults to the production endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("firestore token source is required")
	}
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = defaultDatabase
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		root:    fmt.Sprintf("projects/%s/databases/%s/documents", cfg.ProjectID, cfg.DatabaseID),
		http:    cfg.HTTPClient,
		tokens:  cfg.Tokens,
	}, nil
}

// EmulatorBaseURL returns the REST endpoint of a local emulator
func EmulatorBaseURL(host string) string {
	return "http://" + strings.TrimRight(host, "/") + "/v1"
}

func (c *Client) name(path string) string {
	return c.root + "/" + path
}

func (c *Client) documentURL(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + c.root + "/" + strings.Join(segments, "/")
}

// Get fetches a single document
func (c *Client) Get(ctx context.Context, path string) (*store.Document, error) {
	var doc document
	err := c.do(ctx, http.MethodGet, c.documentURL(path), nil, &doc)
	if isStatus(err, http.StatusNotFound) {
		return nil, fmt.Errorf("%s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return &store.Document{Path: path, Fields: decodeFields(doc.Fields)}, nil
}

type runQueryResult struct {
	Document *document `json:"document"`
}

// Query runs a structured query over one collection
func (c *Client) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	parent, collectionID := store.Split(collection)

	endpoint := c.baseURL + "/" + c.root + ":runQuery"
	if parent != "" {
		endpoint = c.documentURL(parent) + ":runQuery"
	}

	query := map[string]any{
		"from": []map[string]any{{"collectionId": collectionID}},
	}
	if where := buildWhere(filters); where != nil {
		query["where"] = where
	}
	if limit > 0 {
		query["limit"] = limit
	}

	var results []runQueryResult
	if err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"structuredQuery": query}, &results); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	docs := []store.Document{}
	prefix := c.root + "/"
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		docs = append(docs, store.Document{
			Path:   strings.TrimPrefix(r.Document.Name, prefix),
			Fields: decodeFields(r.Document.Fields),
		})
	}
	return docs, nil
}

func buildWhere(filters []store.Filter) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	clauses := make([]any, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, map[string]any{
			"fieldFilter": map[string]any{
				"field": map[string]any{"fieldPath": f.Field},
				"op":    "EQUAL",
				"value": encodeValue(f.Value),
			},
		})
	}
	if len(clauses) == 1 {
		return clauses[0].(map[string]any)
	}
	return map[string]any{
		"compositeFilter": map[string]any{
			"op":      "AND",
			"filters": clauses,
		},
	}
}

// Commit applies writes atomically through the :commit endpoint
func (c *Client) Commit(ctx context.Context, writes []store.Write) error {
	body := map[string]any{"writes": c.encodeWrites(writes)}

	err := c.do(ctx, http.MethodPost, c.baseURL+"/"+c.root+":commit", body, nil)
	if err == nil {
		return nil
	}

	var statusErr *store.StatusError
	if errors.As(err, &statusErr) && isPreconditionFailure(statusErr) {
		statusErr.Err = store.ErrPreconditionFailed
	}
	return fmt.Errorf("failed to commit %d writes: %w", len(writes), err)
}

func (c *Client) encodeWrites(writes []store.Write) []map[string]any {
	out := make([]map[string]any, 0, len(writes))
	for _, w := range writes {
		var encoded map[string]any
		if w.IsDelete() {
			encoded = map[string]any{"delete": c.name(w.Path)}
		} else {
			encoded = map[string]any{
				"update": map[string]any{
					"name":   c.name(w.Path),
					"fields": encodeFields(w.Fields),
				},
			}
			if len(w.Mask) > 0 {
				encoded["updateMask"] = map[string]any{"fieldPaths": w.Mask}
			}
		}

		switch w.Precondition {
		case store.MustExist:
			encoded["currentDocument"] = map[string]any{"exists": true}
		case store.MustNotExist:
			encoded["currentDocument"] = map[string]any{"exists": false}
		}
		out = append(out, encoded)
	}
	return out
}

// Patch merges fields into a document. Without a mask every given field is
// written and the others are left alone.
func (c *Client) Patch(ctx context.Context, path string, fields store.Fields, mask []string) error {
	if len(mask) == 0 {
		for k := range fields {
			mask = append(mask, k)
		}
	}

	params := url.Values{}
	for _, field := range mask {
		params.Add("updateMask.fieldPaths", field)
	}

	endpoint := c.documentURL(path) + "?" + params.Encode()
	body := map[string]any{"fields": encodeFields(fields)}
	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("failed to patch %s: %w", path, err)
	}
	return nil
}

// Delete removes a document
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.do(ctx, http.MethodDelete, c.documentURL(path), nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.WithFields(log.Fields{"method": method, "url": endpoint}).Debug("firestore request")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &store.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var statusErr *store.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Existence preconditions fail as FAILED_PRECONDITION, ALREADY_EXISTS or
// NOT_FOUND depending on the write.
func isPreconditionFailure(err *store.StatusError) bool {
	switch err.StatusCode {
	case http.StatusConflict, http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return strings.Contains(err.Body, "FAILED_PRECONDITION")
	}
	return false
}
