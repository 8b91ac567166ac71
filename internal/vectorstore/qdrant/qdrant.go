// Package qdrant talks to Qdrant over its REST API.
package qdrant

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

	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
)

var errNotFound = errors.New("qdrant: not found")

// Config points the client at a collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client is a vectorstore.Store bound to one Qdrant collection.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
}

var _ vectorstore.Store = (*Client)(nil)

// New returns a client; it does not contact the server.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(c.collection) + suffix
}

// EnsureCollection creates the collection when the server reports it missing.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	_, err := c.do(ctx, http.MethodGet, c.collectionPath(""), nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		return fmt.Errorf("get collection %s: %w", c.collection, err)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := c.do(ctx, http.MethodPut, c.collectionPath(""), body); err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	return nil
}

type pointStruct struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload models.ChunkPayload `json:"payload"`
}

// Upsert writes all points in a single request and waits for the operation
// to be applied.
func (c *Client) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([]pointStruct, 0, len(points))
	for _, p := range points {
		batch = append(batch, pointStruct{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}
	data, err := c.do(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), map[string]any{"points": batch})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	var resp struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("decode upsert response: %w", err)
	}
	if resp.Result.Status != "completed" && resp.Result.Status != "acknowledged" {
		return fmt.Errorf("upsert %d points: unexpected status %q", len(points), resp.Result.Status)
	}
	return nil
}

// Search runs a top-k similarity query with payloads included.
func (c *Client) Search(ctx context.Context, vector []float32, k int) ([]vectorstore.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	data, err := c.do(ctx, http.MethodPost, c.collectionPath("/points/search"), body)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var parsed struct {
		Result []struct {
			ID      any                 `json:"id"`
			Score   float32             `json:"score"`
			Payload models.ChunkPayload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]vectorstore.Hit, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		hits = append(hits, vectorstore.Hit{
			ID:      fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return hits, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
