package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
	"github.com/mohammad-safakhou/newsrag/models"
)

type recorded struct {
	method string
	path   string
	query  string
	apiKey string
	body   map[string]any
}

type fakeQdrant struct {
	mu       sync.Mutex
	requests []recorded
	exists   bool
	status   string
}

func (f *fakeQdrant) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &body))
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("api-key"), body})

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/news_articles":
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"status":{"error":"Not found: Collection news_articles doesn't exist!"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"result":{"status":"green"},"status":"ok"}`)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news_articles":
			f.exists = true
			_, _ = io.WriteString(w, `{"result":true,"status":"ok"}`)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news_articles/points":
			_, _ = io.WriteString(w, `{"result":{"operation_id":1,"status":"`+f.status+`"},"status":"ok"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/collections/news_articles/points/search":
			_, _ = io.WriteString(w, `{"result":[
				{"id":"8c1c9a2e-9a6f-5b1d-9c3e-1d2f3a4b5c6d","score":0.91,"payload":{"articleId":"a1","sourceUrl":"https://mocknews.com/chip-shortage-auto","text":"Chip text","chunkId":0,"title":"Chips"}},
				{"id":42,"score":0.55,"payload":{"articleId":"a2","sourceUrl":"https://mocknews.com/renewable-policy","text":"Policy text","chunkId":3}}
			],"status":"ok"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"status":{"error":"unexpected"}}`)
		}
	}
}

func (f *fakeQdrant) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newClient(t *testing.T, f *fakeQdrant) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "news_articles"})
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	f := &fakeQdrant{}
	c := newClient(t, f)

	require.NoError(t, c.EnsureCollection(context.Background(), 1024))
	require.Len(t, f.calls(), 2)
	create := f.calls()[1]
	assert.Equal(t, http.MethodPut, create.method)
	assert.Equal(t, "secret", create.apiKey)
	vectors := create.body["vectors"].(map[string]any)
	assert.Equal(t, float64(1024), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionNoopWhenPresent(t *testing.T) {
	f := &fakeQdrant{exists: true}
	c := newClient(t, f)

	require.NoError(t, c.EnsureCollection(context.Background(), 1024))
	assert.Len(t, f.calls(), 1)
}

func TestUpsertSendsSingleBatchAndWaits(t *testing.T) {
	f := &fakeQdrant{exists: true, status: "completed"}
	c := newClient(t, f)

	points := []vectorstore.Point{
		{ID: "id-1", Vector: []float32{0.1, 0.2}, Payload: models.ChunkPayload{ArticleID: "a1", ChunkID: 0, Text: "one", SourceURL: "u"}},
		{ID: "id-2", Vector: []float32{0.3, 0.4}, Payload: models.ChunkPayload{ArticleID: "a1", ChunkID: 1, Text: "two", SourceURL: "u"}},
	}
	require.NoError(t, c.Upsert(context.Background(), points))
	require.Len(t, f.calls(), 1)
	req := f.calls()[0]
	assert.Equal(t, "wait=true", req.query)
	sent := req.body["points"].([]any)
	require.Len(t, sent, 2)
	first := sent[0].(map[string]any)
	assert.Equal(t, "id-1", first["id"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, "a1", payload["articleId"])
	assert.Equal(t, float64(0), payload["chunkId"])
	assert.Equal(t, "one", payload["text"])
}

func TestUpsertRejectsUnexpectedStatus(t *testing.T) {
	f := &fakeQdrant{exists: true, status: "failed"}
	c := newClient(t, f)

	err := c.Upsert(context.Background(), []vectorstore.Point{{ID: "x", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	f := &fakeQdrant{}
	c := newClient(t, f)
	require.NoError(t, c.Upsert(context.Background(), nil))
	assert.Empty(t, f.calls())
}

func TestSearchDecodesHits(t *testing.T) {
	f := &fakeQdrant{exists: true}
	c := newClient(t, f)

	hits, err := c.Search(context.Background(), []float32{0.5, 0.5}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, float32(0.91), hits[0].Score)
	assert.Equal(t, "a1", hits[0].Payload.ArticleID)
	assert.Equal(t, "Chips", hits[0].Payload.Title)
	assert.Equal(t, "42", hits[1].ID)
	assert.Equal(t, 3, hits[1].Payload.ChunkID)

	body := f.calls()[0].body
	assert.Equal(t, float64(4), body["limit"])
	assert.Equal(t, true, body["with_payload"])
}

func TestServerErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "down")
	}))
	defer srv.Close()
	c := New(Config{URL: srv.URL, Collection: "news_articles"})

	_, err := c.Search(context.Background(), []float32{1}, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Error(t, c.EnsureCollection(context.Background(), 3))
}
