package models

import "errors"

var (
	// ErrEmbeddingCountMismatch is returned when an embedding backend returns a
	// different number of vectors than texts it was given.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	// ErrEmptyEmbedding is returned when a backend yields a zero-length vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
	// ErrEmbeddingDimension is returned when a vector does not match the
	// collection's dimension.
	ErrEmbeddingDimension = errors.New("embedding dimension mismatch")
	// ErrEmptyGeneration is returned when the model produces no text for a
	// prompt, including when the prompt was blocked.
	ErrEmptyGeneration = errors.New("empty generation")
	// ErrSessionConflict is returned when a session history update keeps
	// losing races with concurrent writers.
	ErrSessionConflict = errors.New("session history update conflict")
)

// Article is one entry of the news corpus.
type Article struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	URL     string `json:"url" yaml:"url"`
}

// Chunk is a contiguous slice of an article's content.
type Chunk struct {
	ArticleID string `json:"articleId"`
	ChunkID   int    `json:"chunkId"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	SourceURL string `json:"sourceUrl"`
	// Offset is the byte offset of Text within the article content.
	Offset int `json:"offset"`
}

// Payload returns the metadata stored next to the chunk's vector.
func (c Chunk) Payload() ChunkPayload {
	return ChunkPayload{
		ArticleID: c.ArticleID,
		SourceURL: c.SourceURL,
		Text:      c.Text,
		ChunkID:   c.ChunkID,
		Title:     c.Title,
	}
}

// ChunkPayload is the metadata kept alongside every vector point.
type ChunkPayload struct {
	ArticleID string `json:"articleId"`
	SourceURL string `json:"sourceUrl"`
	Text      string `json:"text"`
	ChunkID   int    `json:"chunkId"`
	Title     string `json:"title,omitempty"`
}
