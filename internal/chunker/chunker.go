// Package chunker splits article text into overlapping chunks suitable for
// embedding. Splitting is recursive over a list of separators (paragraph,
// line, sentence, word) and separators stay attached to the text they end, so
// every chunk is an exact substring of its input at a known byte offset.
package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/newsrag/models"
)

// DefaultSeparators is the split order used when none are configured.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Piece is a chunk of text and the byte offset where it starts in the input.
type Piece struct {
	Text   string
	Offset int
}

// End returns the byte offset just past the piece.
func (p Piece) End() int { return p.Offset + len(p.Text) }

// Splitter is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New returns a splitter producing chunks of at most size characters, with
// consecutive chunks sharing at most overlap characters.
func New(size, overlap int, separators ...string) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be in [0, size)")
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([]string, 0, len(separators))
	for _, s := range separators {
		if s != "" {
			seps = append(seps, s)
		}
	}
	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Split cuts text into chunks. Lengths are measured in characters (runes),
// offsets in bytes.
func (s *Splitter) Split(text string) []Piece {
	if text == "" {
		return nil
	}
	return s.merge(s.pieces(text, 0, s.separators))
}

// SplitArticle chunks the article content and attaches article metadata.
// Chunk ids are sequential from zero within the article.
func (s *Splitter) SplitArticle(a models.Article) []models.Chunk {
	pieces := s.Split(a.Content)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ArticleID: a.ID,
			ChunkID:   len(chunks),
			Title:     a.Title,
			Text:      p.Text,
			SourceURL: a.URL,
			Offset:    p.Offset,
		})
	}
	return chunks
}

// pieces breaks text into fragments no longer than the chunk size, using the
// first separator present and recursing into oversized fragments with the
// remaining separators.
func (s *Splitter) pieces(text string, offset int, seps []string) []Piece {
	if utf8.RuneCountInString(text) <= s.size {
		return []Piece{{Text: text, Offset: offset}}
	}

	sep := ""
	var rest []string
	for i, candidate := range seps {
		if strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardSplit(text, offset)
	}

	var out []Piece
	pos := offset
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > s.size {
			out = append(out, s.pieces(part, pos, rest)...)
		} else {
			out = append(out, Piece{Text: part, Offset: pos})
		}
		pos += len(part)
	}
	return out
}

// hardSplit cuts text into fixed windows of size characters.
func (s *Splitter) hardSplit(text string, offset int) []Piece {
	var out []Piece
	start, count := 0, 0
	for i := range text {
		if count == s.size {
			out = append(out, Piece{Text: text[start:i], Offset: offset + start})
			start, count = i, 0
		}
		count++
	}
	if start < len(text) {
		out = append(out, Piece{Text: text[start:], Offset: offset + start})
	}
	return out
}

// merge packs contiguous fragments into chunks. When a chunk is emitted the
// window is shrunk from the front until it fits within the overlap, and the
// retained tail seeds the next chunk.
func (s *Splitter) merge(fragments []Piece) []Piece {
	var (
		out    []Piece
		window []Piece
		total  int
	)
	for _, f := range fragments {
		n := utf8.RuneCountInString(f.Text)
		if total+n > s.size && len(window) > 0 {
			out = append(out, join(window))
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= utf8.RuneCountInString(window[0].Text)
				window = window[1:]
			}
		}
		window = append(window, f)
		total += n
	}
	if len(window) > 0 {
		out = append(out, join(window))
	}
	return out
}

func join(window []Piece) Piece {
	var b strings.Builder
	for _, p := range window {
		b.WriteString(p.Text)
	}
	return Piece{Text: b.String(), Offset: window[0].Offset}
}
