// Package news loads the article corpus that the ingest pipeline indexes.
package news

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/newsrag/internal/helpers"
	"github.com/mohammad-safakhou/newsrag/models"
)

//go:embed data/articles.yaml
var embeddedCorpus []byte

// Source provides the articles for one ingestion run.
type Source interface {
	Articles(ctx context.Context) ([]models.Article, error)
}

// Corpus reads articles from a YAML file, or from the corpus compiled into
// the binary when no path is set.
type Corpus struct {
	path string
}

// NewCorpus returns a corpus source; an empty path selects the embedded data.
func NewCorpus(path string) *Corpus {
	return &Corpus{path: path}
}

// Articles loads and normalises the corpus.
func (c *Corpus) Articles(ctx context.Context) ([]models.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := embeddedCorpus
	if c.path != "" {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			return nil, fmt.Errorf("read corpus %s: %w", c.path, err)
		}
		data = raw
	}
	return ParseArticles(data)
}

type corpusFile struct {
	Articles []models.Article `yaml:"articles"`
}

// ParseArticles decodes a YAML corpus. Titles and bodies are reduced to plain
// text and URLs canonicalised. Article ids must be present and unique.
func ParseArticles(data []byte) ([]models.Article, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Articles))
	out := make([]models.Article, 0, len(file.Articles))
	for i, a := range file.Articles {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("article %d: missing id", i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("article %s: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}

		a.Title = helpers.SanitizeHTMLStrict(a.Title)
		a.Content = helpers.PlainText(a.Content)
		if a.URL != "" {
			canonical, err := helpers.CanonicalURL(a.URL)
			if err != nil {
				return nil, fmt.Errorf("article %s: url: %w", a.ID, err)
			}
			a.URL = canonical
		}
		out = append(out, a)
	}
	return out, nil
}
