package news

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCorpusLoads(t *testing.T) {
	articles, err := NewCorpus("").Articles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 50)

	first := articles[0]
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, "Global Chip Shortage Impacts Auto Industry", first.Title)
	assert.Equal(t, "https://mocknews.com/chip-shortage-auto", first.URL)
	assert.NotEmpty(t, first.Content)
}

func TestParseArticlesNormalises(t *testing.T) {
	data := []byte(`
articles:
  - id: " x1 "
    title: "<b>Markets</b> &amp; Rates"
    url: "HTTPS://News.Example.com/markets?utm_source=feed"
    content: "<p>Rates held steady.</p><p>Stocks rallied.</p>"
`)
	articles, err := ParseArticles(data)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "x1", a.ID)
	assert.Equal(t, "Markets & Rates", a.Title)
	assert.Equal(t, "https://news.example.com/markets", a.URL)
	assert.Equal(t, "Rates held steady.\nStocks rallied.", a.Content)
}

func TestParseArticlesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing id":   "articles:\n  - title: t\n    content: c\n",
		"duplicate id": "articles:\n  - id: a\n    content: c\n  - id: a\n    content: d\n",
		"bad url":      "articles:\n  - id: a\n    content: c\n    url: \"ftp://x\"\n",
		"bad yaml":     "articles: [",
	}
	for name, body := range cases {
		_, err := ParseArticles([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestParseArticlesEmptyCorpus(t *testing.T) {
	articles, err := ParseArticles([]byte("articles: []\n"))
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestCorpusFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("articles:\n  - id: f1\n    title: File\n    content: Body text.\n"), 0o600))

	articles, err := NewCorpus(path).Articles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "f1", articles[0].ID)

	_, err = NewCorpus(filepath.Join(t.TempDir(), "missing.yaml")).Articles(context.Background())
	assert.Error(t, err)
}
