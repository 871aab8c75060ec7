// Package annotate implements the Annotator collaborator: turning raw
// HTML plus a file id into an AnnotatedDocument, or reporting that the
// document should be skipped. Category classification and embedding
// generation depend on trained models this repository does not carry,
// so this package wires small interfaces for them and ships one real
// collaborator (language detection) plus stub defaults for the other two.
package annotate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"github.com/0xfaulty/tgcontest/internal/langdetect"
	"github.com/0xfaulty/tgcontest/internal/model"
)

// CategoryClassifier assigns a Category to extracted article text. The
// concrete model is out of scope; DefaultCategoryClassifier is a
// placeholder that labels every document with non-blank text as
// CategoryOther, so until a real model is wired in every such document
// counts as news and is embedded and clustered.
type CategoryClassifier interface {
	Classify(ctx context.Context, title, text string, lang model.Language) (model.Category, error)
}

// Embedder produces a unit-norm embedding vector for article text. The
// concrete model is out of scope; DefaultEmbedder is a placeholder.
type Embedder interface {
	Embed(ctx context.Context, title, text string, lang model.Language) (model.EmbeddingKey, model.Embedding, error)
}

// Annotator is the small interface the rest of the system depends on.
type Annotator interface {
	// Annotate parses html and produces a Document, or reports ok=false
	// if the document should be skipped (AnnotatorSkip, not an error).
	Annotate(ctx context.Context, fileID, canonicalURL string, html []byte, fetchTime time.Time, ttl time.Duration) (doc *model.Document, ok bool, err error)
}

// HTMLAnnotator extracts readable text via go-readability, detects
// language via lingua-go, and delegates category and embedding to the
// pluggable collaborators above.
type HTMLAnnotator struct {
	Category CategoryClassifier
	Embed    Embedder

	// SkipNotNews reports a not-news classification as AnnotatorSkip
	// (ok=false) instead of returning a Document to store. When false,
	// not-news documents are still stored, just never embedded, and are
	// filtered out downstream by Document.IsNews.
	SkipNotNews bool
}

// NewHTMLAnnotator wires the default placeholder collaborators unless
// overridden.
func NewHTMLAnnotator(category CategoryClassifier, embedder Embedder, skipNotNews bool) *HTMLAnnotator {
	if category == nil {
		category = DefaultCategoryClassifier{}
	}
	if embedder == nil {
		embedder = DefaultEmbedder{}
	}
	return &HTMLAnnotator{Category: category, Embed: embedder, SkipNotNews: skipNotNews}
}

func (a *HTMLAnnotator) Annotate(ctx context.Context, fileID, canonicalURL string, html []byte, fetchTime time.Time, ttl time.Duration) (*model.Document, bool, error) {
	pageURL, err := url.Parse(canonicalURL)
	if err != nil {
		return nil, false, fmt.Errorf("parse canonical url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(html)), pageURL)
	if err != nil {
		return nil, false, fmt.Errorf("extract article: %w", err)
	}

	var textBuf strings.Builder
	if article.Node != nil {
		if err := article.RenderText(&textBuf); err != nil {
			return nil, false, fmt.Errorf("render article text: %w", err)
		}
	}

	title := strings.TrimSpace(article.Title())
	text := strings.TrimSpace(textBuf.String())
	if title == "" || text == "" {
		return nil, false, nil
	}

	langCode := langdetect.DetectISO6391(text)
	lang := model.LanguageOther
	switch langCode {
	case "ru":
		lang = model.LanguageRU
	case "en":
		lang = model.LanguageEN
	case "":
		lang = model.LanguageUndefined
	}

	category, err := a.Category.Classify(ctx, title, text, lang)
	if err != nil {
		return nil, false, fmt.Errorf("classify category: %w", err)
	}

	doc := &model.Document{
		FileID:    fileID,
		URL:       canonicalURL,
		Host:      strings.ToLower(pageURL.Hostname()),
		Title:     title,
		FetchTime: fetchTime,
		TTL:       ttl,
		Language:  lang,
		Category:  category,
	}

	if category == model.CategoryNotNews && a.SkipNotNews {
		return nil, false, nil
	}
	if category == model.CategoryNotNews || category == model.CategoryUndefined {
		return doc, true, nil
	}

	key, embedding, err := a.Embed.Embed(ctx, title, text, lang)
	if err != nil {
		return nil, false, fmt.Errorf("embed article: %w", err)
	}
	doc.Embeddings = map[model.EmbeddingKey]model.Embedding{key: embedding}

	return doc, true, nil
}
