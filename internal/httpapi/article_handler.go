package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/0xfaulty/tgcontest/internal/apperr"
	"github.com/0xfaulty/tgcontest/internal/globaltime"
	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/payloadschema"
)

const maxArticleBodyBytes = 4 << 20 // 4 MiB

// handlePutArticle implements the ingest path: PUT article/{fileId} with
// HTML body and Cache-Control: max-age=<ttl> -> Annotator ->
// DocumentStore.put -> Created/NoContent.
func (s *Server) handlePutArticle(c echo.Context) error {
	if !s.hot.Ready() {
		return respondErr(c, fmt.Errorf("%w: clustering index is not ready yet", apperr.ErrNotReady))
	}

	fileID := strings.TrimSpace(c.Param("fileId"))
	if fileID == "" {
		return respondErr(c, fmt.Errorf("%w: fileId is required", apperr.ErrBadRequest))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxArticleBodyBytes+1))
	if err != nil {
		return respondErr(c, fmt.Errorf("%w: body could not be read", apperr.ErrBadRequest))
	}
	if len(body) == 0 {
		return respondErr(c, fmt.Errorf("%w: body must not be empty", apperr.ErrBadRequest))
	}
	if len(body) > maxArticleBodyBytes {
		return respondErr(c, fmt.Errorf("%w: body exceeds maximum article size", apperr.ErrBadRequest))
	}

	contentType := c.Request().Header.Get("Content-Type")
	var doc *model.Document
	var ok bool

	if strings.Contains(strings.ToLower(contentType), "application/json") {
		doc, ok, err = s.buildDocumentFromJSON(body)
	} else {
		doc, ok, err = s.buildDocumentFromHTML(c, fileID, body)
	}
	if err != nil {
		return respondErr(c, fmt.Errorf("%w: %s", apperr.ErrBadRequest, err))
	}
	if !ok {
		// AnnotatorSkip: not an error, respond as if the document were
		// accepted without storing annotation details.
		return c.NoContent(http.StatusNoContent)
	}
	doc.FileID = fileID

	if err := doc.Validate(); err != nil {
		return respondErr(c, fmt.Errorf("%w: %s", apperr.ErrBadRequest, err))
	}

	existed, err := s.store.Put(c.Request().Context(), doc)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", fileID).Msg("failed to store document")
		return respondErr(c, fmt.Errorf("%w: %s", apperr.ErrStorage, err))
	}

	if existed {
		return c.NoContent(http.StatusNoContent)
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) buildDocumentFromHTML(c echo.Context, fileID string, html []byte) (*model.Document, bool, error) {
	ttl, err := parseCacheControlMaxAge(c.Request().Header.Get("Cache-Control"))
	if err != nil {
		return nil, false, err
	}

	canonicalURL := c.QueryParam("url")
	if strings.TrimSpace(canonicalURL) == "" {
		canonicalURL = fmt.Sprintf("https://unknown.invalid/%s", fileID)
	}

	return s.annotator.Annotate(c.Request().Context(), fileID, canonicalURL, html, globaltime.UTC(), ttl)
}

func (s *Server) buildDocumentFromJSON(raw []byte) (*model.Document, bool, error) {
	payload, err := payloadschema.ValidateDocumentPayload(raw)
	if err != nil {
		return nil, false, err
	}

	lang, err := model.ParseLanguage(payload.Language)
	if err != nil {
		return nil, false, err
	}
	category, err := model.ParseCategory(payload.Category)
	if err != nil {
		return nil, false, err
	}
	fetchTime, err := time.Parse(time.RFC3339, payload.FetchTime)
	if err != nil {
		return nil, false, err
	}

	doc := &model.Document{
		URL:       payload.URL,
		Title:     payload.Title,
		FetchTime: fetchTime,
		TTL:       time.Duration(payload.TTLSeconds) * time.Second,
		Language:  lang,
		Category:  category,
	}
	if host, err := parseHost(payload.URL); err == nil {
		doc.Host = host
	}
	if payload.PubTime != nil {
		if pubTime, err := time.Parse(time.RFC3339, *payload.PubTime); err == nil {
			doc.PubTime = pubTime
		}
	}
	if len(payload.Embeddings) > 0 {
		doc.Embeddings = make(map[model.EmbeddingKey]model.Embedding, len(payload.Embeddings))
		for k, v := range payload.Embeddings {
			doc.Embeddings[model.EmbeddingKey(k)] = model.Embedding(v)
		}
	}

	return doc, true, nil
}

// parseCacheControlMaxAge extracts ttl from a header like
// "max-age=3600, no-cache". A missing or unparsable max-age is a 400.
func parseCacheControlMaxAge(header string) (time.Duration, error) {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		key, value, found := strings.Cut(part, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds < 0 {
			return 0, fmt.Errorf("invalid Cache-Control max-age")
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("Cache-Control: max-age=<seconds> header is required")
}

func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}

// handleDeleteArticle implements the delete path: DELETE article/{fileId}
// -> DocumentStore.delete -> NoContent/NotFound.
func (s *Server) handleDeleteArticle(c echo.Context) error {
	fileID := strings.TrimSpace(c.Param("fileId"))
	if fileID == "" {
		return respondErr(c, fmt.Errorf("%w: fileId is required", apperr.ErrBadRequest))
	}

	existed, err := s.store.Delete(c.Request().Context(), fileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", fileID).Msg("failed to delete document")
		return respondErr(c, fmt.Errorf("%w: %s", apperr.ErrStorage, err))
	}
	if !existed {
		return respondErr(c, fmt.Errorf("%w: article not found", apperr.ErrNotFound))
	}
	return c.NoContent(http.StatusNoContent)
}

// handleGetArticle is a supplemental debug lookup, not part of the core
// interface: it lets an operator inspect what DocumentStore actually
// holds for a fileId.
func (s *Server) handleGetArticle(c echo.Context) error {
	fileID := strings.TrimSpace(c.Param("fileId"))
	if fileID == "" {
		return respondErr(c, fmt.Errorf("%w: fileId is required", apperr.ErrBadRequest))
	}

	doc, ok, err := s.store.Get(c.Request().Context(), fileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", fileID).Msg("failed to look up document")
		return respondErr(c, fmt.Errorf("%w: %s", apperr.ErrStorage, err))
	}
	if !ok {
		return respondErr(c, fmt.Errorf("%w: article not found", apperr.ErrNotFound))
	}
	return success(c, doc)
}
