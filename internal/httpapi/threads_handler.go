package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/0xfaulty/tgcontest/internal/apperr"
	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/rank"
)

const maxThreadsInResponse = 1000

type threadArticle = string

type threadResponse struct {
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Articles []threadArticle `json:"articles"`
}

// handleThreads implements the read path: threads(period, lang, category)
// -> HotIndex.atomicGet() -> Ranker -> JSON.
func (s *Server) handleThreads(c echo.Context) error {
	idx := s.hot.Get()
	if idx == nil {
		return respondErr(c, fmt.Errorf("%w: clustering index is not ready yet", apperr.ErrNotReady))
	}

	lang, err := parseLangCode(c.QueryParam("lang_code"))
	if err != nil {
		return respondErr(c, fmt.Errorf("%w: lang_code %s", apperr.ErrBadRequest, err))
	}

	category, err := parseCategoryFilter(c.QueryParam("category"))
	if err != nil {
		return respondErr(c, fmt.Errorf("%w: category %s", apperr.ErrBadRequest, err))
	}

	period, err := parsePeriodSeconds(c.QueryParam("period"))
	if err != nil {
		return respondErr(c, fmt.Errorf("%w: period %s", apperr.ErrBadRequest, err))
	}

	threads := idx.Lookup(lang)
	windowStart := idx.IterTimestamp.Add(-period)
	windowed := rank.Window(threads, windowStart)

	grouped := rank.GroupByCategory(windowed, idx.IterTimestamp, s.rankParams, s.ratings)
	ranked := grouped[category]
	if len(ranked) > maxThreadsInResponse {
		ranked = ranked[:maxThreadsInResponse]
	}

	out := make([]threadResponse, 0, len(ranked))
	for _, wt := range ranked {
		articles := make([]threadArticle, 0, len(wt.Thread.Documents))
		for _, doc := range wt.Thread.Documents {
			articles = append(articles, doc.FileID)
		}
		out = append(out, threadResponse{
			Title:    wt.Thread.Title,
			Category: wt.Thread.Category.String(),
			Articles: articles,
		})
	}

	return success(c, map[string]any{"threads": out})
}

func parseLangCode(raw string) (model.Language, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case "", "ru":
		return model.LanguageRU, nil
	case "en":
		return model.LanguageEN, nil
	case "other":
		return model.LanguageOther, nil
	default:
		return model.LanguageUndefined, fmt.Errorf("must be one of ru, en, other")
	}
}

func parseCategoryFilter(raw string) (model.Category, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return model.CategoryAny, nil
	}
	cat, err := model.ParseCategory(trimmed)
	if err != nil {
		return model.CategoryUndefined, err
	}
	if cat == model.CategoryUndefined {
		return model.CategoryUndefined, fmt.Errorf("must not be undefined")
	}
	return cat, nil
}

func parsePeriodSeconds(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 24 * time.Hour, nil
	}
	seconds, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, fmt.Errorf("must be >= 0")
	}
	return time.Duration(seconds) * time.Second, nil
}
