// Package thread turns clustering output (groups of document indices)
// into elected Threads: same-site duplicates dropped, a title and
// category chosen by majority, a single bestTime computed, and the
// result sorted for publication.
package thread

import (
	"sort"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
)

// Params configures how a Threader elects a title/category/bestTime for
// each cluster.
type Params struct {
	// BanThreadsFromSameSite drops all but the earliest-fetched document
	// per host within a cluster before election.
	BanThreadsFromSameSite bool
	// UseTimestampMoving makes bestTime the max member fetchTime instead
	// of the median.
	UseTimestampMoving bool
}

// categoryTieBreakOrder is the fixed order used when a majority vote for
// category ends in a tie: the earliest category in this list among the
// tied set wins.
var categoryTieBreakOrder = []model.Category{
	model.CategorySociety,
	model.CategoryEconomy,
	model.CategoryTechnology,
	model.CategorySports,
	model.CategoryEntertainment,
	model.CategoryScience,
	model.CategoryOther,
}

// Build elects a Thread for each non-empty group of document indices.
// docs is the per-cycle arena; groups holds indices into it, all
// belonging to a single language (the caller partitions by language
// before calling BatchedSLINK, and again before calling Build).
func Build(docs []*model.Document, groups [][]int, params Params, rating map[string]float64) []model.Thread {
	threads := make([]model.Thread, 0, len(groups))

	for _, group := range groups {
		members := make([]*model.Document, 0, len(group))
		for _, idx := range group {
			members = append(members, docs[idx])
		}

		if params.BanThreadsFromSameSite {
			members = dedupSameSite(members)
		}

		if len(members) == 0 {
			continue
		}

		thread := model.Thread{
			Title:     electTitle(members, rating),
			Category:  electCategory(members),
			Language:  members[0].Language,
			BestTime:  electBestTime(members, params.UseTimestampMoving),
			Documents: members,
		}
		threads = append(threads, thread)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].BestTime.Before(threads[j].BestTime)
	})

	return threads
}

// dedupSameSite keeps only the earliest-fetched document per host,
// dropping the rest so no two members of a thread share a host.
func dedupSameSite(members []*model.Document) []*model.Document {
	bestByHost := make(map[string]*model.Document, len(members))
	for _, doc := range members {
		current, ok := bestByHost[doc.Host]
		if !ok || doc.FetchTime.Before(current.FetchTime) {
			bestByHost[doc.Host] = doc
		}
	}

	out := make([]*model.Document, 0, len(bestByHost))
	for _, doc := range members {
		if bestByHost[doc.Host] == doc {
			out = append(out, doc)
			delete(bestByHost, doc.Host) // keep only the first occurrence of the winner
		}
	}
	return out
}

// electTitle picks the title of the document with the highest agency
// rating, breaking ties by earliest fetchTime, then lexicographically
// smallest fileId.
func electTitle(members []*model.Document, rating map[string]float64) string {
	best := members[0]
	bestRating := ratingFor(best.Host, rating)

	for _, doc := range members[1:] {
		docRating := ratingFor(doc.Host, rating)
		switch {
		case docRating > bestRating:
			best, bestRating = doc, docRating
		case docRating == bestRating && doc.FetchTime.Before(best.FetchTime):
			best, bestRating = doc, docRating
		case docRating == bestRating && doc.FetchTime.Equal(best.FetchTime) && doc.FileID < best.FileID:
			best, bestRating = doc, docRating
		}
	}
	return best.Title
}

func ratingFor(host string, rating map[string]float64) float64 {
	if rating == nil {
		return 1.0
	}
	if r, ok := rating[host]; ok {
		return r
	}
	return 1.0
}

// electCategory runs a majority vote over member categories. NOT_NEWS
// and UNDEFINED never win: they're abstentions. Ties are broken by the
// fixed order in categoryTieBreakOrder.
func electCategory(members []*model.Document) model.Category {
	counts := make(map[model.Category]int)
	for _, doc := range members {
		if doc.Category == model.CategoryNotNews || doc.Category == model.CategoryUndefined {
			continue
		}
		counts[doc.Category]++
	}

	if len(counts) == 0 {
		return model.CategoryOther
	}

	bestCount := -1
	var tied []model.Category
	for cat, count := range counts {
		switch {
		case count > bestCount:
			bestCount = count
			tied = []model.Category{cat}
		case count == bestCount:
			tied = append(tied, cat)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	tiedSet := make(map[model.Category]bool, len(tied))
	for _, cat := range tied {
		tiedSet[cat] = true
	}
	for _, cat := range categoryTieBreakOrder {
		if tiedSet[cat] {
			return cat
		}
	}
	return tied[0]
}

// electBestTime returns the median member fetchTime, or the max if
// timestamp moving is enabled for this language.
func electBestTime(members []*model.Document, useTimestampMoving bool) time.Time {
	times := make([]time.Time, len(members))
	for i, doc := range members {
		times[i] = doc.FetchTime
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	if useTimestampMoving {
		return times[len(times)-1]
	}

	mid := len(times) / 2
	if len(times)%2 == 1 {
		return times[mid]
	}
	// Even count: average the two middle timestamps.
	a, b := times[mid-1], times[mid]
	return a.Add(b.Sub(a) / 2)
}
