// Package rank scores and orders the threads a QueryFrontend request
// asks for: a period window, a weight from host-deduplicated agency
// ratings, an age penalty, and a truncated, category-grouped result.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/rating"
)

const maxThreadsPerCategory = 1000

// WeightedThread is a thread carrying the score it was ranked by.
type WeightedThread struct {
	Thread     model.Thread
	Weight     float64
	Importance float64
	AgePenalty float64
	Score      float64
}

// Params configures how threads decay with age. HalfLife is externally
// configured rather than fixed, since the right decay rate depends on
// the deployment's news cycle.
type Params struct {
	HalfLife time.Duration
}

// Window returns the threads at or after period, using the fact that
// threads are sorted by BestTime ascending.
func Window(threads []model.Thread, period time.Time) []model.Thread {
	idx := sort.Search(len(threads), func(i int) bool {
		return !threads[i].BestTime.Before(period)
	})
	return threads[idx:]
}

// Score computes weight, importance, age penalty, and score for a single
// thread as of reference time now.
func Score(t model.Thread, now time.Time, params Params, ratings map[string]float64) WeightedThread {
	weight := clusterWeight(t, ratings)
	importance := weight * math.Log1p(float64(len(t.Documents)))
	penalty := agePenalty(t.BestTime, now, params.HalfLife)

	return WeightedThread{
		Thread:     t,
		Weight:     weight,
		Importance: importance,
		AgePenalty: penalty,
		Score:      importance * penalty,
	}
}

func clusterWeight(t model.Thread, ratings map[string]float64) float64 {
	seenHosts := make(map[string]bool, len(t.Documents))
	var weight float64
	for _, doc := range t.Documents {
		if seenHosts[doc.Host] {
			continue
		}
		seenHosts[doc.Host] = true
		weight += rating.For(ratings, doc.Host)
	}
	return weight
}

// agePenalty is a monotone-decreasing function of age clamped to [0, 1]:
// exponential decay with the configured half-life. A non-positive
// halfLife disables decay entirely (penalty is always 1).
func agePenalty(bestTime, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}
	age := now.Sub(bestTime)
	if age <= 0 {
		return 1.0
	}
	penalty := math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
	if penalty < 0 {
		return 0
	}
	if penalty > 1 {
		return 1
	}
	return penalty
}

// GroupByCategory scores and sorts a window of threads, returning one
// ordered, truncated list per category and one combined ANY list.
func GroupByCategory(threads []model.Thread, now time.Time, params Params, ratings map[string]float64) map[model.Category][]WeightedThread {
	scored := make([]WeightedThread, 0, len(threads))
	for _, t := range threads {
		scored = append(scored, Score(t, now, params, ratings))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	out := make(map[model.Category][]WeightedThread, len(model.AllRankedCategories))
	out[model.CategoryAny] = truncate(scored)

	byCategory := make(map[model.Category][]WeightedThread)
	for _, wt := range scored {
		byCategory[wt.Thread.Category] = append(byCategory[wt.Thread.Category], wt)
	}
	for _, cat := range model.AllRankedCategories {
		if cat == model.CategoryAny {
			continue
		}
		out[cat] = truncate(byCategory[cat])
	}

	return out
}

func truncate(in []WeightedThread) []WeightedThread {
	if len(in) <= maxThreadsPerCategory {
		return in
	}
	return in[:maxThreadsPerCategory]
}
