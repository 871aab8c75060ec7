package model

import "time"

// Thread is an elected, ranked-eligible cluster: a title and category have
// been chosen for it, and it carries a single bestTime used for ordering.
type Thread struct {
	Title    string
	Category Category
	Language Language
	BestTime time.Time

	Documents []*Document // member documents; with the same-site ban on, only the earliest-fetched document per host is kept
}

// ThreadIndex is the per-language, bestTime-ordered view published by
// HotIndex. Callers must never mutate a ThreadIndex obtained from
// HotIndex.Get; it is shared across concurrent readers.
type ThreadIndex struct {
	ByLanguage     map[Language][]Thread
	IterTimestamp  time.Time
}

// Lookup returns the threads for language lang ordered by BestTime asc,
// or nil if the language has no threads this cycle.
func (idx *ThreadIndex) Lookup(lang Language) []Thread {
	if idx == nil {
		return nil
	}
	return idx.ByLanguage[lang]
}
