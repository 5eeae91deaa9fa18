package models

// RemovedEntry describes one history entry marked for removal.
type RemovedEntry struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// TypeReport summarizes a cleanup pass over one media type.
type TypeReport struct {
	Type    string         `json:"type"` // "movies" or "episodes"
	Fetched int            `json:"fetched"`
	Unique  int            `json:"unique"`  // distinct media identities seen
	Skipped int            `json:"skipped"` // entries with no usable trakt id
	Removed []RemovedEntry `json:"removed,omitempty"`
	Err     error          `json:"-"`
}

// Report aggregates the cleanup results for a whole run.
type Report struct {
	Types []TypeReport `json:"types"`
}

// TotalRemoved returns the number of entries removed across all types.
func (r Report) TotalRemoved() int {
	total := 0
	for _, t := range r.Types {
		total += len(t.Removed)
	}
	return total
}

// AllFailed reports whether every media type failed to process, which
// usually means authentication itself failed.
func (r Report) AllFailed() bool {
	if len(r.Types) == 0 {
		return false
	}
	for _, t := range r.Types {
		if t.Err == nil {
			return false
		}
	}
	return true
}
