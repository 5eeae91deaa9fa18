package cleaner

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"

	"traktsweep/models"
	"traktsweep/services/trakt"
)

// completedProgress is the playback progress at which an entry counts as a
// full watch for keeper selection.
const completedProgress = 100

// removalAttempts bounds the retries for the history-removal call.
const removalAttempts = 3

// HistoryAPI is the slice of the Trakt client the cleaner uses.
type HistoryAPI interface {
	AllHistory(accessToken, username, mediaType string) ([]models.HistoryEntry, error)
	RemoveFromHistory(accessToken string, ids []int64) (*trakt.RemovalResult, error)
}

// TokenSource supplies the authenticated-request capability.
type TokenSource interface {
	WithToken(fn func(accessToken string) error) error
}

// Service identifies and removes duplicate watch-history entries.
type Service struct {
	api        HistoryAPI
	tokens     TokenSource
	username   string
	keepPerDay bool
	dryRun     bool
	retryDelay time.Duration
}

// mediaTypes are processed sequentially; a failure in one never aborts the
// other.
var mediaTypes = []string{"movies", "episodes"}

// NewService creates a duplicate cleaner for the given user.
func NewService(api HistoryAPI, tokens TokenSource, username string, keepPerDay, dryRun bool) *Service {
	return &Service{
		api:        api,
		tokens:     tokens,
		username:   username,
		keepPerDay: keepPerDay,
		dryRun:     dryRun,
		retryDelay: 2 * time.Second,
	}
}

// Run processes both media types and returns the aggregated report.
func (s *Service) Run() models.Report {
	var report models.Report
	for _, mediaType := range mediaTypes {
		report.Types = append(report.Types, s.cleanType(mediaType))
	}
	return report
}

// cleanType fetches one media type's history, finds duplicates, and removes
// everything but the keeper of each group.
func (s *Service) cleanType(mediaType string) models.TypeReport {
	rep := models.TypeReport{Type: mediaType}

	var history []models.HistoryEntry
	err := s.tokens.WithToken(func(accessToken string) error {
		var fetchErr error
		history, fetchErr = s.api.AllHistory(accessToken, s.username, mediaType)
		return fetchErr
	})
	if err != nil {
		log.Printf("[cleaner] fetch %s history: %v", mediaType, err)
		rep.Err = fmt.Errorf("fetch history: %w", err)
		return rep
	}
	rep.Fetched = len(history)

	groups, unique, skipped := groupEntries(history, s.keepPerDay)
	rep.Unique = unique
	rep.Skipped = skipped

	duplicates := collectDuplicates(groups)
	if len(duplicates) == 0 {
		return rep
	}

	ids := make([]int64, len(duplicates))
	removed := make([]models.RemovedEntry, len(duplicates))
	for i, entry := range duplicates {
		ids[i] = entry.ID
		removed[i] = models.RemovedEntry{ID: entry.ID, Title: entry.DisplayTitle()}
	}

	if s.dryRun {
		log.Printf("[cleaner] dry run: would remove %d %s entries", len(ids), mediaType)
		rep.Removed = removed
		return rep
	}

	result, err := s.remove(ids)
	if err != nil {
		log.Printf("[cleaner] remove %s duplicates: %v", mediaType, err)
		rep.Err = fmt.Errorf("remove duplicates: %w", err)
		return rep
	}
	log.Printf("[cleaner] removed %d movies and %d episodes from history",
		result.Deleted.Movies, result.Deleted.Episodes)
	rep.Removed = removed
	return rep
}

// remove submits the removal batch, retrying transient failures a bounded
// number of times with backoff before reporting the attempt as failed.
func (s *Service) remove(ids []int64) (*trakt.RemovalResult, error) {
	var result *trakt.RemovalResult
	err := retry.Do(
		func() error {
			return s.tokens.WithToken(func(accessToken string) error {
				var removeErr error
				result, removeErr = s.api.RemoveFromHistory(accessToken, ids)
				return removeErr
			})
		},
		retry.Attempts(removalAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// groupKey identifies a duplicate group: the media's stable trakt ID, plus
// the UTC calendar day when keep-per-day grouping is enabled.
type groupKey struct {
	mediaID int
	day     string
}

// groupEntries partitions history entries into duplicate groups. Entries
// whose media identity cannot be determined are skipped and counted.
// Returns the groups, the number of distinct media identities, and the
// skipped count.
func groupEntries(history []models.HistoryEntry, perDay bool) (map[groupKey][]models.HistoryEntry, int, int) {
	groups := make(map[groupKey][]models.HistoryEntry)
	seen := make(map[int]struct{})
	skipped := 0

	for _, entry := range history {
		id := entry.MediaID()
		if id == 0 {
			skipped++
			log.Printf("[cleaner] skipping malformed history entry %d: no trakt id", entry.ID)
			continue
		}
		seen[id] = struct{}{}

		key := groupKey{mediaID: id}
		if perDay {
			key.day = entry.WatchedAt.UTC().Format("2006-01-02")
		}
		groups[key] = append(groups[key], entry)
	}
	return groups, len(seen), skipped
}

// collectDuplicates returns every entry that is not the keeper of its
// group, ordered by entry ID for stable reporting.
func collectDuplicates(groups map[groupKey][]models.HistoryEntry) []models.HistoryEntry {
	var duplicates []models.HistoryEntry
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		keeper := selectKeeper(group)
		for _, entry := range group {
			if entry.ID != keeper.ID {
				duplicates = append(duplicates, entry)
			}
		}
	}
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].ID < duplicates[j].ID
	})
	return duplicates
}

// selectKeeper picks the entry to retain from a duplicate group. Members
// are ordered by (watched_at, entry id) so ties break deterministically.
// The earliest fully watched entry wins; with no full watch, the most
// recent entry is kept.
func selectKeeper(group []models.HistoryEntry) models.HistoryEntry {
	sorted := make([]models.HistoryEntry, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].WatchedAt.Equal(sorted[j].WatchedAt) {
			return sorted[i].WatchedAt.Before(sorted[j].WatchedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for _, entry := range sorted {
		if entry.Progress >= completedProgress {
			return entry
		}
	}
	return sorted[len(sorted)-1]
}
