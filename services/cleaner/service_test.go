package cleaner

import (
	"errors"
	"testing"
	"time"

	"traktsweep/models"
	"traktsweep/services/trakt"
)

type fakeAPI struct {
	history    map[string][]models.HistoryEntry
	historyErr map[string]error

	removals  [][]int64
	removeErr error
}

func (f *fakeAPI) AllHistory(accessToken, username, mediaType string) ([]models.HistoryEntry, error) {
	if err := f.historyErr[mediaType]; err != nil {
		return nil, err
	}
	return f.history[mediaType], nil
}

func (f *fakeAPI) RemoveFromHistory(accessToken string, ids []int64) (*trakt.RemovalResult, error) {
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	f.removals = append(f.removals, ids)
	result := &trakt.RemovalResult{}
	result.Deleted.Movies = len(ids)
	return result, nil
}

type fakeTokens struct{}

func (fakeTokens) WithToken(fn func(accessToken string) error) error {
	return fn("token")
}

func newTestService(api *fakeAPI, keepPerDay, dryRun bool) *Service {
	svc := NewService(api, fakeTokens{}, "user", keepPerDay, dryRun)
	svc.retryDelay = time.Millisecond
	return svc
}

func movieEntry(id int64, traktID int, title, watchedAt string, progress float64) models.HistoryEntry {
	ts, err := time.Parse(time.RFC3339, watchedAt)
	if err != nil {
		panic(err)
	}
	return models.HistoryEntry{
		ID:        id,
		Type:      "movie",
		WatchedAt: ts,
		Progress:  progress,
		Movie:     &models.Movie{Title: title, IDs: models.IDs{Trakt: traktID}},
	}
}

func episodeEntry(id int64, traktID int, show, title, watchedAt string) models.HistoryEntry {
	ts, err := time.Parse(time.RFC3339, watchedAt)
	if err != nil {
		panic(err)
	}
	return models.HistoryEntry{
		ID:        id,
		Type:      "episode",
		WatchedAt: ts,
		Episode:   &models.Episode{Title: title, IDs: models.IDs{Trakt: traktID}},
		Show:      &models.Show{Title: show},
	}
}

func reportFor(t *testing.T, report models.Report, mediaType string) models.TypeReport {
	t.Helper()
	for _, rep := range report.Types {
		if rep.Type == mediaType {
			return rep
		}
	}
	t.Fatalf("no report for %s", mediaType)
	return models.TypeReport{}
}

func removedIDs(rep models.TypeReport) []int64 {
	ids := make([]int64, len(rep.Removed))
	for i, r := range rep.Removed {
		ids[i] = r.ID
	}
	return ids
}

func TestSingleEntriesNeverRemoved(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 100),
			movieEntry(2, 43, "Ronin", "2024-01-02T10:00:00Z", 100),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if len(movies.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", movies.Removed)
	}
	if movies.Unique != 2 || movies.Fetched != 2 {
		t.Fatalf("unexpected counts %+v", movies)
	}
	if len(api.removals) != 0 {
		t.Fatalf("expected no removal call, got %v", api.removals)
	}
}

func TestKeeperPrefersCompletedWatch(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 50),
			movieEntry(2, 42, "Heat", "2024-01-02T10:00:00Z", 100),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected entry 1 removed, got %v", ids)
	}
}

func TestKeeperPrefersEarliestCompletedWatch(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(3, 42, "Heat", "2024-01-03T10:00:00Z", 100),
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 100),
			movieEntry(2, 42, "Heat", "2024-01-02T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("expected entries 2 and 3 removed, got %v", ids)
	}
}

func TestKeeperFallsBackToLatestWatch(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 0),
			movieEntry(2, 42, "Heat", "2024-01-03T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected entry 1 removed, got %v", ids)
	}
}

func TestTieBreakByEntryID(t *testing.T) {
	// identical timestamps: entry id orders the group, highest id is kept
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(9, 42, "Heat", "2024-01-01T10:00:00Z", 0),
			movieEntry(3, 42, "Heat", "2024-01-01T10:00:00Z", 0),
			movieEntry(6, 42, "Heat", "2024-01-01T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 2 || ids[0] != 3 || ids[1] != 6 {
		t.Fatalf("expected entries 3 and 6 removed, got %v", ids)
	}
}

func TestKeepPerDayGroupsByCalendarDay(t *testing.T) {
	sameDay := []models.HistoryEntry{
		movieEntry(1, 42, "Heat", "2024-01-01T08:00:00Z", 0),
		movieEntry(2, 42, "Heat", "2024-01-01T22:00:00Z", 0),
	}
	differentDays := []models.HistoryEntry{
		movieEntry(3, 43, "Ronin", "2024-01-01T10:00:00Z", 0),
		movieEntry(4, 43, "Ronin", "2024-01-03T10:00:00Z", 0),
	}

	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": append(sameDay, differentDays...),
	}}
	report := newTestService(api, true, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only entry 1 removed, got %v", ids)
	}
}

func TestWithoutKeepPerDayDifferentDaysCollapse(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(3, 43, "Ronin", "2024-01-01T10:00:00Z", 0),
			movieEntry(4, 43, "Ronin", "2024-01-03T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("expected entry 3 removed, got %v", ids)
	}
}

func TestMalformedEntriesSkipped(t *testing.T) {
	noIdentity := models.HistoryEntry{ID: 5, Type: "movie", WatchedAt: time.Now()}
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			noIdentity,
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if movies.Skipped != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", movies.Skipped)
	}
	if len(movies.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", movies.Removed)
	}
}

func TestFetchFailureIsolatedPerType(t *testing.T) {
	api := &fakeAPI{
		history: map[string][]models.HistoryEntry{
			"episodes": {
				episodeEntry(1, 7, "Show", "Pilot", "2024-01-01T10:00:00Z"),
				episodeEntry(2, 7, "Show", "Pilot", "2024-01-02T10:00:00Z"),
			},
		},
		historyErr: map[string]error{"movies": errors.New("boom")},
	}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if movies.Err == nil {
		t.Fatal("expected movies fetch error to be reported")
	}
	if len(movies.Removed) != 0 {
		t.Fatalf("failed fetch must contribute zero duplicates, got %v", movies.Removed)
	}

	episodes := reportFor(t, report, "episodes")
	if episodes.Err != nil {
		t.Fatalf("episodes should still be processed, got %v", episodes.Err)
	}
	if ids := removedIDs(episodes); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected episode entry 1 removed, got %v", ids)
	}
	if episodes.Removed[0].Title != "Show - Pilot" {
		t.Fatalf("expected show-prefixed title, got %q", episodes.Removed[0].Title)
	}
}

func TestRemovalFailureReported(t *testing.T) {
	api := &fakeAPI{
		history: map[string][]models.HistoryEntry{
			"movies": {
				movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 0),
				movieEntry(2, 42, "Heat", "2024-01-02T10:00:00Z", 0),
			},
		},
		removeErr: errors.New("server error"),
	}
	report := newTestService(api, false, false).Run()

	movies := reportFor(t, report, "movies")
	if movies.Err == nil {
		t.Fatal("expected removal failure to be reported")
	}
	if len(movies.Removed) != 0 {
		t.Fatalf("failed removal must not be reported as removed, got %v", movies.Removed)
	}
}

func TestDryRunSkipsRemovalCall(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 0),
			movieEntry(2, 42, "Heat", "2024-01-02T10:00:00Z", 0),
		},
	}}
	report := newTestService(api, false, true).Run()

	movies := reportFor(t, report, "movies")
	if ids := removedIDs(movies); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected entry 1 flagged, got %v", ids)
	}
	if len(api.removals) != 0 {
		t.Fatalf("dry run must not call the removal endpoint, got %v", api.removals)
	}
}

func TestRemovalBatchContainsAllDuplicateIDs(t *testing.T) {
	api := &fakeAPI{history: map[string][]models.HistoryEntry{
		"movies": {
			movieEntry(1, 42, "Heat", "2024-01-01T10:00:00Z", 0),
			movieEntry(2, 42, "Heat", "2024-01-02T10:00:00Z", 0),
			movieEntry(3, 43, "Ronin", "2024-01-01T10:00:00Z", 0),
			movieEntry(4, 43, "Ronin", "2024-01-02T10:00:00Z", 0),
		},
	}}
	newTestService(api, false, false).Run()

	if len(api.removals) != 1 {
		t.Fatalf("expected one removal batch, got %d", len(api.removals))
	}
	batch := api.removals[0]
	if len(batch) != 2 || batch[0] != 1 || batch[1] != 3 {
		t.Fatalf("unexpected batch %v", batch)
	}
}
