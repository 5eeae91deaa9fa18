package models

import "time"

// IDs holds external identifiers for a media item.
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a Trakt movie.
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show represents a Trakt TV show.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Episode represents a Trakt episode.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

// HistoryEntry represents one watch event from the user's Trakt history.
// ID identifies the watch event itself; the embedded movie or episode
// carries the stable media identity. Progress is only populated when the
// history is fetched with extended details.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	WatchedAt time.Time `json:"watched_at"`
	Action    string    `json:"action"` // "watch", "scrobble", or "checkin"
	Type      string    `json:"type"`   // "movie" or "episode"
	Progress  float64   `json:"progress,omitempty"`
	Movie     *Movie    `json:"movie,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
	Show      *Show     `json:"show,omitempty"`
}

// MediaID returns the stable Trakt ID of the watched media (movie or
// episode), or 0 when the entry carries no usable identity.
func (e HistoryEntry) MediaID() int {
	switch {
	case e.Movie != nil:
		return e.Movie.IDs.Trakt
	case e.Episode != nil:
		return e.Episode.IDs.Trakt
	default:
		return 0
	}
}

// DisplayTitle returns a human-readable title for reporting. Episodes are
// prefixed with their show title when the show reference is present.
func (e HistoryEntry) DisplayTitle() string {
	switch {
	case e.Movie != nil:
		return e.Movie.Title
	case e.Episode != nil:
		if e.Show != nil && e.Show.Title != "" {
			return e.Show.Title + " - " + e.Episode.Title
		}
		return e.Episode.Title
	default:
		return ""
	}
}
