package model

import "time"

// Playlist is a user-owned, ordered collection of songs.
// Songs is only populated by calls that load the full contents.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       string    `json:"-"`
	SongCount   int       `json:"songCount"`
	CreatedAt   time.Time `json:"createdAt"`
	Songs       []*Song   `json:"songs"`
}

// Song is one entry of a playlist. Duration is in seconds.
// ID identifies the song within its playlist (client-supplied on add).
type Song struct {
	ID       string    `json:"song_id"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Image    string    `json:"image,omitempty"`
	Duration float64   `json:"duration"`
	URL      string    `json:"url,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
}
