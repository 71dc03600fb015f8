package models

// Image is one entry of an album's artwork list.
type Image struct {
	URL string `json:"url"`
}

// ArtistRef is an artist as listed on an album.
type ArtistRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SpotifyURL string `json:"spotify_url,omitempty"`
}

type AlbumSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []ArtistRef `json:"artists"`
	Images      []Image     `json:"images"`
	ReleaseDate string      `json:"release_date"`
	// Popularity is only populated by the full album lookup.
	Popularity int    `json:"popularity"`
	SpotifyURL string `json:"spotify_url,omitempty"`
}

// ArtistIDs returns the album's artist ids in listed order.
func (a AlbumSummary) ArtistIDs() []string {
	ids := make([]string, 0, len(a.Artists))
	for _, artist := range a.Artists {
		ids = append(ids, artist.ID)
	}
	return ids
}

type ArtistSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type TrackRef struct {
	ID string `json:"id"`
}

type AudioFeatures struct {
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
}

// Feature names one of the aggregated audio descriptors.
type Feature string

const (
	Danceability Feature = "danceability"
	Energy       Feature = "energy"
)

// Value returns the descriptor f from the feature set.
func (af AudioFeatures) Value(f Feature) (float64, bool) {
	switch f {
	case Danceability:
		return af.Danceability, true
	case Energy:
		return af.Energy, true
	}
	return 0, false
}

type Recommendation struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []ArtistRef `json:"artists"`
	SpotifyURL string      `json:"spotify_url,omitempty"`
	PreviewURL string      `json:"preview_url,omitempty"`
}

// ArtistURL is the page of the first credited artist, if any.
func (r Recommendation) ArtistURL() string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0].SpotifyURL
}

type RecommendationSet struct {
	Tracks []Recommendation `json:"tracks"`
}

// EnrichedResult is everything the result page renders for one query.
type EnrichedResult struct {
	Album           AlbumSummary     `json:"album"`
	Genres          string           `json:"genres"`
	Popularity      int              `json:"popularity"`
	Danceability    int              `json:"danceability"`
	Energy          int              `json:"energy"`
	Recommendations []Recommendation `json:"recommendations"`
	ReleaseDate     string           `json:"release_date"`
	CoverArt        string           `json:"cover_art"`
}
