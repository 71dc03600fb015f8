package spotifytest

// Sample album identifiers served by SampleCatalog.
const (
	SampleQuery    = "bronco"
	SampleAlbumID  = "3cUgPvlMMWAe3kz5HNrCyd"
	SampleArtistID = "7Ip2oavLvqsSdpgC5oEHbo"
)

// SampleCatalog is one album with three tracks (one without features), an
// artist with two genres and a recommendation pool mixing popular and obscure
// tracks.
func SampleCatalog() Catalog {
	return Catalog{
		Albums: map[string]Album{
			SampleAlbumID: {
				ID:        SampleAlbumID,
				Name:      "Bronco",
				ArtistIDs: []string{SampleArtistID},
				Images: []string{
					"https://i.scdn.co/image/bronco-640",
					"https://i.scdn.co/image/bronco-300",
					"https://i.scdn.co/image/bronco-64",
				},
				ReleaseDate: "2022-04-08",
				Popularity:  61,
				TrackIDs:    []string{"track-1", "track-2", "track-3"},
			},
		},
		Artists: map[string]Artist{
			SampleArtistID: {ID: SampleArtistID, Name: "Orville Peck", Genres: []string{"alt country", "queer country"}},
			"artist-2":     {ID: "artist-2", Name: "Sierra Ferrell"},
			"artist-3":     {ID: "artist-3", Name: "Kacey Musgraves"},
		},
		Searches: map[string]string{SampleQuery: SampleAlbumID},
		Features: map[string]*Features{
			"track-1": {Danceability: 0.5, Energy: 0.75},
			"track-2": {Danceability: 0.25, Energy: 0.5},
			"track-3": nil,
		},
		Recommendations: []Track{
			{ID: "rec-1", Name: "Why Haven't You Loved Me Yet", ArtistID: "artist-2", Popularity: 41},
			{ID: "rec-2", Name: "Slow Burn", ArtistID: "artist-3", Popularity: 78},
			{ID: "rec-3", Name: "Lavender Haze", ArtistID: "artist-2", Popularity: 12},
			{ID: "rec-4", Name: "Jack of Hearts", ArtistID: "artist-2", Popularity: 50},
			{ID: "rec-5", Name: "Made for You", ArtistID: "artist-3", Popularity: 33},
			{ID: "rec-6", Name: "Fool's Gold", ArtistID: "artist-2", Popularity: 5},
			{ID: "rec-7", Name: "Bad Apple", ArtistID: "artist-3", Popularity: 27},
		},
	}
}
