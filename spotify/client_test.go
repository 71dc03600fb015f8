package spotify

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"albumvibe/models"
	"albumvibe/spotify/spotifytest"
)

func newTestClient(t *testing.T) (*Client, *spotifytest.Server) {
	t.Helper()
	srv := spotifytest.NewServer(spotifytest.SampleCatalog())
	t.Cleanup(srv.Close)

	cfg := srv.Config()
	return NewClient(cfg, NewTokenProvider(cfg, nil)), srv
}

func TestSearchAlbum(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	album, err := client.SearchAlbum(ctx, spotifytest.SampleQuery)
	if err != nil {
		t.Fatalf("SearchAlbum() error = %v", err)
	}
	if album == nil {
		t.Fatal("SearchAlbum() = nil; want a match")
	}
	if album.ID != spotifytest.SampleAlbumID || album.Name != "Bronco" {
		t.Errorf("album = %s/%s", album.ID, album.Name)
	}
	if ids := album.ArtistIDs(); !reflect.DeepEqual(ids, []string{spotifytest.SampleArtistID}) {
		t.Errorf("ArtistIDs() = %v", ids)
	}
	if len(album.Images) != 3 || album.Images[1].URL != "https://i.scdn.co/image/bronco-300" {
		t.Errorf("Images = %+v", album.Images)
	}
	if album.ReleaseDate != "2022-04-08" {
		t.Errorf("ReleaseDate = %q", album.ReleaseDate)
	}

	q := srv.LastQuery(spotifytest.RouteSearch)
	if q.Get("q") != spotifytest.SampleQuery || q.Get("type") != "album" || q.Get("limit") != "1" {
		t.Errorf("search query = %v", q)
	}
}

func TestSearchAlbumNoMatch(t *testing.T) {
	client, _ := newTestClient(t)

	album, err := client.SearchAlbum(context.Background(), "zzzzzzzzqqqq")
	if err != nil {
		t.Fatalf("SearchAlbum() error = %v", err)
	}
	if album != nil {
		t.Errorf("SearchAlbum() = %+v; want nil", album)
	}
}

func TestGetArtist(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	artist, err := client.GetArtist(ctx, spotifytest.SampleArtistID)
	if err != nil {
		t.Fatalf("GetArtist() error = %v", err)
	}
	if !reflect.DeepEqual(artist.Genres, []string{"alt country", "queer country"}) {
		t.Errorf("Genres = %v", artist.Genres)
	}

	artist, err = client.GetArtist(ctx, "artist-2")
	if err != nil {
		t.Fatalf("GetArtist() error = %v", err)
	}
	if artist.Genres == nil || len(artist.Genres) != 0 {
		t.Errorf("Genres = %#v; want empty, non-nil", artist.Genres)
	}
}

func TestGetAlbumAndTracks(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	album, err := client.GetAlbum(ctx, spotifytest.SampleAlbumID)
	if err != nil {
		t.Fatalf("GetAlbum() error = %v", err)
	}
	if album.Popularity != 61 {
		t.Errorf("Popularity = %d; want 61", album.Popularity)
	}

	tracks, err := client.GetAlbumTracks(ctx, spotifytest.SampleAlbumID)
	if err != nil {
		t.Fatalf("GetAlbumTracks() error = %v", err)
	}
	want := []models.TrackRef{{ID: "track-1"}, {ID: "track-2"}, {ID: "track-3"}}
	if !reflect.DeepEqual(tracks, want) {
		t.Errorf("GetAlbumTracks() = %v; want %v", tracks, want)
	}
}

func TestGetTrackAudioFeatures(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	features, err := client.GetTrackAudioFeatures(ctx, "track-1")
	if err != nil {
		t.Fatalf("GetTrackAudioFeatures() error = %v", err)
	}
	if math.Abs(features.Danceability-0.5) > 1e-6 || math.Abs(features.Energy-0.75) > 1e-6 {
		t.Errorf("features = %+v", features)
	}

	features, err = client.GetTrackAudioFeatures(ctx, "track-3")
	if err != nil {
		t.Fatalf("GetTrackAudioFeatures() error = %v", err)
	}
	if features != nil {
		t.Errorf("features = %+v; want nil for a track without analysis", features)
	}
}

func TestGetRecommendations(t *testing.T) {
	client, srv := newTestClient(t)

	set, err := client.GetRecommendations(context.Background(), spotifytest.SampleArtistID, []string{"alt country", "queer country"})
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}

	q := srv.LastQuery(spotifytest.RouteRecommendations)
	if q.Get("seed_artists") != spotifytest.SampleArtistID {
		t.Errorf("seed_artists = %q", q.Get("seed_artists"))
	}
	if q.Get("seed_genres") != "alt country,queer country" {
		t.Errorf("seed_genres = %q", q.Get("seed_genres"))
	}
	if q.Get("limit") != "5" || q.Get("max_popularity") != "50" {
		t.Errorf("limit/max_popularity = %q/%q", q.Get("limit"), q.Get("max_popularity"))
	}

	var ids []string
	for _, track := range set.Tracks {
		ids = append(ids, track.ID)
	}
	if want := []string{"rec-1", "rec-3", "rec-4", "rec-5", "rec-6"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("tracks = %v; want %v", ids, want)
	}
	first := set.Tracks[0]
	if first.SpotifyURL != "https://open.spotify.com/track/rec-1" {
		t.Errorf("SpotifyURL = %q", first.SpotifyURL)
	}
	if first.ArtistURL() != "https://open.spotify.com/artist/artist-2" {
		t.Errorf("ArtistURL() = %q", first.ArtistURL())
	}
}

func TestGenreSeeds(t *testing.T) {
	tests := []struct {
		name   string
		genres []string
		want   []string
	}{
		{"none", nil, []string{}},
		{"skips blanks", []string{"", "rock"}, []string{"rock"}},
		{"trims to limit", []string{"a", "b", "c", "d", "e", "f"}, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := genreSeeds(tt.genres, maxSeeds-1); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("genreSeeds() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestClientSharesToken(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"track-1", "track-2", "track-3"} {
		if _, err := client.GetTrackAudioFeatures(ctx, id); err != nil {
			t.Fatalf("GetTrackAudioFeatures(%s) error = %v", id, err)
		}
	}
	if got := srv.Calls(spotifytest.RouteToken); got != 1 {
		t.Errorf("token exchanges = %d; want 1", got)
	}
}

func TestClientErrors(t *testing.T) {
	t.Run("not found becomes upstream error", func(t *testing.T) {
		client, _ := newTestClient(t)
		_, err := client.GetArtist(context.Background(), "missing")

		var upstream *models.UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("GetArtist() error = %v; want *models.UpstreamError", err)
		}
		if upstream.Status != http.StatusNotFound || upstream.Op != "get_artist" {
			t.Errorf("upstream = %+v", upstream)
		}
	})

	t.Run("malformed body becomes upstream error", func(t *testing.T) {
		client, srv := newTestClient(t)
		srv.MalformNext(spotifytest.RouteArtist, 1)

		_, err := client.GetArtist(context.Background(), spotifytest.SampleArtistID)
		var upstream *models.UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("GetArtist() error = %v; want *models.UpstreamError", err)
		}
		if upstream.Op != "get_artist" || upstream.Status != 0 {
			t.Errorf("upstream = %+v; want get_artist without a status", upstream)
		}
		if got := srv.Calls(spotifytest.RouteArtist); got != 1 {
			t.Errorf("artist calls = %d; want 1, a decode failure is not retried", got)
		}
	})

	t.Run("stalled token endpoint respects the request deadline", func(t *testing.T) {
		release := make(chan struct{})
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer tokenSrv.Close()
		defer close(release)

		catalog := spotifytest.NewServer(spotifytest.SampleCatalog())
		defer catalog.Close()
		cfg := catalog.Config()
		cfg.TokenURL = tokenSrv.URL
		client := NewClient(cfg, NewTokenProvider(cfg, &http.Client{Timeout: 5 * time.Second}))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := client.SearchAlbum(ctx, spotifytest.SampleQuery)
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("SearchAlbum() returned after %s; want close to the 200ms deadline", elapsed)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("SearchAlbum() error = %v; want deadline exceeded", err)
		}
		if got := catalog.CatalogCalls(); got != 0 {
			t.Errorf("catalog calls = %d; want 0 without a token", got)
		}
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		client, srv := newTestClient(t)
		srv.FailNext(spotifytest.RouteAlbum, http.StatusServiceUnavailable)

		if _, err := client.GetAlbum(context.Background(), spotifytest.SampleAlbumID); err != nil {
			t.Fatalf("GetAlbum() error = %v", err)
		}
		if got := srv.Calls(spotifytest.RouteAlbum); got != 2 {
			t.Errorf("album calls = %d; want 2", got)
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		client, srv := newTestClient(t)
		srv.FailNext(spotifytest.RouteAlbum, 502, 503, 503)

		_, err := client.GetAlbum(context.Background(), spotifytest.SampleAlbumID)
		var upstream *models.UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != http.StatusServiceUnavailable {
			t.Fatalf("GetAlbum() error = %v; want upstream 503", err)
		}
		if got := srv.Calls(spotifytest.RouteAlbum); got != 3 {
			t.Errorf("album calls = %d; want 3", got)
		}
	})

	t.Run("token failure is an auth error", func(t *testing.T) {
		client, srv := newTestClient(t)
		srv.FailNext(spotifytest.RouteToken, http.StatusUnauthorized)

		_, err := client.SearchAlbum(context.Background(), spotifytest.SampleQuery)
		if !errors.Is(err, models.ErrAuth) {
			t.Fatalf("SearchAlbum() error = %v; want auth error", err)
		}
		if errors.Is(err, models.ErrUpstream) {
			t.Errorf("auth failure should not be reported as upstream: %v", err)
		}
		if got := srv.CatalogCalls(); got != 0 {
			t.Errorf("catalog calls = %d; want 0", got)
		}
	})
}
