package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"

	"albumvibe/config"
	"albumvibe/models"
)

const (
	recommendationLimit = 5
	maxPopularity       = 50
	// maxSeeds is the catalog's cap on artist, genre and track seeds combined.
	maxSeeds = 5
	// albumTrackLimit is the page size for the album track listing. Only the
	// first page is read.
	albumTrackLimit = 50
)

// Client issues bearer-authenticated requests to the music catalog.
type Client struct {
	api *spotifyclient.Client
}

// NewClient returns a catalog client that authenticates every request with a
// token from tokens.
func NewClient(cfg config.SpotifyConfig, tokens *TokenProvider) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &bearerTransport{
			tokens: tokens,
			base:   newTransport(cfg, http.DefaultTransport),
		},
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.DefaultAPIURL
	}

	return &Client{
		api: spotifyclient.New(httpClient, spotifyclient.WithBaseURL(apiURL)),
	}
}

// SearchAlbum returns the top album match for query, or nil when the catalog
// has none.
func (c *Client) SearchAlbum(ctx context.Context, query string) (*models.AlbumSummary, error) {
	log.Tracef("Searching catalog for album: %s", query)

	span := sentry.StartSpan(ctx, "spotify.search")
	span.Description = "Search catalog for an album"
	span.SetTag("query", query)
	defer span.Finish()

	results, err := c.api.Search(ctx, query, spotifyclient.SearchTypeAlbum, spotifyclient.Limit(1))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("search", err)
	}

	if results.Albums == nil || len(results.Albums.Albums) == 0 {
		log.Debugf("No album matches %q", query)
		span.Status = sentry.SpanStatusNotFound
		return nil, nil
	}

	album := toAlbumSummary(results.Albums.Albums[0])
	if album.ID == "" || len(album.Artists) == 0 || album.Artists[0].ID == "" {
		span.Status = sentry.SpanStatusDataLoss
		return nil, &models.UpstreamError{Op: "search", Err: errors.New("match is missing its album or artist id")}
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("album_id", album.ID)
	return &album, nil
}

func (c *Client) GetArtist(ctx context.Context, artistID string) (*models.ArtistSummary, error) {
	log.Tracef("Fetching artist from catalog: %s", artistID)

	span := sentry.StartSpan(ctx, "spotify.get_artist")
	span.Description = "Get artist from catalog"
	span.SetTag("artist_id", artistID)
	defer span.Finish()

	artist, err := c.api.GetArtist(ctx, spotifyclient.ID(artistID))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("get_artist", err)
	}

	genres := artist.Genres
	if genres == nil {
		genres = []string{}
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("genres", genres)
	return &models.ArtistSummary{
		ID:     string(artist.ID),
		Name:   artist.Name,
		Genres: genres,
	}, nil
}

// GetAlbum returns the full album, including its popularity.
func (c *Client) GetAlbum(ctx context.Context, albumID string) (*models.AlbumSummary, error) {
	log.Tracef("Fetching album from catalog: %s", albumID)

	span := sentry.StartSpan(ctx, "spotify.get_album")
	span.Description = "Get album from catalog"
	span.SetTag("album_id", albumID)
	defer span.Finish()

	album, err := c.api.GetAlbum(ctx, spotifyclient.ID(albumID))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("get_album", err)
	}

	summary := toAlbumSummary(album.SimpleAlbum)
	summary.Popularity = int(album.Popularity)

	span.Status = sentry.SpanStatusOK
	return &summary, nil
}

func (c *Client) GetAlbumTracks(ctx context.Context, albumID string) ([]models.TrackRef, error) {
	log.Tracef("Fetching album tracks from catalog: %s", albumID)

	span := sentry.StartSpan(ctx, "spotify.get_album_tracks")
	span.Description = "Get album tracks from catalog"
	span.SetTag("album_id", albumID)
	defer span.Finish()

	page, err := c.api.GetAlbumTracks(ctx, spotifyclient.ID(albumID), spotifyclient.Limit(albumTrackLimit))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("get_album_tracks", err)
	}

	tracks := make([]models.TrackRef, 0, len(page.Tracks))
	for _, track := range page.Tracks {
		if track.ID == "" {
			continue
		}
		tracks = append(tracks, models.TrackRef{ID: string(track.ID)})
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("tracks_count", len(tracks))
	return tracks, nil
}

// GetTrackAudioFeatures returns the audio features of one track, or nil when
// the catalog has none for it.
func (c *Client) GetTrackAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	log.Tracef("Fetching audio features from catalog: %s", trackID)

	span := sentry.StartSpan(ctx, "spotify.get_audio_features")
	span.Description = "Get track audio features from catalog"
	span.SetTag("track_id", trackID)
	defer span.Finish()

	features, err := c.api.GetAudioFeatures(ctx, spotifyclient.ID(trackID))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("get_audio_features", err)
	}

	if len(features) == 0 || features[0] == nil {
		span.Status = sentry.SpanStatusNotFound
		return nil, nil
	}

	span.Status = sentry.SpanStatusOK
	return &models.AudioFeatures{
		Danceability: float64(features[0].Danceability),
		Energy:       float64(features[0].Energy),
	}, nil
}

// GetRecommendations returns up to five tracks seeded by the artist and its
// genres, restricted to tracks with popularity at most 50. Genres beyond the
// catalog's seed limit are dropped in order.
func (c *Client) GetRecommendations(ctx context.Context, artistID string, genres []string) (*models.RecommendationSet, error) {
	log.Tracef("Fetching recommendations from catalog: artist=%s genres=%v", artistID, genres)

	span := sentry.StartSpan(ctx, "spotify.get_recommendations")
	span.Description = "Get recommendations from catalog"
	span.SetTag("artist_id", artistID)
	defer span.Finish()

	// genre seeds are the raw slugs, not the display text; the catalog only accepts slugs
	seeds := spotifyclient.Seeds{
		Artists: []spotifyclient.ID{spotifyclient.ID(artistID)},
		Genres:  genreSeeds(genres, maxSeeds-1),
	}
	attrs := spotifyclient.NewTrackAttributes().MaxPopularity(maxPopularity)

	recs, err := c.api.GetRecommendations(ctx, seeds, attrs, spotifyclient.Limit(recommendationLimit))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, classify("get_recommendations", err)
	}

	set := &models.RecommendationSet{Tracks: make([]models.Recommendation, 0, recommendationLimit)}
	for _, track := range recs.Tracks {
		if len(set.Tracks) == recommendationLimit {
			break
		}
		set.Tracks = append(set.Tracks, models.Recommendation{
			ID:         string(track.ID),
			Name:       track.Name,
			Artists:    toArtistRefs(track.Artists),
			SpotifyURL: track.ExternalURLs["spotify"],
			PreviewURL: track.PreviewURL,
		})
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("tracks_count", len(set.Tracks))
	return set, nil
}

func genreSeeds(genres []string, limit int) []string {
	seeds := make([]string, 0, min(len(genres), limit))
	for _, genre := range genres {
		if genre == "" {
			continue
		}
		if len(seeds) == limit {
			break
		}
		seeds = append(seeds, genre)
	}
	return seeds
}

func toAlbumSummary(album spotifyclient.SimpleAlbum) models.AlbumSummary {
	images := make([]models.Image, 0, len(album.Images))
	for _, image := range album.Images {
		images = append(images, models.Image{URL: image.URL})
	}

	return models.AlbumSummary{
		ID:          string(album.ID),
		Name:        album.Name,
		Artists:     toArtistRefs(album.Artists),
		Images:      images,
		ReleaseDate: album.ReleaseDate,
		SpotifyURL:  album.ExternalURLs["spotify"],
	}
}

func toArtistRefs(artists []spotifyclient.SimpleArtist) []models.ArtistRef {
	refs := make([]models.ArtistRef, 0, len(artists))
	for _, artist := range artists {
		refs = append(refs, models.ArtistRef{
			ID:         string(artist.ID),
			Name:       artist.Name,
			SpotifyURL: artist.ExternalURLs["spotify"],
		})
	}
	return refs
}

// classify maps a failed catalog call onto the error taxonomy. Token failures
// keep their AuthError; everything else becomes an UpstreamError.
func classify(op string, err error) error {
	var authErr *models.AuthError
	if errors.As(err, &authErr) {
		log.Errorf("Catalog %s could not authenticate: %v", op, authErr)
		return fmt.Errorf("spotify: %s: %w", op, authErr)
	}

	upstream := &models.UpstreamError{Op: op, Err: err}
	var apiErr spotifyclient.Error
	if errors.As(err, &apiErr) {
		upstream.Status = apiErr.Status
	}
	log.Errorf("Catalog %s failed: %v", op, err)
	return upstream
}
