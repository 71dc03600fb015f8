package enrich

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"albumvibe/format"
	"albumvibe/models"
	appsentry "albumvibe/sentry"
	"albumvibe/spotify"
)

// Catalog is the set of lookups a pipeline run performs.
type Catalog interface {
	FeatureSource
	SearchAlbum(ctx context.Context, query string) (*models.AlbumSummary, error)
	GetArtist(ctx context.Context, artistID string) (*models.ArtistSummary, error)
	GetAlbum(ctx context.Context, albumID string) (*models.AlbumSummary, error)
	GetAlbumTracks(ctx context.Context, albumID string) ([]models.TrackRef, error)
	GetRecommendations(ctx context.Context, artistID string, genres []string) (*models.RecommendationSet, error)
}

// Stage names the step a pipeline run is in.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageSearching    Stage = "searching"
	StageNotFound     Stage = "not_found"
	StageEnriching    Stage = "enriching"
	StageAggregating  Stage = "aggregating"
	StageRecommending Stage = "recommending"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// coverArtIndex selects the medium-sized image of the catalog's artwork list.
const coverArtIndex = 1

// Pipeline turns a free-text query into an enriched album result.
type Pipeline struct {
	catalog    Catalog
	aggregator *Aggregator
}

// NewPipeline wires a pipeline to catalog. A nil aggregator gets a default
// one over the same catalog.
func NewPipeline(catalog Catalog, aggregator *Aggregator) *Pipeline {
	if aggregator == nil {
		aggregator = NewAggregator(catalog, defaultWorkers)
	}
	return &Pipeline{catalog: catalog, aggregator: aggregator}
}

// Enrich resolves query to an album and assembles its enriched result. When
// nothing matches it returns a *models.NotFoundError and makes no catalog
// calls beyond the search.
func (p *Pipeline) Enrich(ctx context.Context, query string) (*models.EnrichedResult, error) {
	query = strings.TrimSpace(query)

	span := sentry.StartSpan(ctx, "enrich.pipeline")
	span.Description = "Enrich album query"
	span.SetTag("query", query)
	defer span.Finish()

	r := &run{
		ctx:   span.Context(),
		log:   log.WithFields(log.Fields{"run_id": uuid.NewString(), "query": query}),
		stage: StageIdle,
	}

	result, err := p.enrich(span.Context(), r, query)
	switch {
	case err == nil:
		span.Status = sentry.SpanStatusOK
	case errors.Is(err, models.ErrNotFound):
		span.Status = sentry.SpanStatusNotFound
	default:
		span.Status = sentry.SpanStatusInternalError
		r.fail(err)
	}
	span.SetData("stage", string(r.stage))
	return result, err
}

func (p *Pipeline) enrich(ctx context.Context, r *run, query string) (*models.EnrichedResult, error) {
	r.to(StageSearching)
	if query == "" {
		r.to(StageNotFound)
		return nil, &models.NotFoundError{Query: query}
	}

	match, full, err := p.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if match == nil {
		r.to(StageNotFound)
		return nil, &models.NotFoundError{Query: query}
	}
	if match.ID == "" || len(match.Artists) == 0 || match.Artists[0].ID == "" {
		return nil, &models.UpstreamError{Op: "search", Err: errors.New("match is missing its album or artist id")}
	}
	albumID, artistID := match.ID, match.Artists[0].ID
	r.log = r.log.WithFields(log.Fields{"album_id": albumID, "artist_id": artistID})

	r.to(StageEnriching)
	var (
		artist *models.ArtistSummary
		tracks []models.TrackRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		artist, err = p.catalog.GetArtist(gctx, artistID)
		return err
	})
	if full == nil {
		g.Go(func() (err error) {
			full, err = p.catalog.GetAlbum(gctx, albumID)
			return err
		})
	}
	g.Go(func() (err error) {
		tracks, err = p.catalog.GetAlbumTracks(gctx, albumID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.to(StageAggregating)
	averages, err := p.aggregator.Averages(ctx, tracks, models.Danceability, models.Energy)
	if err != nil {
		return nil, err
	}

	r.to(StageRecommending)
	// seeds take the raw genre slugs; format.Genres is display text only
	recs, err := p.catalog.GetRecommendations(ctx, artistID, artist.Genres)
	if err != nil {
		return nil, err
	}

	releaseDate, err := format.Date(match.ReleaseDate)
	if err != nil {
		return nil, err
	}
	cover, err := coverArt(match.Images)
	if err != nil {
		return nil, err
	}

	recommendations := []models.Recommendation{}
	if recs != nil && recs.Tracks != nil {
		recommendations = recs.Tracks
	}

	r.to(StageDone)
	return &models.EnrichedResult{
		Album:           *match,
		Genres:          format.Genres(artist.Genres),
		Popularity:      full.Popularity,
		Danceability:    averages[models.Danceability],
		Energy:          averages[models.Energy],
		Recommendations: recommendations,
		ReleaseDate:     releaseDate,
		CoverArt:        cover,
	}, nil
}

// resolve finds the album for query. An album link is looked up directly and
// also yields the full album; anything else goes through search.
func (p *Pipeline) resolve(ctx context.Context, query string) (match, full *models.AlbumSummary, err error) {
	id, ok := spotify.ParseAlbumURL(query)
	if !ok {
		match, err = p.catalog.SearchAlbum(ctx, query)
		return match, nil, err
	}

	album, err := p.catalog.GetAlbum(ctx, id)
	if err != nil {
		var upstream *models.UpstreamError
		if errors.As(err, &upstream) && (upstream.Status == http.StatusNotFound || upstream.Status == http.StatusBadRequest) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return album, album, nil
}

func coverArt(images []models.Image) (string, error) {
	if len(images) <= coverArtIndex {
		return "", &models.FormatError{Field: "images", Reason: "album has fewer than two images"}
	}
	return images[coverArtIndex].URL, nil
}

// run carries the per-invocation logger and the current stage. Every
// transition is also left as a breadcrumb on the request's hub.
type run struct {
	ctx   context.Context
	log   *log.Entry
	stage Stage
}

func (r *run) to(stage Stage) {
	r.log.WithField("stage", stage).Debugf("Pipeline %s -> %s", r.stage, stage)
	r.breadcrumb(stage)
	r.stage = stage
}

func (r *run) fail(err error) {
	r.log.WithField("stage", StageFailed).Errorf("Pipeline failed while %s: %v", r.stage, err)
	r.breadcrumb(StageFailed)
	r.stage = StageFailed
}

func (r *run) breadcrumb(stage Stage) {
	appsentry.AddBreadcrumb(r.ctx, "enrich.stage", string(r.stage)+" -> "+string(stage), map[string]interface{}{
		"from": string(r.stage),
		"to":   string(stage),
	})
}
