// Package enrich turns a free-text album query into an EnrichedResult by
// composing catalog lookups, audio-feature aggregation and formatting.
package enrich

import (
	"context"
	"math"
	"slices"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"albumvibe/models"
)

const defaultWorkers = 8

// FeatureSource fetches the audio features of a single track. A nil result
// with a nil error means the catalog has no analysis for that track.
type FeatureSource interface {
	GetTrackAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error)
}

// Aggregator reduces per-track audio features to album-level percentages.
type Aggregator struct {
	source  FeatureSource
	workers int
}

// NewAggregator returns an aggregator that issues at most workers feature
// lookups at a time.
func NewAggregator(source FeatureSource, workers int) *Aggregator {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Aggregator{source: source, workers: workers}
}

// AverageFeature returns the mean of feature across tracks as a percentage,
// rounded half up.
func (a *Aggregator) AverageFeature(ctx context.Context, tracks []models.TrackRef, feature models.Feature) (int, error) {
	averages, err := a.Averages(ctx, tracks, feature)
	if err != nil {
		return 0, err
	}
	return averages[feature], nil
}

// Averages fetches each track's features once and computes every requested
// average from the same values.
func (a *Aggregator) Averages(ctx context.Context, tracks []models.TrackRef, features ...models.Feature) (map[models.Feature]int, error) {
	for _, feature := range features {
		if _, ok := (models.AudioFeatures{}).Value(feature); !ok {
			return nil, &models.AggregationError{Feature: feature, Reason: "unknown feature"}
		}
	}
	if len(tracks) == 0 {
		return nil, &models.AggregationError{Feature: firstFeature(features), Reason: "album has no tracks"}
	}

	fetched, err := a.fetch(ctx, tracks)
	if err != nil {
		return nil, err
	}

	averages := make(map[models.Feature]int, len(features))
	for _, feature := range features {
		avg, err := average(fetched, feature)
		if err != nil {
			return nil, err
		}
		averages[feature] = avg
	}
	return averages, nil
}

func (a *Aggregator) fetch(ctx context.Context, tracks []models.TrackRef) ([]*models.AudioFeatures, error) {
	results := make([]*models.AudioFeatures, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, track := range tracks {
		g.Go(func() error {
			features, err := a.source.GetTrackAudioFeatures(gctx, track.ID)
			if err != nil {
				return err
			}
			if features == nil {
				log.Warnf("Track %s has no audio features, skipping", track.ID)
			}
			results[i] = features
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func average(all []*models.AudioFeatures, feature models.Feature) (int, error) {
	values := make([]float64, 0, len(all))
	for _, features := range all {
		if features == nil {
			continue
		}
		v, _ := features.Value(feature)
		values = append(values, v)
	}
	if len(values) == 0 {
		return 0, &models.AggregationError{Feature: feature, Reason: "no track has audio features"}
	}

	// summing in sorted order keeps the result independent of track order
	slices.Sort(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return int(math.Round(sum / float64(len(values)) * 100)), nil
}

func firstFeature(features []models.Feature) models.Feature {
	if len(features) == 0 {
		return ""
	}
	return features[0]
}
