package enrich

import (
	"context"
	"sync"
	"sync/atomic"

	"albumvibe/models"
)

// mockCatalog serves canned values and counts calls per operation.
type mockCatalog struct {
	match           *models.AlbumSummary
	album           *models.AlbumSummary
	artist          *models.ArtistSummary
	tracks          []models.TrackRef
	features        map[string]*models.AudioFeatures
	recommendations *models.RecommendationSet
	errs            map[string]error

	mu          sync.Mutex
	calls       map[string]int
	seedArtist  string
	seedGenres  []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockCatalog) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
	return m.errs[op]
}

func (m *mockCatalog) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockCatalog) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockCatalog) SearchAlbum(ctx context.Context, query string) (*models.AlbumSummary, error) {
	if err := m.record("search"); err != nil {
		return nil, err
	}
	return m.match, nil
}

func (m *mockCatalog) GetArtist(ctx context.Context, artistID string) (*models.ArtistSummary, error) {
	if err := m.record("artist"); err != nil {
		return nil, err
	}
	return m.artist, nil
}

func (m *mockCatalog) GetAlbum(ctx context.Context, albumID string) (*models.AlbumSummary, error) {
	if err := m.record("album"); err != nil {
		return nil, err
	}
	return m.album, nil
}

func (m *mockCatalog) GetAlbumTracks(ctx context.Context, albumID string) ([]models.TrackRef, error) {
	if err := m.record("tracks"); err != nil {
		return nil, err
	}
	return m.tracks, nil
}

func (m *mockCatalog) GetTrackAudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if err := m.record("features"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.features[trackID], nil
}

func (m *mockCatalog) GetRecommendations(ctx context.Context, artistID string, genres []string) (*models.RecommendationSet, error) {
	if err := m.record("recommendations"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.seedArtist = artistID
	m.seedGenres = genres
	m.mu.Unlock()
	return m.recommendations, nil
}

func newMockCatalog() *mockCatalog {
	album := models.AlbumSummary{
		ID:          "album-1",
		Name:        "Test Album",
		Artists:     []models.ArtistRef{{ID: "artist-1", Name: "Test Artist"}},
		Images:      []models.Image{{URL: "https://img/640"}, {URL: "https://img/300"}, {URL: "https://img/64"}},
		ReleaseDate: "2019-11-01",
	}
	full := album
	full.Popularity = 44

	return &mockCatalog{
		match:  &album,
		album:  &full,
		artist: &models.ArtistSummary{ID: "artist-1", Name: "Test Artist", Genres: []string{"indie pop", "bedroom pop"}},
		tracks: []models.TrackRef{{ID: "a"}, {ID: "b"}},
		features: map[string]*models.AudioFeatures{
			"a": {Danceability: 0.25, Energy: 1},
			"b": {Danceability: 0.5, Energy: 0.5},
		},
		recommendations: &models.RecommendationSet{Tracks: []models.Recommendation{{ID: "r1", Name: "Rec"}}},
	}
}
