// Package spotifytest runs an in-process stand-in for the catalog service and
// its token endpoint, for tests that exercise the real client end to end.
package spotifytest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"albumvibe/config"
)

const (
	ClientID     = "test-client-id"
	ClientSecret = "test-client-secret"
)

// Route names accepted by Calls, FailNext and LastQuery.
const (
	RouteToken           = "token"
	RouteSearch          = "search"
	RouteArtist          = "artist"
	RouteAlbum           = "album"
	RouteAlbumTracks     = "album_tracks"
	RouteAudioFeatures   = "audio_features"
	RouteRecommendations = "recommendations"
)

type Album struct {
	ID          string
	Name        string
	ArtistIDs   []string
	Images      []string
	ReleaseDate string
	Popularity  int
	TrackIDs    []string
}

type Artist struct {
	ID     string
	Name   string
	Genres []string
}

type Features struct {
	Danceability float64
	Energy       float64
}

type Track struct {
	ID         string
	Name       string
	ArtistID   string
	Popularity int
}

// Catalog is the data served. Features without an entry (or with a nil one)
// come back as null.
type Catalog struct {
	Albums          map[string]Album
	Artists         map[string]Artist
	Searches        map[string]string // query -> album id
	Features        map[string]*Features
	Recommendations []Track
}

type Server struct {
	*httptest.Server

	catalog Catalog

	mu        sync.Mutex
	tokens    int
	calls     map[string]int
	failures  map[string][]int
	malformed map[string]int
	lastQuery map[string]url.Values
	tokenTTL  int
}

func NewServer(catalog Catalog) *Server {
	s := &Server{
		catalog:   catalog,
		calls:     make(map[string]int),
		failures:  make(map[string][]int),
		malformed: make(map[string]int),
		lastQuery: make(map[string]url.Values),
		tokenTTL:  3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.handleToken)
	mux.HandleFunc("GET /v1/search", s.authorized(RouteSearch, s.handleSearch))
	mux.HandleFunc("GET /v1/artists/{id}", s.authorized(RouteArtist, s.handleArtist))
	mux.HandleFunc("GET /v1/albums/{id}", s.authorized(RouteAlbum, s.handleAlbum))
	mux.HandleFunc("GET /v1/albums/{id}/tracks", s.authorized(RouteAlbumTracks, s.handleAlbumTracks))
	mux.HandleFunc("GET /v1/audio-features", s.authorized(RouteAudioFeatures, s.handleAudioFeaturesBatch))
	mux.HandleFunc("GET /v1/audio-features/{id}", s.authorized(RouteAudioFeatures, s.handleAudioFeatures))
	mux.HandleFunc("GET /v1/recommendations", s.authorized(RouteRecommendations, s.handleRecommendations))

	s.Server = httptest.NewServer(mux)
	return s
}

// Config points a client at this server with fast retries and no pacing.
func (s *Server) Config() config.SpotifyConfig {
	return config.SpotifyConfig{
		ClientID:       ClientID,
		ClientSecret:   ClientSecret,
		TokenURL:       s.URL + "/api/token",
		APIURL:         s.URL + "/v1/",
		MaxRetries:     3,
		RetryBackoffMs: 1,
	}
}

// SetTokenTTL changes the expires_in of subsequently issued tokens.
func (s *Server) SetTokenTTL(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = seconds
}

// FailNext makes the next requests to route answer with statuses, in order.
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// MalformNext makes the next n successful requests to route answer 200 with a
// body that is not JSON.
func (s *Server) MalformNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[route] += n
}

// Calls counts requests to route, failed attempts included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route == RouteToken {
		return s.tokens
	}
	return s.calls[route]
}

// CatalogCalls counts every request except token exchanges.
func (s *Server) CatalogCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Server) LastQuery(route string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery[route]
}

func (s *Server) nextFailure(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[route]
	if len(queue) == 0 {
		return 0
	}
	s.failures[route] = queue[1:]
	return queue[0]
}

func (s *Server) takeMalformed(route string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.malformed[route] == 0 {
		return false
	}
	s.malformed[route]--
	return true
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokens++
	issued := s.tokens
	ttl := s.tokenTTL
	s.mu.Unlock()

	if status := s.nextFailure(RouteToken); status != 0 {
		writeJSON(w, status, map[string]string{"error": "invalid_client"})
		return
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(ClientID+":"+ClientSecret))
	if r.Header.Get("Authorization") != want {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "token-" + strconv.Itoa(issued),
		"token_type":   "Bearer",
		"expires_in":   ttl,
	})
}

func (s *Server) authorized(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		s.lastQuery[route] = r.URL.Query()
		s.mu.Unlock()

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}
		if status := s.nextFailure(route); status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		if s.takeMalformed(route) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("type") != "album" {
		writeError(w, http.StatusBadRequest, "unsupported search type")
		return
	}

	items := []any{}
	if id, ok := s.catalog.Searches[q.Get("q")]; ok {
		if album, ok := s.catalog.Albums[id]; ok {
			items = append(items, s.simpleAlbum(album))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"albums": map[string]any{"items": items, "limit": 1, "offset": 0, "total": len(items)},
	})
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
	artist, ok := s.catalog.Artists[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "non existing id")
		return
	}
	genres := artist.Genres
	if genres == nil {
		genres = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            artist.ID,
		"name":          artist.Name,
		"genres":        genres,
		"popularity":    60,
		"external_urls": map[string]string{"spotify": "https://open.spotify.com/artist/" + artist.ID},
	})
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	album, ok := s.catalog.Albums[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "non existing id")
		return
	}
	body := s.simpleAlbum(album)
	body["popularity"] = album.Popularity
	body["genres"] = []string{}
	body["tracks"] = s.trackPage(album)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAlbumTracks(w http.ResponseWriter, r *http.Request) {
	album, ok := s.catalog.Albums[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "non existing id")
		return
	}
	writeJSON(w, http.StatusOK, s.trackPage(album))
}

func (s *Server) handleAudioFeaturesBatch(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	list := make([]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.features(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{"audio_features": list})
}

func (s *Server) handleAudioFeatures(w http.ResponseWriter, r *http.Request) {
	f := s.features(r.PathValue("id"))
	if f == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("seed_artists") == "" && q.Get("seed_genres") == "" {
		writeError(w, http.StatusBadRequest, "missing seeds")
		return
	}

	limit := 20
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	maxPopularity := 100
	if v, err := strconv.Atoi(q.Get("max_popularity")); err == nil {
		maxPopularity = v
	}

	tracks := []any{}
	for _, track := range s.catalog.Recommendations {
		if len(tracks) == limit {
			break
		}
		if track.Popularity > maxPopularity {
			continue
		}
		tracks = append(tracks, map[string]any{
			"id":            track.ID,
			"name":          track.Name,
			"popularity":    track.Popularity,
			"preview_url":   "https://p.scdn.co/mp3-preview/" + track.ID,
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/track/" + track.ID},
			"artists":       []any{s.simpleArtist(track.ArtistID)},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"seeds": []any{}, "tracks": tracks})
}

func (s *Server) features(id string) any {
	f := s.catalog.Features[id]
	if f == nil {
		return nil
	}
	return map[string]any{
		"id":           id,
		"danceability": f.Danceability,
		"energy":       f.Energy,
		"type":         "audio_features",
	}
}

func (s *Server) simpleAlbum(album Album) map[string]any {
	artists := make([]any, 0, len(album.ArtistIDs))
	for _, id := range album.ArtistIDs {
		artists = append(artists, s.simpleArtist(id))
	}
	images := make([]any, 0, len(album.Images))
	for i, u := range album.Images {
		size := 640 >> i
		images = append(images, map[string]any{"url": u, "height": size, "width": size})
	}
	return map[string]any{
		"id":                     album.ID,
		"name":                   album.Name,
		"album_type":             "album",
		"artists":                artists,
		"images":                 images,
		"release_date":           album.ReleaseDate,
		"release_date_precision": "day",
		"external_urls":          map[string]string{"spotify": "https://open.spotify.com/album/" + album.ID},
	}
}

func (s *Server) simpleArtist(id string) map[string]any {
	name := s.catalog.Artists[id].Name
	if name == "" {
		name = "Artist " + id
	}
	return map[string]any{
		"id":            id,
		"name":          name,
		"external_urls": map[string]string{"spotify": "https://open.spotify.com/artist/" + id},
	}
}

func (s *Server) trackPage(album Album) map[string]any {
	items := make([]any, 0, len(album.TrackIDs))
	for i, id := range album.TrackIDs {
		items = append(items, map[string]any{
			"id":           id,
			"name":         fmt.Sprintf("Track %d", i+1),
			"track_number": i + 1,
		})
	}
	return map[string]any{"items": items, "limit": 50, "offset": 0, "total": len(items)}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
