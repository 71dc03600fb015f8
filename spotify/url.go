package spotify

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

const openURLPrefix = "https://open.spotify.com/"

// ParseAlbumURL extracts the album id from an open.spotify.com album link,
// with or without a locale segment or tracking query. ok is false for any
// other input, which callers treat as free text.
func ParseAlbumURL(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, openURLPrefix) {
		return "", false
	}

	// strip query parameters (e.g. ?si=tracking_id) and fragments
	path := strings.TrimPrefix(raw, openURLPrefix)
	path = strings.SplitN(path, "?", 2)[0]
	path = strings.SplitN(path, "#", 2)[0]

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 3 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) != 2 || parts[0] != "album" || parts[1] == "" {
		log.Tracef("Not an album link, searching as text: %s", raw)
		return "", false
	}

	log.Tracef("Parsed album link: %s", parts[1])
	return parts[1], true
}
