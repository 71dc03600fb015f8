// Package format turns raw catalog values into the strings shown on the result page.
package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"albumvibe/models"
)

// Genres capitalizes the first letter of every genre and joins them with ", ".
// The casing of the remaining letters is kept as the catalog sent it.
func Genres(genres []string) string {
	formatted := make([]string, 0, len(genres))
	for _, genre := range genres {
		formatted = append(formatted, capitalize(genre))
	}
	return strings.Join(formatted, ", ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Date rewrites a "YYYY-MM-DD" release date as "M/D/YYYY".
//
// Leading zeros are stripped from every part, so a part made only of zeros
// becomes empty ("2020-00-00" -> "//2020"). Anything other than three
// dash-separated parts is rejected.
func Date(date string) (string, error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return "", &models.FormatError{Field: "release_date", Value: date, Reason: "expected YYYY-MM-DD"}
	}

	for i, part := range parts {
		parts[i] = strings.TrimLeft(part, "0")
	}

	year, month, day := parts[0], parts[1], parts[2]
	return month + "/" + day + "/" + year, nil
}
