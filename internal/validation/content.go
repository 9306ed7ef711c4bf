package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Length limits, in characters, of user-authored text.
const (
	MaxPostLength    = 280
	MaxCommentLength = 500
	MaxBioLength     = 160
)

// NormalizeText trims s and converts it to NFC so that limits count what the
// reader sees rather than how the client encoded it.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CharCount returns the number of characters in the NFC form of s.
func CharCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// ValidateLength rejects text longer than limit characters.
func ValidateLength(field, s string, limit int) error {
	if CharCount(s) > limit {
		return fmt.Errorf("%s must not exceed %d characters", field, limit)
	}
	return nil
}

// ValidateURL accepts empty input or an absolute http(s) URL.
func ValidateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be a valid http(s) URL", field)
	}
	return nil
}
