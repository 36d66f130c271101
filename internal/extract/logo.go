package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	logoKeywords     = []string{"logo", "brand", "icon", "symbol", "emblem", "favicon", "header-logo", "site-logo", "company-logo"}
	logoFilePatterns = []string{"-logo", "_logo", "logo-", "logo_", "brand-", "brand_", "icon-", "icon_"}

	sizeSegment = regexp.MustCompile(`[_-](\d+)x(\d+)`)
	sizeQuery   = regexp.MustCompile(`(?i)[?&](?:w|width)=(\d+).*?[?&](?:h|height)=(\d+)`)
)

// IsLikelyLogo reports whether the image at rawURL, described by text (alt,
// class or id), looks like branding rather than content.
func IsLikelyLogo(rawURL, text string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)

	if containsAny(lower, logoKeywords) {
		return true
	}

	file := lower
	if i := strings.LastIndex(file, "/"); i >= 0 {
		file = file[i+1:]
	}
	if containsAny(file, logoFilePatterns) {
		return true
	}

	if text != "" && containsAny(strings.ToLower(text), logoKeywords) {
		return true
	}

	if m := sizeSegment.FindStringSubmatch(rawURL); m != nil && smallBadge(m[1], m[2]) {
		return true
	}
	if m := sizeQuery.FindStringSubmatch(rawURL); m != nil && smallBadge(m[1], m[2]) {
		return true
	}
	return false
}

// smallBadge is true for dimensions under 300px that are near-square or
// very wide.
func smallBadge(ws, hs string) bool {
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || h == 0 {
		return false
	}
	if w >= 300 || h >= 300 {
		return false
	}
	ratio := float64(w) / float64(h)
	return (ratio > 0.8 && ratio < 1.2) || ratio > 3
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
