package extract

import (
	"sort"
	"strings"
)

// Candidate is one <img> found while scanning a page.
type Candidate struct {
	URL    string
	Width  int
	Height int
	Alt    string
	Class  string
	ID     string
	Index  int
	Score  float64
}

// Weights of the scoring heuristic. They were tuned by hand against real
// pages and are a starting point, not a derivation.
const (
	weightLarge       = 20
	weightMedium      = 15
	weightRaster      = 5
	weightLogo        = -25
	weightContentArea = 5
	weightAlt         = 5
	weightPositive    = 8
	weightNegative    = -15
	tailPenaltyFactor = 0.1

	contentAreaStart = 3  // exclusive
	contentAreaEnd   = 20 // exclusive; penalty starts here
)

var (
	positiveKeywords = []string{"featured", "hero", "main", "thumbnail", "cover", "banner", "project", "gallery", "slide", "image", "photo", "picture", "carousel", "slider"}
	negativeKeywords = []string{"icon", "avatar", "small", "thumb", "button", "emoji", "badge", "logo", "favicon"}
	rasterExts       = []string{".jpg", ".jpeg", ".png"}
)

// Score computes the heuristic score of c.
func Score(c Candidate) float64 {
	var score float64
	lowerURL := strings.ToLower(c.URL)

	switch {
	case c.Width > 300 && c.Height > 200:
		score += weightLarge
	case c.Width > 200 && c.Height > 150:
		score += weightMedium
	case containsAny(lowerURL, rasterExts):
		score += weightRaster
	}

	if c.logoLike() {
		score += weightLogo
	}

	if c.Index > contentAreaStart && c.Index < contentAreaEnd {
		score += weightContentArea
	} else if c.Index >= contentAreaEnd {
		score -= float64(c.Index) * tailPenaltyFactor
	}

	if len(c.Alt) > 5 {
		score += weightAlt
	}

	class, id, alt := strings.ToLower(c.Class), strings.ToLower(c.ID), strings.ToLower(c.Alt)
	for _, kw := range positiveKeywords {
		if strings.Contains(class, kw) || strings.Contains(id, kw) || strings.Contains(alt, kw) {
			score += weightPositive
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(class, kw) || strings.Contains(id, kw) || strings.Contains(alt, kw) {
			score += weightNegative
		}
	}

	return score
}

func (c Candidate) logoLike() bool {
	return IsLikelyLogo(c.URL, c.Alt) || IsLikelyLogo(c.URL, c.Class) || IsLikelyLogo(c.URL, c.ID)
}

// SelectBest scores candidates in place and returns the chosen image URL,
// or "" when there are none.
func SelectBest(candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}

	var best *Candidate
	for i := range candidates {
		candidates[i].Score = Score(candidates[i])
		if candidates[i].Score > 0 && (best == nil || candidates[i].Score > best.Score) {
			best = &candidates[i]
		}
	}

	if best != nil {
		if !IsLikelyLogo(best.URL, "") {
			return best.URL
		}
		ranked := sortedCopy(candidates, func(a, b Candidate) bool { return a.Score > b.Score })
		for _, c := range ranked {
			if !IsLikelyLogo(c.URL, "") && c.Width > 200 && c.Height > 150 {
				return c.URL
			}
		}
		return best.URL
	}

	bySize := sortedCopy(candidates, func(a, b Candidate) bool { return a.Width*a.Height > b.Width*b.Height })
	for _, c := range bySize {
		if !IsLikelyLogo(c.URL, "") && (c.Width > 150 || c.Height > 150) {
			return c.URL
		}
	}
	return candidates[0].URL
}

func sortedCopy(cs []Candidate, less func(a, b Candidate) bool) []Candidate {
	out := make([]Candidate, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
