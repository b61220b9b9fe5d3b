package itunes

import (
	"math"
	"strings"

	"github.com/vinylroom/vinylroom-server/internal/search"
)

// noiseTokens are stripped from album titles before comparison so
// reissue packaging ("Deluxe Edition", "2009 Remaster") does not drag
// down otherwise exact matches.
var noiseTokens = map[string]struct{}{
	"deluxe": {}, "remaster": {}, "remastered": {}, "expanded": {},
	"edition": {}, "anniversary": {}, "bonus": {}, "track": {},
	"version": {}, "ep": {}, "lp": {}, "single": {}, "remix": {},
	"remixes": {}, "original": {}, "soundtrack": {}, "ost": {},
	"vol": {}, "volume": {}, "pt": {}, "part": {},
}

// normalizeTitle folds case and diacritics, then drops noise tokens.
func normalizeTitle(title string) string {
	words := strings.Fields(search.Normalize(title))
	kept := words[:0]
	for _, w := range words {
		if _, noise := noiseTokens[w]; noise {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// normalizeArtist folds case and diacritics and strips a leading
// article, so "The Beatles" and "Beatles" compare equal.
func normalizeArtist(artist string) string {
	normalized := search.Normalize(artist)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(normalized, article) {
			return strings.TrimSpace(normalized[len(article):])
		}
	}
	return normalized
}

// levenshtein returns the edit distance between two strings, counted
// in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// similarityRatio maps edit distance onto [0, 1], 1 meaning identical.
func similarityRatio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// fuzzyScore compares two already-normalized strings: exact matches
// score 1, containment scores 0.85-0.99 proportional to the overlap,
// anything else falls back to edit-distance similarity.
func fuzzyScore(a, b string) float64 {
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		longer := max(len(a), len(b))
		shorter := min(len(a), len(b))
		return 0.85 + float64(shorter)/float64(longer)*0.14
	}
	return similarityRatio(a, b)
}

func scoreTitle(a, b string) float64 {
	return fuzzyScore(normalizeTitle(a), normalizeTitle(b))
}

func scoreArtist(a, b string) float64 {
	return fuzzyScore(normalizeArtist(a), normalizeArtist(b))
}

// scoreYear tolerates one year of drift for remaster release dates.
// Missing years are neutral rather than disqualifying.
func scoreYear(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0.5
	}
	switch diff := abs(a - b); {
	case diff == 0:
		return 1.0
	case diff == 1:
		return 0.7
	case diff == 2:
		return 0.4
	default:
		return 0.0
	}
}

// scoreTrackCount compares track counts with widening tolerance, since
// vinyl pressings and digital editions rarely agree exactly.
func scoreTrackCount(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0.5
	}
	switch diff := abs(a - b); {
	case diff == 0:
		return 1.0
	case diff == 1:
		return 0.8
	case diff == 2:
		return 0.6
	case diff <= 5:
		return 0.3
	default:
		return 0.0
	}
}

func weightedScore(b Breakdown, w Weights) float64 {
	total := w.Title + w.Artist + w.Year + w.TrackCount
	if total == 0 {
		return 0
	}
	sum := b.Title*w.Title + b.Artist*w.Artist + b.Year*w.Year + b.TrackCount*w.TrackCount
	return sum / total
}

func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
