// Package dedup detects near-duplicate task titles so the session layer
// can skip re-creating tasks the classifier keeps proposing.
package dedup

import (
	"strings"

	"github.com/go-dedup/simhash"
)

// Threshold is the maximum Hamming distance between two fingerprints for
// the titles to count as near-duplicates. Spanish task titles are short,
// so the threshold is kept tight.
const Threshold = 6

type titleFeatureSet struct {
	text string
}

// GetFeatures extracts character-level bigram features, which work better
// than word shingles on short titles.
func (t titleFeatureSet) GetFeatures() []simhash.Feature {
	text := strings.ToLower(strings.TrimSpace(t.text))
	if text == "" {
		return []simhash.Feature{}
	}

	features := make([]simhash.Feature, 0)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		r1, r2 := runes[i], runes[i+1]
		if isPunctuation(r1) || isPunctuation(r2) {
			continue
		}
		features = append(features, simhash.NewFeature([]byte(string([]rune{r1, r2}))))
	}

	// very short titles need single-character features for separation
	if len(runes) < 4 {
		for _, r := range runes {
			if !isPunctuation(r) {
				features = append(features, simhash.NewFeature([]byte(string(r))))
			}
		}
	}

	return features
}

func isPunctuation(r rune) bool {
	switch r {
	case ' ', ',', '.', '!', '?', ';', ':', '-', '_', '/', '(', ')',
		'¡', '¿', '\t', '\n':
		return true
	}
	return false
}

// Fingerprint computes the 64-bit SimHash fingerprint of a title.
func Fingerprint(title string) uint64 {
	sh := simhash.NewSimhash()
	return sh.GetSimhash(titleFeatureSet{text: title})
}

// HammingDistance counts the differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

// IsNearDuplicate reports whether two titles are close enough to be the
// same task.
func IsNearDuplicate(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return HammingDistance(Fingerprint(a), Fingerprint(b)) <= Threshold
}

// ContainsNearDuplicate reports whether title is a near-duplicate of any
// entry in existing.
func ContainsNearDuplicate(title string, existing []string) bool {
	fp := Fingerprint(title)
	for _, e := range existing {
		if strings.TrimSpace(e) == "" {
			continue
		}
		if HammingDistance(fp, Fingerprint(e)) <= Threshold {
			return true
		}
	}
	return false
}
