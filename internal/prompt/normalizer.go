// Package prompt turns (persona, cue) pairs into canonical cache keys,
// embedding vectors, and final generation prompts.
package prompt

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/ids"
)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {},
}

var punctRe = regexp.MustCompile(`[^\w\s]`)
var spaceRe = regexp.MustCompile(`\s+`)

// Normalize canonicalizes a cue: lowercase, punctuation stripped,
// stopwords removed, tokens sorted, persona style tags appended. Two
// cues that differ only in wording noise normalize to the same string.
func Normalize(cue string, profile *db.StyleProfile) string {
	normalized := strings.ToLower(strings.TrimSpace(cue))
	normalized = punctRe.ReplaceAllString(normalized, "")
	normalized = spaceRe.ReplaceAllString(normalized, " ")

	var tokens []string
	for _, word := range strings.Fields(normalized) {
		if _, skip := stopwords[word]; skip {
			continue
		}
		tokens = append(tokens, word)
	}
	sort.Strings(tokens)

	tokens = append(tokens, StyleTags(profile)...)
	return strings.Join(tokens, " ")
}

// StyleTags derives the persona's style vocabulary from its profile:
// one tag per style modifier plus palette and motion tags.
func StyleTags(profile *db.StyleProfile) []string {
	if profile == nil {
		return nil
	}

	var tags []string
	for _, modifier := range profile.StyleModifiers {
		// "anime_style@v1" -> "anime style"
		name := strings.SplitN(modifier, "@", 2)[0]
		tags = append(tags, strings.ReplaceAll(name, "_", " "))
	}

	if primary, ok := profile.Palette["primary"].(string); ok && primary != "" {
		if strings.Contains(strings.ToLower(primary), "pastel") {
			tags = append(tags, "pastel colors")
		} else {
			tags = append(tags, "elegant colors")
		}
	}

	if profile.MotionModule != "" {
		if strings.Contains(strings.ToLower(profile.MotionModule), "animate") {
			tags = append(tags, "animated style")
		} else {
			tags = append(tags, "static style")
		}
	}

	return tags
}

// CacheKey derives the canonical key triple for a cue: the normalized
// string, its truncated SHA-1 hash, and the prompt key id.
func CacheKey(personaID, cue string, profile *db.StyleProfile) (keyNorm, keyHash, pkID string) {
	keyNorm = Normalize(cue, profile)
	sum := sha1.Sum([]byte(keyNorm))
	keyHash = hex.EncodeToString(sum[:])[:16]
	pkID = ids.PromptKeyID(personaID, keyHash)
	return keyNorm, keyHash, pkID
}
