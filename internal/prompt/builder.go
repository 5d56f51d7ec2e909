package prompt

import (
	"fmt"
	"strings"

	"soulmedia/internal/entity/db"
)

// SelfieTags are appended to every location selfie prompt.
var SelfieTags = []string{
	"selfie pose",
	"smiling",
	"beautiful background",
	"perfect lighting",
	"high quality",
}

// BuildPrompt assembles the final positive and negative prompts for a
// cue: cue first, then the persona's style tags, then any extra tags.
func BuildPrompt(profile *db.StyleProfile, cue string, extraTags []string) (positive, negative string, err error) {
	if profile == nil {
		return "", "", fmt.Errorf("style profile is required")
	}

	parts := []string{cue}
	parts = append(parts, StyleTags(profile)...)
	parts = append(parts, extraTags...)
	positive = strings.Join(parts, ", ")
	negative = strings.Join(profile.NegativeTerms, ", ")
	return positive, negative, nil
}

// SelfieCue is the cache cue recorded for a location selfie.
func SelfieCue(groupID, locationID, mood string) string {
	return fmt.Sprintf("selfie_%s_%s_%s", groupID, locationID, mood)
}

// BuildSelfiePrompt assembles the prompts for a location selfie shot.
func BuildSelfiePrompt(profile *db.StyleProfile, personaID, groupID, locationID, mood string) (positive, negative string, err error) {
	cue := fmt.Sprintf("%s selfie at %s in %s, %s mood", personaID, locationID, groupID, mood)
	return BuildPrompt(profile, cue, SelfieTags)
}
