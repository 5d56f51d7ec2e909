package prompt

import (
	"strings"
	"testing"

	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		cue  string
		want string
	}{
		{"lowercase and sort", "Red DRESS Sunset", "dress red sunset"},
		{"punctuation stripped", "red, dress! (sunset)", "dress red sunset"},
		{"stopwords removed", "a red dress at the sunset", "dress red sunset"},
		{"whitespace collapsed", "  red   dress\tsunset ", "dress red sunset"},
		{"word order ignored", "sunset dress red", "dress red sunset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.cue, nil); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.cue, got, tt.want)
			}
		})
	}
}

func TestNormalizeAppendsStyleTags(t *testing.T) {
	profile := &db.StyleProfile{
		PersonaID:      "nova",
		StyleModifiers: common.StringArray{"anime_style@v1"},
		Palette:        common.JSONMap{"primary": "pastel pink"},
		MotionModule:   "animate-diff-v3",
	}

	got := Normalize("red dress", profile)
	want := "dress red anime style pastel colors animated style"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestStyleTags(t *testing.T) {
	tests := []struct {
		name    string
		profile *db.StyleProfile
		want    []string
	}{
		{"nil profile", nil, nil},
		{
			"non pastel palette",
			&db.StyleProfile{Palette: common.JSONMap{"primary": "deep navy"}},
			[]string{"elegant colors"},
		},
		{
			"static motion module",
			&db.StyleProfile{MotionModule: "still-v1"},
			[]string{"static style"},
		},
		{
			"modifier version dropped",
			&db.StyleProfile{StyleModifiers: common.StringArray{"film_grain@2"}},
			[]string{"film grain"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StyleTags(tt.profile)
			if len(got) != len(tt.want) {
				t.Fatalf("StyleTags = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("StyleTags[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	norm1, hash1, pk1 := CacheKey("nova", "a red dress at sunset", nil)
	norm2, hash2, pk2 := CacheKey("nova", "Red dress, sunset!", nil)

	if norm1 != norm2 || hash1 != hash2 || pk1 != pk2 {
		t.Fatalf("equivalent cues produced different keys: (%q,%q,%q) vs (%q,%q,%q)",
			norm1, hash1, pk1, norm2, hash2, pk2)
	}
	if len(hash1) != 16 {
		t.Errorf("hash length = %d, want 16", len(hash1))
	}
	if !strings.HasPrefix(pk1, "nova:") {
		t.Errorf("pk id %q missing persona prefix", pk1)
	}

	_, otherHash, _ := CacheKey("nova", "blue cat on the moon", nil)
	if otherHash == hash1 {
		t.Error("distinct cues produced the same hash")
	}
}

func TestBuildPrompt(t *testing.T) {
	profile := &db.StyleProfile{
		PersonaID:      "nova",
		StyleModifiers: common.StringArray{"soft_light@2"},
		Palette:        common.JSONMap{"primary": "pastel pink"},
		NegativeTerms:  common.StringArray{"blurry", "watermark"},
	}

	positive, negative, err := BuildPrompt(profile, "red dress at sunset", []string{"golden hour"})
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	want := "red dress at sunset, soft light, pastel colors, golden hour"
	if positive != want {
		t.Errorf("positive = %q, want %q", positive, want)
	}
	if negative != "blurry, watermark" {
		t.Errorf("negative = %q", negative)
	}

	if _, _, err := BuildPrompt(nil, "cue", nil); err == nil {
		t.Error("expected error for nil profile")
	}
}

func TestBuildSelfiePrompt(t *testing.T) {
	profile := &db.StyleProfile{PersonaID: "nova", NegativeTerms: common.StringArray{"lowres"}}

	positive, _, err := BuildSelfiePrompt(profile, "nova", "paris", "eiffel_tower", "joyful")
	if err != nil {
		t.Fatalf("BuildSelfiePrompt: %v", err)
	}
	if !strings.Contains(positive, "nova selfie at eiffel_tower in paris, joyful mood") {
		t.Errorf("positive missing selfie cue: %q", positive)
	}
	for _, tag := range SelfieTags {
		if !strings.Contains(positive, tag) {
			t.Errorf("positive missing tag %q: %q", tag, positive)
		}
	}

	if got := SelfieCue("paris", "louvre", "calm"); got != "selfie_paris_louvre_calm" {
		t.Errorf("SelfieCue = %q", got)
	}
}
