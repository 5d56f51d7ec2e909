package model

import (
	"context"

	"github.com/sirupsen/logrus"

	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
	"soulmedia/internal/ids"
)

// SeedDefaultProfiles installs built-in persona style profiles on first
// start. A database that already holds any profile is left untouched.
func SeedDefaultProfiles(ctx context.Context, repo Repository) error {
	if repo == nil {
		return nil
	}
	count, err := repo.CountStyleProfiles(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := ids.NowMillis()
	profiles := []db.StyleProfile{
		{
			PersonaID:      "nova",
			BaseStyleRef:   "photoreal-v4",
			StyleModifiers: common.StringArray{"soft_light@2", "film_grain@1"},
			Palette:        common.JSONMap{"primary": "pastel pink", "secondary": "cream"},
			NegativeTerms:  common.StringArray{"blurry", "extra fingers", "watermark"},
			MotionModule:   "animate-diff-v3",
			UpdatedAtTS:    now,
		},
		{
			PersonaID:      "luna",
			BaseStyleRef:   "cinematic-v2",
			StyleModifiers: common.StringArray{"dramatic_shadows@1"},
			Palette:        common.JSONMap{"primary": "deep navy", "secondary": "silver"},
			NegativeTerms:  common.StringArray{"lowres", "distorted"},
			MotionModule:   "",
			UpdatedAtTS:    now,
		},
	}

	for i := range profiles {
		if err := repo.UpsertStyleProfile(ctx, &profiles[i]); err != nil {
			return err
		}
	}
	logrus.WithField("count", len(profiles)).Info("seeded default style profiles")
	return nil
}
