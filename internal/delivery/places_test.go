package delivery

import (
	"context"
	"errors"
	"testing"

	"soulmedia/internal/model/memory"
)

func TestChooseWalksCatalogueInOrder(t *testing.T) {
	chooser := NewPlaceChooser(memory.NewRepository())
	ctx := context.Background()

	catalogue := chooser.GroupLocations("paris")
	for i, want := range catalogue {
		got, err := chooser.Choose(ctx, "nova", "paris", "u1")
		if err != nil {
			t.Fatalf("choose %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("choice %d = %q, want %q", i, got, want)
		}
	}
}

func TestChooseAfterExhaustionPicksLeastUsed(t *testing.T) {
	chooser := NewPlaceChooser(memory.NewRepository())
	ctx := context.Background()

	catalogue := chooser.GroupLocations("rome")
	for range catalogue {
		if _, err := chooser.Choose(ctx, "nova", "rome", "u1"); err != nil {
			t.Fatalf("choose: %v", err)
		}
	}

	// All used once: the next pass repeats the catalogue from the top.
	got, err := chooser.Choose(ctx, "nova", "rome", "u1")
	if err != nil {
		t.Fatalf("choose after exhaustion: %v", err)
	}
	if got != catalogue[0] {
		t.Errorf("post-exhaustion choice = %q, want %q", got, catalogue[0])
	}

	// The repeated item now has count 2; the next call moves on.
	got, err = chooser.Choose(ctx, "nova", "rome", "u1")
	if err != nil {
		t.Fatalf("choose again: %v", err)
	}
	if got != catalogue[1] {
		t.Errorf("next choice = %q, want %q", got, catalogue[1])
	}
}

func TestChooseScopesAreIndependent(t *testing.T) {
	chooser := NewPlaceChooser(memory.NewRepository())
	ctx := context.Background()

	first, _ := chooser.Choose(ctx, "nova", "tokyo", "u1")
	second, _ := chooser.Choose(ctx, "nova", "tokyo", "u2")
	if first != second {
		t.Errorf("fresh scopes should both start at the catalogue head: %q vs %q", first, second)
	}

	third, _ := chooser.Choose(ctx, "luna", "tokyo", "u1")
	if third != first {
		t.Errorf("fresh persona should start at the catalogue head, got %q", third)
	}
}

func TestChooseUnknownGroup(t *testing.T) {
	chooser := NewPlaceChooser(memory.NewRepository())

	_, err := chooser.Choose(context.Background(), "nova", "atlantis", "u1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDescriptionFallsBackToKey(t *testing.T) {
	chooser := NewPlaceChooser(memory.NewRepository())

	if got := chooser.Description("eiffel_tower"); got != "Eiffel Tower with iron lattice structure" {
		t.Errorf("description = %q", got)
	}
	if got := chooser.Description("unknown_spot"); got != "unknown_spot" {
		t.Errorf("fallback = %q", got)
	}
}
