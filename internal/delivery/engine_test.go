package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"soulmedia/internal/backend"
	"soulmedia/internal/config"
	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
	"soulmedia/internal/entity/dto"
	"soulmedia/internal/ids"
	"soulmedia/internal/model/memory"
	"soulmedia/internal/prompt"
	"soulmedia/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()

	profile := &db.StyleProfile{
		PersonaID:      "nova",
		BaseStyleRef:   "photoreal-v4",
		StyleModifiers: common.StringArray{"soft_light@2"},
		Palette:        common.JSONMap{"primary": "pastel pink"},
		NegativeTerms:  common.StringArray{"blurry"},
		UpdatedAtTS:    ids.NowMillis(),
	}
	if err := repo.UpsertStyleProfile(context.Background(), profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	cache := prompt.NewCache(repo, prompt.NewHashingEmbedder(), 0)
	registry := backend.NewRegistry(config.Config{})
	engine := NewEngine(repo, cache, registry, store, Options{PublicBaseURL: "/files"})
	return engine, repo
}

func TestDeliveryUniqueness(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req := dto.VariantRequest{PersonaID: "nova", Cue: "penguin in garden", UserID: "user1"}

	first, err := engine.RequestVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	if first.CacheHit {
		t.Error("request 1 should generate, not hit cache")
	}

	// Same user, same cue: the only variant is already seen, so a new
	// one is generated.
	second, err := engine.RequestVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.CacheHit {
		t.Error("request 2 should generate a fresh variant")
	}
	if second.VariantID == first.VariantID {
		t.Error("request 2 returned an already-seen variant")
	}
	if second.PromptKeyID != first.PromptKeyID {
		t.Errorf("same cue split prompt keys: %q vs %q", first.PromptKeyID, second.PromptKeyID)
	}

	// A different user gets the most recent existing variant.
	third, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "nova", Cue: "penguin in garden", UserID: "user2"})
	if err != nil {
		t.Fatalf("request 3: %v", err)
	}
	if !third.CacheHit {
		t.Error("request 3 should hit the cache")
	}
	if third.VariantID != second.VariantID {
		t.Errorf("request 3 returned %q, want most recent %q", third.VariantID, second.VariantID)
	}
}

func TestEquivalentCuesShareAPromptKey(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "nova", Cue: "a red dress at sunset", UserID: "u1"})
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	second, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "nova", Cue: "Red dress... sunset!", UserID: "u2"})
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.PromptKeyID != first.PromptKeyID {
		t.Errorf("equivalent cues got different prompt keys: %q vs %q", first.PromptKeyID, second.PromptKeyID)
	}
	if !second.CacheHit {
		t.Error("second user should receive the cached variant")
	}

	keys, err := repo.ListPromptKeys(ctx, "nova")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("expected a single prompt key, got %d", len(keys))
	}
}

func TestConcurrentRequestsShareAPromptKey(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	const callers = 8
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := engine.RequestVariant(ctx, dto.VariantRequest{
				PersonaID: "nova",
				Cue:       "penguin in garden",
				UserID:    fmt.Sprintf("user%d", i),
			})
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent request: %v", err)
		}
	}

	keys, err := repo.ListPromptKeys(ctx, "nova")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("concurrent identical cues created %d prompt keys, want 1", len(keys))
	}
}

func TestRequestVariantValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  dto.VariantRequest
	}{
		{"missing cue", dto.VariantRequest{PersonaID: "nova", UserID: "u1"}},
		{"missing user", dto.VariantRequest{PersonaID: "nova", Cue: "x"}},
		{"bad kind", dto.VariantRequest{PersonaID: "nova", Cue: "x", UserID: "u1", Kind: "hologram"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.RequestVariant(ctx, tt.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	_, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "ghost", Cue: "x", UserID: "u1"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown persona, got %v", err)
	}
}

func TestIdempotencyKeyMemoizesResponse(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req := dto.VariantRequest{PersonaID: "nova", Cue: "penguin", UserID: "u1", IdemKey: "idem-1"}
	first, err := engine.RequestVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}

	// A retry with the same key replays the stored response instead of
	// generating again (which would return a new variant).
	second, err := engine.RequestVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.VariantID != first.VariantID {
		t.Errorf("retry returned %q, want memoized %q", second.VariantID, first.VariantID)
	}
	if second.AssetURL != first.AssetURL || second.CacheHit != first.CacheHit {
		t.Errorf("retry response differs: %+v vs %+v", second, first)
	}
}

func TestGeneratedVariantIsPersisted(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	resp, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "nova", Cue: "penguin", UserID: "u1"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	variant, err := repo.GetVariant(ctx, resp.VariantID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if variant == nil {
		t.Fatal("variant not persisted")
	}
	if variant.PromptKeyID != resp.PromptKeyID {
		t.Errorf("variant pk = %q, want %q", variant.PromptKeyID, resp.PromptKeyID)
	}
	wantPrefix := "persona/nova/key/" + resp.PromptKeyID + "/variant/"
	if !strings.HasPrefix(variant.StorageKey, wantPrefix) {
		t.Errorf("storage key %q missing prefix %q", variant.StorageKey, wantPrefix)
	}
	if variant.Seed < 1000 || variant.Seed > 999999 {
		t.Errorf("seed %d outside expected range", variant.Seed)
	}
	if variant.PHash == 0 {
		t.Error("image variant missing perceptual hash")
	}
	if !strings.HasPrefix(resp.AssetURL, "/files/") {
		t.Errorf("asset url %q missing public base", resp.AssetURL)
	}

	seen, _ := repo.SeenVariantIDs(ctx, "u1")
	if _, ok := seen[resp.VariantID]; !ok {
		t.Error("freshly generated variant not marked seen for requester")
	}
}

func TestRequestLocationVariant(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	req := dto.LocationVariantRequest{PersonaID: "nova", Group: "paris", Mood: "joyful", UserID: "u1"}
	first, err := engine.RequestLocationVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 1: %v", err)
	}
	if first.SelectedLocation != "eiffel_tower" {
		t.Errorf("first location = %q, want eiffel_tower", first.SelectedLocation)
	}

	second, err := engine.RequestLocationVariant(ctx, req)
	if err != nil {
		t.Fatalf("request 2: %v", err)
	}
	if second.SelectedLocation != "louvre" {
		t.Errorf("second location = %q, want louvre", second.SelectedLocation)
	}

	// Location variants are not auto-seen; display is acknowledged
	// separately.
	seen, _ := repo.SeenVariantIDs(ctx, "u1")
	if _, ok := seen[first.VariantID]; ok {
		t.Error("location variant marked seen before acknowledgement")
	}

	if err := engine.MarkSeen(ctx, dto.MarkSeenRequest{UserID: "u1", VariantID: first.VariantID}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	seen, _ = repo.SeenVariantIDs(ctx, "u1")
	if _, ok := seen[first.VariantID]; !ok {
		t.Error("acknowledged variant not recorded")
	}

	_, err = engine.RequestLocationVariant(ctx, dto.LocationVariantRequest{PersonaID: "nova", Group: "atlantis", Mood: "calm", UserID: "u1"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown group, got %v", err)
	}
}

func TestMarkSeenUnknownVariant(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.MarkSeen(context.Background(), dto.MarkSeenRequest{UserID: "u1", VariantID: "missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCancelledContextStopsGeneration(t *testing.T) {
	engine, repo := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.RequestVariant(ctx, dto.VariantRequest{PersonaID: "nova", Cue: "penguin", UserID: "u1"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	variants, _ := repo.ListPromptKeys(context.Background(), "nova")
	if len(variants) != 0 {
		t.Error("cancelled request still created prompt keys")
	}
}
