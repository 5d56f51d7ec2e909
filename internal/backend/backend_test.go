package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"soulmedia/internal/config"
	"soulmedia/internal/entity/common"
	"soulmedia/internal/utils"
)

func TestFakeImageDeterministic(t *testing.T) {
	b := NewFake(common.AssetImage)
	ctx := context.Background()

	job := Job{PersonaID: "nova", VariantID: "v1", Kind: common.AssetImage, Seed: 424242}
	first, err := b.Generate(ctx, job)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := b.Generate(ctx, job)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("same seed produced different bytes")
	}
	if first.Ext != "png" {
		t.Errorf("ext = %q, want png", first.Ext)
	}

	other, err := b.Generate(ctx, Job{Seed: 1111})
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}
	if bytes.Equal(first.Data, other.Data) {
		t.Error("different seeds produced identical bytes")
	}

	// Output must be hashable like a real asset.
	if _, _, _, err := utils.PerceptualHash(first.Data); err != nil {
		t.Errorf("fake image not decodable: %v", err)
	}
}

func TestFakeClipProducesGIF(t *testing.T) {
	b := NewFake(common.AssetClip)

	result, err := b.Generate(context.Background(), Job{Seed: 7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Ext != "gif" {
		t.Errorf("ext = %q, want gif", result.Ext)
	}
	if !bytes.HasPrefix(result.Data, []byte("GIF8")) {
		t.Error("clip bytes are not a GIF")
	}
}

func TestFakeHonorsCancelledContext(t *testing.T) {
	b := NewFake(common.AssetImage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Generate(ctx, Job{Seed: 1}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRegistryFallsBackToFake(t *testing.T) {
	// No credentials configured: both kinds get the fake backend.
	r := NewRegistry(config.Config{})

	for _, kind := range []common.AssetKind{common.AssetImage, common.AssetClip} {
		b, err := r.For(kind)
		if err != nil {
			t.Fatalf("For(%s): %v", kind, err)
		}
		if b.Name() != "fake" {
			t.Errorf("kind %s backend = %q, want fake", kind, b.Name())
		}
		if b.Kind() != kind {
			t.Errorf("backend kind mismatch: %s vs %s", b.Kind(), kind)
		}
	}

	if _, err := r.For(common.AssetKind("hologram")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRegistryUsesRealBackendsWhenConfigured(t *testing.T) {
	cfg := config.Config{
		VolcengineAPIKey: "vk",
		FalAPIKey:        "fk",
	}
	r := NewRegistry(cfg)

	img, _ := r.For(common.AssetImage)
	if img.Name() != "volcengine" {
		t.Errorf("image backend = %q, want volcengine", img.Name())
	}
	clip, _ := r.For(common.AssetClip)
	if clip.Name() != "fal" {
		t.Errorf("clip backend = %q, want fal", clip.Name())
	}
}

func TestFalEnvelopeParsing(t *testing.T) {
	body := []byte(`{
		"request_id": "req-1",
		"status": "IN_PROGRESS",
		"response": {
			"status": "COMPLETED",
			"video": {"url": "https://cdn.example/clip.mp4", "content_type": "video/mp4"}
		}
	}`)

	var envelope falEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	envelope.mergeInner()

	if envelope.Status != "COMPLETED" {
		t.Errorf("status = %q", envelope.Status)
	}
	if envelope.videoURL() != "https://cdn.example/clip.mp4" {
		t.Errorf("video url = %q", envelope.videoURL())
	}

	var empty falEnvelope
	if empty.videoURL() != "" {
		t.Error("empty envelope has a video url")
	}
}
