package backend

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"

	"soulmedia/internal/entity/common"
)

// Fake renders deterministic placeholder assets locally. Used in
// development and tests when no provider is configured: the same seed
// always yields the same bytes.
type Fake struct {
	kind common.AssetKind
}

// NewFake creates a fake backend for one asset kind.
func NewFake(kind common.AssetKind) *Fake {
	return &Fake{kind: kind}
}

func (b *Fake) Name() string {
	return "fake"
}

func (b *Fake) Kind() common.AssetKind {
	return b.kind
}

// Generate renders a seed-colored 64x64 PNG, or a two-frame GIF for
// clips.
func (b *Fake) Generate(ctx context.Context, job Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch b.kind {
	case common.AssetClip:
		data, err := renderFakeGIF(job.Seed)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Ext: "gif"}, nil
	default:
		data, err := renderFakePNG(job.Seed)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Ext: "png"}, nil
	}
}

func seedColor(seed int64) color.RGBA {
	return color.RGBA{
		R: uint8(seed),
		G: uint8(seed >> 8),
		B: uint8(seed >> 16),
		A: 255,
	}
}

func renderFakeImage(seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	fill := seedColor(seed)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := fill
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{R: fill.B, G: fill.R, B: fill.G, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func renderFakePNG(seed int64) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, renderFakeImage(seed)); err != nil {
		return nil, fmt.Errorf("render fake png: %w", err)
	}
	return buf.Bytes(), nil
}

func renderFakeGIF(seed int64) ([]byte, error) {
	anim := &gif.GIF{}
	for frame := int64(0); frame < 2; frame++ {
		src := renderFakeImage(seed + frame)
		paletted := image.NewPaletted(src.Bounds(), palette(seed, frame))
		for y := src.Bounds().Min.Y; y < src.Bounds().Max.Y; y++ {
			for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
				paletted.Set(x, y, src.At(x, y))
			}
		}
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, 50)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("render fake gif: %w", err)
	}
	return buf.Bytes(), nil
}

func palette(seed, frame int64) color.Palette {
	fill := seedColor(seed + frame)
	return color.Palette{
		color.RGBA{A: 255},
		fill,
		color.RGBA{R: fill.B, G: fill.R, B: fill.G, A: 255},
	}
}
