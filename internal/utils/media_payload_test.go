package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, w, h int, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeMediaPayload(t *testing.T) {
	raw := encodeTestPNG(t, 4, 4, func(x, y int) color.Color { return color.White })
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		payload string
		wantExt string
		wantErr bool
	}{
		{"data url", "data:image/png;base64," + encoded, "png", false},
		{"bare base64 sniffs mime", encoded, "png", false},
		{"empty payload", "", "", true},
		{"invalid base64", "data:image/png;base64,!!!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ext, err := DecodeMediaPayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMediaPayload: %v", err)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
			if !bytes.Equal(data, raw) {
				t.Error("decoded bytes differ from source")
			}
		})
	}
}

func TestExtensionFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg; charset=utf-8", "jpg"},
		{"video/mp4", "mp4"},
		{"video/webm", "webm"},
		{"application/octet-stream", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtensionFromMime(tt.mime); got != tt.want {
			t.Errorf("ExtensionFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestSplitDataURL(t *testing.T) {
	mimeType, payload := SplitDataURL("data:image/png;base64,QUJD")
	if mimeType != "image/png" || payload != "QUJD" {
		t.Errorf("got (%q, %q)", mimeType, payload)
	}

	mimeType, payload = SplitDataURL("QUJD")
	if mimeType != "image/jpeg" || payload != "QUJD" {
		t.Errorf("bare payload got (%q, %q)", mimeType, payload)
	}
}

func TestPerceptualHash(t *testing.T) {
	white := encodeTestPNG(t, 32, 32, func(x, y int) color.Color { return color.White })
	split := encodeTestPNG(t, 32, 32, func(x, y int) color.Color {
		if x < 16 {
			return color.Black
		}
		return color.White
	})

	hashWhite, w, h, err := PerceptualHash(white)
	if err != nil {
		t.Fatalf("hash white: %v", err)
	}
	if w != 32 || h != 32 {
		t.Errorf("dimensions = %dx%d", w, h)
	}

	hashWhiteAgain, _, _, _ := PerceptualHash(white)
	if hashWhite != hashWhiteAgain {
		t.Error("hash not deterministic")
	}

	hashSplit, _, _, err := PerceptualHash(split)
	if err != nil {
		t.Fatalf("hash split: %v", err)
	}
	if HashDistance(hashWhite, hashSplit) == 0 {
		t.Error("distinct images hashed identically")
	}

	if _, _, _, err := PerceptualHash([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}
