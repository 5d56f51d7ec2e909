package utils

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PerceptualHash computes the 64-bit average hash of an encoded image
// and returns it with the source dimensions. The image is scaled to 8x8
// grayscale; each bit is set when the pixel is above the mean.
func PerceptualHash(data []byte) (hash uint64, width, height int, err error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, err
	}
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()

	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)

	var sum uint32
	for _, p := range small.Pix {
		sum += uint32(p)
	}
	mean := uint8(sum / 64)

	for i, p := range small.Pix {
		if p > mean {
			hash |= 1 << uint(63-i)
		}
	}
	return hash, width, height, nil
}

// HashDistance is the Hamming distance between two perceptual hashes.
func HashDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
