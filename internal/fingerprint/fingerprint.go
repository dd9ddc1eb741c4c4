package fingerprint

import (
	"image"

	"golang.org/x/image/draw"
)

// Sentinel marks an item whose fingerprint could not be computed. It must
// never be compared against real fingerprints.
const Sentinel uint64 = 0

// Compute computes a 64-bit difference hash from decoded pixels. The image is
// resampled to a 9x8 grayscale grid (9 columns for 8 horizontal differences);
// a bit is set when a pixel is brighter than its right neighbor. Deterministic
// for identical pixel input.
func Compute(img image.Image) uint64 {
	resized := resizeImage(img, 9, 8)
	gray := toGrayscale(resized)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}

	return hash
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar returns true if two hashes are within the given threshold.
// A threshold of 10 is typically used for near-duplicate detection.
func Similar(hash1, hash2 uint64, threshold int) bool {
	return HammingDistance(hash1, hash2) <= threshold
}

// AvgHash is a 1024-bit average hash, one bit per sample of a 32x32 grid.
type AvgHash [16]uint64

// ComputeAverage computes an average hash from decoded pixels. The image is
// resampled to 32x32 grayscale; each bit is set when the sample exceeds the
// image-wide mean brightness.
func ComputeAverage(img image.Image) AvgHash {
	resized := resizeImage(img, 32, 32)
	gray := toGrayscale(resized)

	var sum float64
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			sum += gray[x][y]
		}
	}
	mean := sum / 1024

	var hash AvgHash
	i := 0
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if gray[x][y] > mean {
				hash[i/64] |= 1 << (63 - i%64)
			}
			i++
		}
	}

	return hash
}

// AverageDistance computes the Hamming distance between two average hashes.
func AverageDistance(a, b AvgHash) int {
	distance := 0
	for i := range a {
		xor := a[i] ^ b[i]
		for xor != 0 {
			distance++
			xor &= xor - 1
		}
	}
	return distance
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}
