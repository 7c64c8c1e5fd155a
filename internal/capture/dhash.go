package capture

import (
	"encoding/hex"
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// hashSide is the edge length of the difference-hash grid. Each of the 16
// rows compares 17 horizontally adjacent luma samples, yielding 256 bits.
const hashSide = 16

// Hash is a 256-bit perceptual difference hash of a frame.
type Hash [4]uint64

// ComputeHash reduces an image to a 17x16 grayscale grid and packs the
// horizontal gradient signs into a 256-bit hash. Visually similar frames
// produce hashes with small Hamming distance.
func ComputeHash(img image.Image) Hash {
	small := image.NewGray(image.Rect(0, 0, hashSide+1, hashSide))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var h Hash
	bit := 0
	for y := 0; y < hashSide; y++ {
		for x := 0; x < hashSide; x++ {
			left := small.GrayAt(x, y).Y
			right := small.GrayAt(x+1, y).Y
			if left > right {
				h[bit/64] |= 1 << uint(bit%64)
			}
			bit++
		}
	}
	return h
}

// Distance returns the Hamming distance between two hashes.
func (h Hash) Distance(other Hash) int {
	d := 0
	for i := range h {
		d += bits.OnesCount64(h[i] ^ other[i])
	}
	return d
}

// IsZero reports whether the hash is the zero value, used as the "no hash"
// sentinel for frames that never went through ComputeHash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders the hash as 64 lowercase hex digits.
func (h Hash) String() string {
	var buf [32]byte
	for i, word := range h {
		for j := 0; j < 8; j++ {
			buf[i*8+j] = byte(word >> uint(j*8))
		}
	}
	return hex.EncodeToString(buf[:])
}

// ParseHash decodes the hex form produced by String. Malformed input
// returns the zero hash and false.
func ParseHash(s string) (Hash, bool) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return Hash{}, false
	}
	var h Hash
	for i := range h {
		for j := 0; j < 8; j++ {
			h[i] |= uint64(raw[i*8+j]) << uint(j*8)
		}
	}
	return h, true
}
