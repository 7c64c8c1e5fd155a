package capture

import (
	"image"
	"image/color"
	"testing"

	"pgregory.net/rapid"
)

func makeTestImage(w, h int, at func(x, y int) uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: at(x, y)})
		}
	}
	return img
}

func TestComputeHashStable(t *testing.T) {
	img := makeTestImage(640, 480, func(x, y int) uint8 { return uint8(213 - x/3) })
	a := ComputeHash(img)
	b := ComputeHash(img)
	if a != b {
		t.Fatalf("hash not deterministic: %v vs %v", a, b)
	}
	if a.IsZero() {
		t.Fatal("gradient image should not hash to zero")
	}
}

func TestComputeHashDistinguishesGradients(t *testing.T) {
	rising := makeTestImage(320, 240, func(x, y int) uint8 { return uint8(x * 255 / 319) })
	falling := makeTestImage(320, 240, func(x, y int) uint8 { return uint8(255 - x*255/319) })
	d := ComputeHash(rising).Distance(ComputeHash(falling))
	if d < 200 {
		t.Errorf("opposite gradients should differ strongly, distance = %d", d)
	}
}

func TestComputeHashIgnoresScale(t *testing.T) {
	at := func(x, y int) uint8 { return uint8(((x / 20) * 40) % 256) }
	small := makeTestImage(340, 256, at)
	large := makeTestImage(1360, 1024, func(x, y int) uint8 { return at(x/4, y/4) })
	d := ComputeHash(small).Distance(ComputeHash(large))
	if d > 10 {
		t.Errorf("scaled copies should be near-identical, distance = %d", d)
	}
}

func TestHashDistance(t *testing.T) {
	var a, b Hash
	if a.Distance(b) != 0 {
		t.Error("zero hashes should have distance 0")
	}
	b[0] = 0b1011
	if got := a.Distance(b); got != 3 {
		t.Errorf("distance = %d, want 3", got)
	}
	b[3] = 1 << 63
	if got := a.Distance(b); got != 4 {
		t.Errorf("distance = %d, want 4", got)
	}
}

func TestParseHashRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "zz", "abcd", "not hex at all"} {
		if _, ok := ParseHash(in); ok {
			t.Errorf("ParseHash(%q) accepted malformed input", in)
		}
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var h Hash
		for i := range h {
			h[i] = rapid.Uint64().Draw(t, "word")
		}
		parsed, ok := ParseHash(h.String())
		if !ok {
			t.Fatalf("ParseHash rejected %q", h.String())
		}
		if parsed != h {
			t.Fatalf("round trip mismatch: %v != %v", parsed, h)
		}
	})
}
