// Package avatar generates placeholder profile images: a single upper-cased
// initial centered on a colored square.
//
// HOW THE IMAGE IS BUILT:
// We draw onto an in-memory image.RGBA using the standard image packages,
// and render the glyph with golang.org/x/image/font — the extended image
// repo that ships font parsing (opentype) and an embedded bold sans-serif
// face (gofont/gobold). No external font files, no C bindings.
//
// COLORS:
// The background and foreground colors are each drawn independently from
// the randomness source, like picking two random hex colors. That means an
// occasionally low-contrast avatar — a quirk of the product, not a bug.
// Stability across requests comes from persistence (see Store), not from
// deterministic generation.
package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand/v2"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// Size is the width and height of generated avatars in pixels.
	Size = 100

	fontSize = 50 // points at 72 DPI — half the avatar height, like the original look
)

// Generator renders avatar images. It parses the embedded gobold face once
// at construction; Render is then cheap enough to call per request.
type Generator struct {
	face font.Face

	// font.Face implementations cache glyph rasterisations and are not
	// safe for concurrent use. One mutex serialises Render calls.
	mu sync.Mutex
}

// NewGenerator parses the embedded bold font face.
func NewGenerator() (*Generator, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("avatar: parsing embedded font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: building font face: %w", err)
	}

	return &Generator{face: face}, nil
}

// Render produces a Size×Size PNG with the upper-cased initial centered on
// a random background. It must not fail for any printable rune — a glyph
// missing from the face simply renders as the face's replacement character.
func (g *Generator) Render(initial rune) ([]byte, error) {
	bg := randomColor()
	fg := randomColor()
	return g.render(initial, bg, fg)
}

// render is the deterministic core: fixed colors in, PNG bytes out.
// Split from Render so tests can pin the colors.
func (g *Generator) render(initial rune, bg, fg color.Color) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: g.face,
	}

	s := string(unicode.ToUpper(initial))

	// Center the glyph: BoundString gives the ink box of the rendered
	// string relative to the baseline. We place the baseline so the ink
	// box sits in the middle of the square both horizontally and
	// vertically.
	bounds, advance := d.BoundString(s)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(Size) - advance) / 2,
		Y: (fixed.I(Size)-(bounds.Max.Y-bounds.Min.Y))/2 - bounds.Min.Y,
	}
	d.DrawString(s)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("avatar: encoding png: %w", err)
	}

	return buf.Bytes(), nil
}

// randomColor picks a fully opaque color uniformly from the 24-bit RGB cube.
func randomColor() color.Color {
	v := rand.Uint32N(1 << 24)
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xFF,
	}
}
