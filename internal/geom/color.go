package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is the display color given to a group of streamed levels.
type Color struct {
	R, G, B, A uint8
}

// White is the default level color.
var White = Color{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Intner is the subset of a random stream needed to pick a color.
type Intner interface {
	Intn(n int) int
}

// RandomColor picks an opaque color from rng.
func RandomColor(rng Intner) Color {
	return Color{
		R: uint8(rng.Intn(256)),
		G: uint8(rng.Intn(256)),
		B: uint8(rng.Intn(256)),
		A: 0xff,
	}
}

// Hex formats the color as #rrggbbaa.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) String() string {
	return c.Hex()
}

// ParseColor parses #rrggbb or #rrggbbaa.
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
