package lane

import (
	"github.com/allpedroza/karaoke/internal/pitch"
	"github.com/lucasb-eyer/go-colorful"
)

// Colors by pitch class; sharps take their natural's color.
var noteColors = map[string]colorful.Color{
	"C": mustHex("#ef4444"),
	"D": mustHex("#f97316"),
	"E": mustHex("#eab308"),
	"F": mustHex("#22c55e"),
	"G": mustHex("#06b6d4"),
	"A": mustHex("#3b82f6"),
	"B": mustHex("#a855f7"),
}

var (
	background    = mustHex("#111111")
	unknownColor  = mustHex("#ffffff")
	onPitchColor  = mustHex("#22c55e")
	offPitchColor = mustHex("#ef4444")
	trailColor    = mustHex("#ec4899")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// inactiveOpacity is applied to reference notes the singer is not on yet.
const inactiveOpacity = 0.6

// NoteColor returns the hex color of a note's pitch class.
func NoteColor(name string) string {
	return noteColor(name).Hex()
}

func noteColor(name string) colorful.Color {
	if c, ok := noteColors[pitch.PitchClass(name)]; ok {
		return c
	}
	return unknownColor
}

// Fade blends c over the lane background at the given opacity and returns hex.
func Fade(c colorful.Color, opacity float64) string {
	if opacity <= 0 {
		return background.Hex()
	}
	if opacity >= 1 {
		return c.Hex()
	}
	return background.BlendLab(c, opacity).Clamped().Hex()
}

// Background returns the lane background color.
func Background() string {
	return background.Hex()
}
