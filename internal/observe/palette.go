package observe

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Color is a named log color.
type Color string

const (
	Blue   Color = "blue"
	Green  Color = "green"
	Teal   Color = "teal"
	Yellow Color = "yellow"
	Orange Color = "orange"
	Purple Color = "purple"
)

// Colors lists the palette in assignment order.
var Colors = []Color{Blue, Green, Teal, Yellow, Orange, Purple}

var hex = map[Color]string{
	Blue:   "#5F87FF",
	Green:  "#04B575",
	Teal:   "#00AFAF",
	Yellow: "#FFD700",
	Orange: "#FFA500",
	Purple: "#AF5FFF",
}

// ParseColor validates a color name. The empty string means no preference.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return "", nil
	}
	if _, ok := hex[c]; !ok {
		return "", fmt.Errorf("unknown log color %q", s)
	}
	return c, nil
}

func (c Color) lipgloss() lipgloss.Color {
	return lipgloss.Color(hex[c])
}

// Palette hands out log colors to named contexts. One Palette is created per
// process and shared by reference with everything that logs.
type Palette struct {
	mu       sync.Mutex
	assigned map[string]Color
	rnd      *rand.Rand
}

func NewPalette() *Palette {
	return &Palette{
		assigned: make(map[string]Color),
		rnd:      rand.New(rand.NewSource(rand.Int63())), // #nosec G404 cosmetic only
	}
}

// Assign returns the color for context. A context keeps its first color. Otherwise
// the preferred color is used when free, then the first free palette color, and
// once the palette is exhausted a random one is reused.
func (p *Palette) Assign(context string, preferred Color) Color {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.assigned[context]; ok {
		return c
	}

	used := make(map[Color]bool, len(p.assigned))
	for _, c := range p.assigned {
		used[c] = true
	}

	var chosen Color
	switch {
	case preferred != "" && !used[preferred]:
		chosen = preferred
	default:
		for _, c := range Colors {
			if !used[c] {
				chosen = c
				break
			}
		}
		if chosen == "" {
			chosen = Colors[p.rnd.Intn(len(Colors))]
		}
	}

	p.assigned[context] = chosen
	return chosen
}

// Scoped returns a logger for context colored through the palette. A nil
// palette uses the preferred color directly.
func (o *Observer) Scoped(p *Palette, context string, preferred Color) *Logger {
	if p == nil {
		return o.Logger(context, preferred)
	}
	return o.Logger(context, p.Assign(context, preferred))
}

// LipglossColor returns the terminal color for c.
func LipglossColor(c Color) lipgloss.Color {
	return c.lipgloss()
}

// Hex returns the color as a "#RRGGBB" string, or "" for unknown colors.
func (c Color) Hex() string {
	return hex[c]
}
