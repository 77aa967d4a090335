// Package badge renders flat SVG build-status badges. Text width is
// measured from a real font file when one is configured; otherwise a
// fixed per-glyph estimate keeps the renderer dependency-light.
package badge

import (
	"fmt"
	"math"
	"strings"
)

// Badge is one label/message pair.
type Badge struct {
	Label   string
	Message string
	Color   string // right-panel fill, e.g. "#4c1"
}

// Measurer returns the pixel width of rendered text.
type Measurer interface {
	TextWidth(s string) float64
}

// FixedMeasurer approximates text width with a constant per-rune
// advance. Used when no font file is configured.
type FixedMeasurer struct {
	Advance float64
}

func (m FixedMeasurer) TextWidth(s string) float64 {
	adv := m.Advance
	if adv == 0 {
		adv = 6.5
	}
	return float64(len([]rune(s))) * adv
}

// Render produces a shields-style flat SVG badge.
func Render(b Badge, m Measurer) string {
	if m == nil {
		m = FixedMeasurer{}
	}
	labelWidth := int(math.Round(m.TextWidth(b.Label))) + 10
	msgWidth := int(math.Round(m.TextWidth(b.Message))) + 10
	totalWidth := labelWidth + msgWidth

	color := b.Color
	if color == "" {
		color = "#9f9f9f"
	}

	label := xmlEscape(b.Label)
	msg := xmlEscape(b.Message)

	var s strings.Builder
	s.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20">`, totalWidth))

	s.WriteString(`<linearGradient id="b" x2="0" y2="100%">`)
	s.WriteString(`<stop offset="0" stop-color="#bbb" stop-opacity=".1"/>`)
	s.WriteString(`<stop offset="1" stop-opacity=".1"/>`)
	s.WriteString(`</linearGradient>`)

	s.WriteString(fmt.Sprintf(`<mask id="a"><rect width="%d" height="20" rx="3" fill="#fff"/></mask>`, totalWidth))
	s.WriteString(`<g mask="url(#a)">`)
	s.WriteString(fmt.Sprintf(`<rect width="%d" height="20" fill="#555"/>`, labelWidth))
	s.WriteString(fmt.Sprintf(`<rect x="%d" width="%d" height="20" fill="%s"/>`, labelWidth, msgWidth, xmlEscape(color)))
	s.WriteString(fmt.Sprintf(`<rect width="%d" height="20" fill="url(#b)"/>`, totalWidth))
	s.WriteString(`</g>`)

	s.WriteString(`<g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,sans-serif" font-size="11">`)
	s.WriteString(fmt.Sprintf(`<text x="%d" y="15" fill="#010101" fill-opacity=".3">%s</text>`, labelWidth/2, label))
	s.WriteString(fmt.Sprintf(`<text x="%d" y="14">%s</text>`, labelWidth/2, label))
	s.WriteString(fmt.Sprintf(`<text x="%d" y="15" fill="#010101" fill-opacity=".3">%s</text>`, labelWidth+msgWidth/2, msg))
	s.WriteString(fmt.Sprintf(`<text x="%d" y="14">%s</text>`, labelWidth+msgWidth/2, msg))
	s.WriteString(`</g>`)

	s.WriteString(`</svg>`)
	return s.String()
}

// xmlEscape escapes special XML characters in badge text.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
