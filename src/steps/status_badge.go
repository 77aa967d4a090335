package steps

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/badge"
	"github.com/sofmeright/forgeline/src/step"
)

const statusBadgeKey = "status_badge"

func init() {
	step.Register(step.Descriptor{
		Key: statusBadgeKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &statusBadge{build: b}
			if err := step.DecodeConf(statusBadgeKey, conf, s); err != nil {
				return nil, err
			}
			if s.Path == "" {
				s.Path = "status.svg"
			}
			if s.Label == "" {
				s.Label = "build"
			}
			return s, nil
		},
	})
}

// statusBadge writes an SVG badge reflecting the final build state.
// Runs as an exit step so it sees the whole build.
type statusBadge struct {
	build *step.Build

	Path  string `mapstructure:"path"`
	Label string `mapstructure:"label"`

	// FontPath points at a TTF/OTF used for text measurement. Empty
	// falls back to a fixed per-glyph width.
	FontPath string `mapstructure:"font_path"`
}

func (s *statusBadge) Key() string { return statusBadgeKey }

func (s *statusBadge) Run(ctx context.Context) (any, error) {
	var m badge.Measurer
	if s.FontPath != "" {
		fm, err := badge.LoadFontFile(s.FontPath, 11)
		if err != nil {
			return nil, err
		}
		m = fm
	}

	message, color := badgeStatus(s.build)
	svg := badge.Render(badge.Badge{Label: s.Label, Message: message, Color: color}, m)
	if err := os.WriteFile(s.Path, []byte(svg), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", s.Path, err)
	}
	log.Info().Str("path", s.Path).Str("status", message).Msg("wrote status badge")
	return map[string]any{"path": s.Path, "status": message}, nil
}

func badgeStatus(b *step.Build) (message, color string) {
	switch {
	case b.Canceled:
		return "canceled", "#9f9f9f"
	case b.Failed():
		return "failing", "#e05d44"
	default:
		return "passing", "#4c1"
	}
}
