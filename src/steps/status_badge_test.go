package steps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sofmeright/forgeline/src/step"
)

func TestStatusBadgeReflectsBuildState(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *step.Build)
		message string
		color   string
	}{
		{"passing", func(b *step.Build) {}, "passing", "#4c1"},
		{"failing", func(b *step.Build) { b.BuildFailed = true }, "failing", "#e05d44"},
		{"canceled", func(b *step.Build) { b.Canceled = true }, "canceled", "#9f9f9f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := step.NewBuild()
			tt.mutate(b)

			path := filepath.Join(t.TempDir(), "status.svg")
			s := newStep(t, "status_badge", b, map[string]any{"path": path})
			res, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() = %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			svg := string(data)
			if !strings.Contains(svg, ">"+tt.message+"</text>") {
				t.Errorf("badge message %q missing", tt.message)
			}
			if !strings.Contains(svg, `fill="`+tt.color+`"`) {
				t.Errorf("badge color %q missing", tt.color)
			}
			if res.(map[string]any)["status"] != tt.message {
				t.Errorf("result = %v", res)
			}
		})
	}
}

func TestStatusBadgeMissingFontFails(t *testing.T) {
	b := step.NewBuild()
	s := newStep(t, "status_badge", b, map[string]any{
		"path":      filepath.Join(t.TempDir(), "status.svg"),
		"font_path": filepath.Join(t.TempDir(), "nope.ttf"),
	})
	if _, err := s.Run(context.Background()); err == nil {
		t.Error("Run() = nil, want error for a missing font")
	}
}
