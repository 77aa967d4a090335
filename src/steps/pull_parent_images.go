package steps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/forgeline/src/dockerfile"
	"github.com/sofmeright/forgeline/src/registry"
	"github.com/sofmeright/forgeline/src/step"
)

const pullParentImagesKey = "pull_parent_images"

func init() {
	step.Register(step.Descriptor{
		Key:      pullParentImagesKey,
		Critical: true,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &pullParentImages{build: b}
			if err := step.DecodeConf(pullParentImagesKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

// pullParentImages resolves the Dockerfile's external parent images,
// verifies their manifests exist, and pulls them locally. Verification
// runs concurrently per parent; pulls are serialized to keep docker
// output readable.
type pullParentImages struct {
	build *step.Build

	// InspectOnly verifies manifests without pulling.
	InspectOnly bool `mapstructure:"inspect_only"`

	// Rewrites maps reference prefixes to replacements, applied to
	// each parent before lookup (mirror or organization redirects).
	Rewrites map[string]string `mapstructure:"rewrites"`
}

func (s *pullParentImages) rewrite(parent string) string {
	for from, to := range s.Rewrites {
		if strings.HasPrefix(parent, from) {
			rewritten := to + strings.TrimPrefix(parent, from)
			log.Debug().Str("from", parent).Str("to", rewritten).Msg("rewrote parent image")
			return rewritten
		}
	}
	return parent
}

func (s *pullParentImages) Key() string { return pullParentImagesKey }

func (s *pullParentImages) Run(ctx context.Context) (any, error) {
	info, err := dockerfile.Parse(s.build.DockerfilePath)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.build.DockerfilePath, err)
	}
	parents := info.Parents()
	for i, p := range parents {
		parents[i] = s.rewrite(p)
	}
	if len(parents) == 0 {
		log.Info().Msg("no external parent images")
		return map[string]any{"parents": parents}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, parent := range parents {
		parent := parent
		g.Go(func() error {
			ref := registry.ParseRef(parent)
			ok, err := registry.NewClient(ref.Host).ManifestExists(gctx, ref.Repo, ref.Tag)
			if err != nil {
				return fmt.Errorf("checking %s: %w", parent, err)
			}
			if !ok {
				return fmt.Errorf("parent image %s not found in registry", parent)
			}
			log.Debug().Str("image", parent).Msg("parent manifest present")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !s.InspectOnly {
		for _, parent := range parents {
			log.Info().Str("image", parent).Msg("pulling parent image")
			cmd := exec.CommandContext(ctx, "docker", "pull", parent)
			cmd.Stdout = os.Stderr
			cmd.Stderr = os.Stderr
			if err := cmd.Run(); err != nil {
				return nil, fmt.Errorf("pulling %s: %w", parent, err)
			}
		}
	}

	return map[string]any{"parents": parents}, nil
}
