package steps

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/registry"
	"github.com/sofmeright/forgeline/src/step"
)

const tagAndPushKey = "tag_and_push"

func init() {
	step.Register(step.Descriptor{
		Key:      tagAndPushKey,
		Critical: true,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &tagAndPush{build: b}
			if err := step.DecodeConf(tagAndPushKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

// tagAndPush tags the built image and pushes it, then confirms the
// manifest actually landed in the registry. Delegated builds skip the
// local docker work since the image never existed here.
type tagAndPush struct {
	build *step.Build

	// ExtraTags are pushed in addition to the build's target image.
	ExtraTags []string `mapstructure:"extra_tags"`

	// Verify disables the post-push manifest check when false is set
	// explicitly; the zero value of a *bool means verify.
	Verify *bool `mapstructure:"verify"`
}

func (s *tagAndPush) Key() string { return tagAndPushKey }

func (s *tagAndPush) Run(ctx context.Context) (any, error) {
	if res := s.build.BuildStepResult; res != nil && res.Delegated {
		log.Info().Msg("build was delegated, remote builder already pushed")
		return map[string]any{"pushed": []string{}}, nil
	}
	if s.build.ImageID == "" {
		return nil, fmt.Errorf("no built image to push")
	}

	refs := append([]string{s.build.Image}, s.ExtraTags...)
	for _, ref := range refs {
		if err := s.docker(ctx, "tag", s.build.ImageID, ref); err != nil {
			return nil, fmt.Errorf("tagging %s: %w", ref, err)
		}
		log.Info().Str("image", ref).Msg("pushing image")
		if err := s.docker(ctx, "push", ref); err != nil {
			return nil, fmt.Errorf("pushing %s: %w", ref, err)
		}
	}

	if s.Verify == nil || *s.Verify {
		for _, raw := range refs {
			ref := registry.ParseRef(raw)
			ok, err := registry.NewClient(ref.Host).ManifestExists(ctx, ref.Repo, ref.Tag)
			if err != nil {
				return nil, fmt.Errorf("verifying %s: %w", raw, err)
			}
			if !ok {
				return nil, fmt.Errorf("pushed %s but the registry has no manifest for it", raw)
			}
		}
	}

	return map[string]any{"pushed": refs}, nil
}

func (s *tagAndPush) docker(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
