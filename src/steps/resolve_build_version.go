package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const resolveBuildVersionKey = "resolve_build_version"

func init() {
	step.Register(step.Descriptor{
		Key: resolveBuildVersionKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &resolveBuildVersion{build: b}
			if err := step.DecodeConf(resolveBuildVersionKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

// resolveBuildVersion derives the build version from git tags: the
// highest semver tag, with a dev suffix when HEAD has moved past it.
// The result lands in the build_version user param for later steps.
type resolveBuildVersion struct {
	build *step.Build
}

func (s *resolveBuildVersion) Key() string { return resolveBuildVersionKey }

func (s *resolveBuildVersion) Run(ctx context.Context) (any, error) {
	repo, err := git.PlainOpen(s.build.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	sha := head.Hash().String()[:7]

	tags, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var highest *semver.Version
	atHead := false
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		v, err := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if err != nil {
			log.Debug().Str("tag", name).Msg("tag is not a version, ignoring it")
			return nil
		}
		if highest == nil || v.GreaterThan(highest) {
			highest = v
			atHead = ref.Hash() == head.Hash()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	version := "0.0.0"
	if highest != nil {
		version = highest.String()
	}
	if highest == nil || !atHead {
		version = fmt.Sprintf("%s-dev+%s", version, sha)
	}

	s.build.UserParams["build_version"] = version
	log.Info().Str("version", version).Msg("resolved build version")
	return map[string]any{
		"version":  version,
		"revision": head.Hash().String(),
	}, nil
}
