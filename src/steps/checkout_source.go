package steps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const checkoutSourceKey = "checkout_source"

func init() {
	step.Register(step.Descriptor{
		Key:      checkoutSourceKey,
		Critical: true,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &checkoutSource{build: b}
			if err := step.DecodeConf(checkoutSourceKey, conf, s); err != nil {
				return nil, err
			}
			if s.Path == "" {
				s.Path = b.SourcePath
			}
			return s, nil
		},
		ArgsFromUserParams: func(params map[string]any) map[string]any {
			out := map[string]any{}
			if v, ok := params["git_uri"]; ok {
				out["uri"] = v
			}
			if v, ok := params["git_ref"]; ok {
				out["ref"] = v
			}
			return out
		},
	})
}

// checkoutSource clones the build source and checks out the requested
// ref. Without a URI the source path is assumed to be a checkout
// already and the step is a no-op.
type checkoutSource struct {
	build *step.Build

	URI  string `mapstructure:"uri"`
	Ref  string `mapstructure:"ref"`
	Path string `mapstructure:"path"`
}

func (s *checkoutSource) Key() string { return checkoutSourceKey }

func (s *checkoutSource) Run(ctx context.Context) (any, error) {
	if s.URI == "" {
		log.Debug().Str("path", s.Path).Msg("no source uri, using local checkout")
		return map[string]any{"path": s.Path}, nil
	}

	log.Info().Str("uri", s.URI).Str("path", s.Path).Msg("cloning source")
	repo, err := git.PlainCloneContext(ctx, s.Path, false, &git.CloneOptions{URL: s.URI})
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", s.URI, err)
	}

	if s.Ref != "" {
		hash, err := repo.ResolveRevision(plumbing.Revision(s.Ref))
		if err != nil {
			return nil, fmt.Errorf("resolving ref %s: %w", s.Ref, err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("opening worktree: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
			return nil, fmt.Errorf("checking out %s: %w", s.Ref, err)
		}
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	s.retarget()
	return map[string]any{
		"path":     s.Path,
		"revision": head.Hash().String(),
	}, nil
}

// retarget moves the build's source path to the checkout, keeping the
// Dockerfile's location relative to the source root.
func (s *checkoutSource) retarget() {
	if s.build.DockerfilePath != "" {
		rel, err := filepath.Rel(s.build.SourcePath, s.build.DockerfilePath)
		if err == nil && !strings.HasPrefix(rel, "..") {
			s.build.DockerfilePath = filepath.Join(s.Path, rel)
		}
	}
	s.build.SourcePath = s.Path
}
