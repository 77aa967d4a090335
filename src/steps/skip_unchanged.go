package steps

import (
	"context"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const skipUnchangedKey = "skip_unchanged"

func init() {
	step.Register(step.Descriptor{
		Key: skipUnchangedKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &skipUnchanged{build: b}
			if err := step.DecodeConf(skipUnchangedKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
		ArgsFromUserParams: func(params map[string]any) map[string]any {
			out := map[string]any{}
			if v, ok := params["last_built_rev"]; ok {
				out["last_built_rev"] = v
			}
			return out
		},
	})
}

// skipUnchanged cancels the build when the source revision matches the
// last built one. Cancellation is not a failure; exit steps still run.
type skipUnchanged struct {
	build *step.Build

	LastBuiltRev string `mapstructure:"last_built_rev"`
}

func (s *skipUnchanged) Key() string { return skipUnchangedKey }

func (s *skipUnchanged) Run(ctx context.Context) (any, error) {
	if s.LastBuiltRev == "" {
		log.Debug().Msg("no previous revision recorded, building")
		return nil, nil
	}

	repo, err := git.PlainOpen(s.build.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	rev := head.Hash().String()
	if rev == s.LastBuiltRev {
		return nil, fmt.Errorf("source unchanged since %s: %w", s.LastBuiltRev, step.ErrBuildCanceled)
	}
	return map[string]any{"revision": rev}, nil
}
