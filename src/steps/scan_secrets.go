package steps

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/sofmeright/forgeline/src/step"
)

const scanSecretsKey = "scan_secrets"

func init() {
	step.Register(step.Descriptor{
		Key: scanSecretsKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &scanSecrets{build: b}
			if err := step.DecodeConf(scanSecretsKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

// scanSecrets runs a gitleaks sweep over the build source so leaked
// credentials never get baked into an image.
type scanSecrets struct {
	build *step.Build

	// WarnOnly downgrades hits from an error to a log warning.
	WarnOnly bool `mapstructure:"warn_only"`
}

type secretHit struct {
	File string
	Line int
	Rule string
}

func (s *scanSecrets) Key() string { return scanSecretsKey }

func (s *scanSecrets) Run(ctx context.Context) (any, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}

	var hits []secretHit
	root := s.build.SourcePath
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for _, f := range detector.DetectBytes(data) {
			hits = append(hits, secretHit{
				File: rel,
				Line: f.StartLine + 1, // gitleaks is 0-indexed
				Rule: f.RuleID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	for _, h := range hits {
		log.Warn().Str("file", h.File).Int("line", h.Line).Str("rule", h.Rule).Msg("possible secret in build source")
	}
	if len(hits) > 0 && !s.WarnOnly {
		return nil, fmt.Errorf("found %d possible secrets in build source", len(hits))
	}
	return map[string]any{"hits": len(hits)}, nil
}
