package steps

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/forgeline/src/step"
)

const exportMetadataKey = "export_metadata"

func init() {
	step.Register(step.Descriptor{
		Key: exportMetadataKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &exportMetadata{build: b}
			if err := step.DecodeConf(exportMetadataKey, conf, s); err != nil {
				return nil, err
			}
			if s.Path == "" {
				s.Path = "forgeline-metadata.yml"
			}
			return s, nil
		},
	})
}

// exportMetadata writes a YAML summary of the build for downstream
// tooling: target image, image id, status, per-step timings and
// errors.
type exportMetadata struct {
	build *step.Build

	Path string `mapstructure:"path"`
}

type buildMetadata struct {
	Image     string            `yaml:"image"`
	ImageID   string            `yaml:"image_id,omitempty"`
	Version   string            `yaml:"version,omitempty"`
	Status    string            `yaml:"status"`
	Delegated bool              `yaml:"delegated,omitempty"`
	Errors    map[string]string `yaml:"errors,omitempty"`
	Durations map[string]string `yaml:"durations,omitempty"`
}

func (s *exportMetadata) Key() string { return exportMetadataKey }

func (s *exportMetadata) Run(ctx context.Context) (any, error) {
	md := buildMetadata{
		Image:   s.build.Image,
		ImageID: s.build.ImageID,
		Status:  buildStatus(s.build),
	}
	if v, ok := s.build.UserParams["build_version"].(string); ok {
		md.Version = v
	}
	if res := s.build.BuildStepResult; res != nil {
		md.Delegated = res.Delegated
	}
	if len(s.build.Errors) > 0 {
		md.Errors = s.build.Errors
	}
	if len(s.build.Durations) > 0 {
		md.Durations = map[string]string{}
		for k, d := range s.build.Durations {
			md.Durations[k] = d.String()
		}
	}

	data, err := yaml.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", s.Path, err)
	}
	log.Info().Str("path", s.Path).Msg("wrote build metadata")
	return map[string]any{"path": s.Path}, nil
}

// buildStatus collapses build state into one word for reports.
func buildStatus(b *step.Build) string {
	switch {
	case b.Canceled:
		return "canceled"
	case b.Failed():
		return "failed"
	default:
		return "succeeded"
	}
}
