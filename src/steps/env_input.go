package steps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/forgeline/src/step"
)

const envInputKey = "env_input"

func init() {
	step.Register(step.Descriptor{
		Key: envInputKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &envInput{build: b}
			if err := step.DecodeConf(envInputKey, conf, s); err != nil {
				return nil, err
			}
			if s.Prefix == "" {
				s.Prefix = "FORGELINE_"
			}
			return s, nil
		},
	})
}

// envInput imports build parameters from the environment and, when
// configured, from a YAML params file. FORGELINE_GIT_URI becomes the
// param git_uri. Explicit config always wins over imported values.
type envInput struct {
	build *step.Build

	Prefix string `mapstructure:"prefix"`

	// File points at a YAML document of extra user params.
	File string `mapstructure:"file"`
}

func (s *envInput) Key() string { return envInputKey }

func (s *envInput) Run(ctx context.Context) (any, error) {
	imported := map[string]any{}

	if s.File != "" {
		data, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("reading params file: %w", err)
		}
		var fromFile map[string]any
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", s.File, err)
		}
		for k, v := range fromFile {
			s.importParam(k, v, imported)
		}
	}

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, s.Prefix) {
			continue
		}
		param := strings.ToLower(strings.TrimPrefix(name, s.Prefix))
		if param == "" {
			continue
		}
		s.importParam(param, value, imported)
	}

	log.Info().Int("params", len(imported)).Msg("imported user params")
	return imported, nil
}

func (s *envInput) importParam(key string, value any, imported map[string]any) {
	if _, exists := s.build.UserParams[key]; exists {
		log.Debug().Str("param", key).Msg("user param already set, keeping it")
		return
	}
	s.build.UserParams[key] = value
	imported[key] = value
}
