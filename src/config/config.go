// Package config loads forgeline build configuration: the target
// image, the source location, and the declarative step plan for every
// phase.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/forgeline/src/step"
)

const defaultConfigFile = ".forgeline.yml"

// Config is the top-level forgeline configuration.
type Config struct {
	// Image is the target image reference ([registry/]name[:tag]).
	Image string `yaml:"image" toml:"image"`

	Source SourceConfig `yaml:"source" toml:"source"`

	// UserParams are build-wide parameters offered to every step that
	// opts into them.
	UserParams map[string]any `yaml:"user_params" toml:"user_params"`

	Phases Phases `yaml:"phases" toml:"phases"`
}

// SourceConfig describes where the build source comes from.
type SourceConfig struct {
	// URI is a git remote to clone. Empty means Path is already a
	// checkout and is used as-is.
	URI string `yaml:"uri" toml:"uri"`
	Ref string `yaml:"ref" toml:"ref"`

	// Path is the local checkout location.
	Path string `yaml:"path" toml:"path"`

	// Dockerfile is relative to the checkout root.
	Dockerfile string `yaml:"dockerfile" toml:"dockerfile"`
}

// Phases holds the ordered step plan for each phase. Within a phase,
// steps execute in exactly the order declared here.
type Phases struct {
	Input      []step.Request `yaml:"input" toml:"input"`
	PreBuild   []step.Request `yaml:"prebuild" toml:"prebuild"`
	BuildStep  []step.Request `yaml:"buildstep" toml:"buildstep"`
	PrePublish []step.Request `yaml:"prepublish" toml:"prepublish"`
	PostBuild  []step.Request `yaml:"postbuild" toml:"postbuild"`
	Exit       []step.Request `yaml:"exit" toml:"exit"`
}

// All returns every phase plan in declared phase order.
func (p Phases) All() [][]step.Request {
	return [][]step.Request{p.Input, p.PreBuild, p.BuildStep, p.PrePublish, p.PostBuild, p.Exit}
}

// Load reads configuration from a YAML or TOML file (decided by
// extension). If path is empty, it tries the default file and returns
// defaults when it doesn't exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Source: SourceConfig{
			Path:       ".",
			Dockerfile: "Dockerfile",
		},
		UserParams: map[string]any{},
		Phases: Phases{
			BuildStep: []step.Request{{Name: "buildx"}},
		},
	}
}

func (c *Config) validate() error {
	if c.Source.Path == "" {
		return errors.New("source.path must not be empty")
	}
	if c.Source.Dockerfile == "" {
		return errors.New("source.dockerfile must not be empty")
	}
	for _, plan := range c.Phases.All() {
		for _, q := range plan {
			if q.Name == "" {
				return errors.New("every phase step needs a name")
			}
		}
	}
	return nil
}
