package steps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const buildxKey = "buildx"

func init() {
	step.Register(step.Descriptor{
		Key: buildxKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &buildx{build: b}
			if err := step.DecodeConf(buildxKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
		ArgsFromUserParams: func(params map[string]any) map[string]any {
			out := map[string]any{}
			if v, ok := params["build_version"]; ok {
				out["version"] = v
			}
			return out
		},
	})
}

// buildx builds the image locally with docker buildx. A build failure
// is reported through the outcome, not as an error, so bookkeeping and
// exit steps still run. Without a docker binary the candidate does not
// apply.
type buildx struct {
	build *step.Build

	Version   string            `mapstructure:"version"`
	Target    string            `mapstructure:"target"`
	Platforms []string          `mapstructure:"platforms"`
	BuildArgs map[string]string `mapstructure:"build_args"`
}

func (s *buildx) Key() string { return buildxKey }

func (s *buildx) Run(ctx context.Context) (any, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("no docker binary: %w", step.ErrInappropriateBuildStep)
	}

	iidFile := filepath.Join(os.TempDir(), fmt.Sprintf("forgeline-iid-%d", os.Getpid()))
	defer os.Remove(iidFile)

	args := s.buildArgs(iidFile)
	log.Info().Str("image", s.build.Image).Msg("building image with buildx")
	log.Debug().Str("cmd", "docker "+strings.Join(args, " ")).Msg("exec")

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &step.BuildOutcome{
			FailReason: fmt.Sprintf("docker buildx build failed: %v", err),
		}, nil
	}

	iid, err := os.ReadFile(iidFile)
	if err != nil {
		return nil, fmt.Errorf("reading image id file: %w", err)
	}
	return &step.BuildOutcome{ImageID: strings.TrimSpace(string(iid))}, nil
}

func (s *buildx) buildArgs(iidFile string) []string {
	args := []string{"buildx", "build", "--load", "--iidfile", iidFile}

	if s.build.DockerfilePath != "" {
		args = append(args, "--file", s.build.DockerfilePath)
	}
	if s.Target != "" {
		args = append(args, "--target", s.Target)
	}
	if len(s.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(s.Platforms, ","))
	}
	for k, v := range s.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	if s.Version != "" {
		args = append(args, "--build-arg", fmt.Sprintf("BUILD_VERSION=%s", s.Version))
	}
	if s.build.Image != "" {
		args = append(args, "--tag", s.build.Image)
	}

	return append(args, s.build.SourcePath)
}
