// Package step implements the capability-unit engine behind a
// forgeline build: the step contract, a static registry, declarative
// plan resolution, and a single-phase runner with failure aggregation.
package step

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
)

// Step is the interface every build step implements.
type Step interface {
	// Key uniquely identifies the step. The value returned by Run is
	// stored in the phase result map under this key.
	Key() string

	// Run performs the step's work. The returned value may be nil;
	// downstream steps read it from the phase result maps.
	Run(ctx context.Context) (any, error)
}

// Factory constructs a step bound to a build. By the time a factory
// runs, conf has been merged with user-param derived args and
// placeholder-substituted.
type Factory func(b *Build, conf map[string]any) (Step, error)

// Descriptor describes a registered step class.
type Descriptor struct {
	Key string
	New Factory

	// Critical steps abort their phase when they fail. The zero value
	// means a failure is tolerated unless the plan overrides it.
	Critical bool

	// ArgsFromUserParams derives extra constructor args from the
	// build's user params. Mapped values take precedence over args
	// declared in the plan.
	ArgsFromUserParams func(params map[string]any) map[string]any
}

// ErrBuildCanceled is returned from Run by a step that decides the
// build should not continue. It is reported as a cancellation, not as
// a step failure; exit steps still run.
var ErrBuildCanceled = errors.New("build canceled")

// ErrInappropriateBuildStep is returned by a build-step candidate
// that does not apply to the current build. The runner moves on to
// the next candidate without recording a result.
var ErrInappropriateBuildStep = errors.New("build step not appropriate")

// FailedError aggregates the fatal step failures of one phase.
type FailedError struct {
	Messages []string
}

func (e *FailedError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("multiple steps raised errors: [%s]", strings.Join(e.Messages, "; "))
}

// DecodeConf decodes a step's raw plan args into out. Keys the step
// does not declare are logged and dropped rather than failing
// construction, so a stale plan entry can't break the build.
func DecodeConf(key string, conf map[string]any, out any) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("step %s: building decoder: %w", key, err)
	}
	if err := dec.Decode(conf); err != nil {
		return fmt.Errorf("step %s: decoding args: %w", key, err)
	}
	for _, k := range md.Unused {
		log.Warn().Str("step", key).Str("arg", k).Msg("step does not take this argument, ignoring it")
	}
	return nil
}
