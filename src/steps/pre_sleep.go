package steps

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const preSleepKey = "pre_sleep"

func init() {
	step.Register(step.Descriptor{
		Key: preSleepKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &preSleep{}
			if err := step.DecodeConf(preSleepKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}

// preSleep pauses the pipeline. Useful for waiting out registry
// replication or rate limits between builds.
type preSleep struct {
	Seconds float64 `mapstructure:"seconds"`
}

func (s *preSleep) Key() string { return preSleepKey }

func (s *preSleep) Run(ctx context.Context) (any, error) {
	d := time.Duration(s.Seconds * float64(time.Second))
	if d <= 0 {
		return nil, nil
	}
	log.Info().Dur("duration", d).Msg("sleeping")
	select {
	case <-time.After(d):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
