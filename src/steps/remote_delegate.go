package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const remoteDelegateKey = "remote_delegate"

func init() {
	step.Register(step.Descriptor{
		Key: remoteDelegateKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &remoteDelegate{build: b, client: http.DefaultClient}
			if err := step.DecodeConf(remoteDelegateKey, conf, s); err != nil {
				return nil, err
			}
			return s, nil
		},
		ArgsFromUserParams: func(params map[string]any) map[string]any {
			out := map[string]any{}
			if v, ok := params["git_uri"]; ok {
				out["git_uri"] = v
			}
			if v, ok := params["git_ref"]; ok {
				out["git_ref"] = v
			}
			return out
		},
	})
}

// remoteDelegate hands the build to a remote builder service and
// relays its outcome. Without an endpoint the candidate does not
// apply, letting a local build step take over.
type remoteDelegate struct {
	build  *step.Build
	client *http.Client

	Endpoint string `mapstructure:"endpoint"`
	GitURI   string `mapstructure:"git_uri"`
	GitRef   string `mapstructure:"git_ref"`
}

func (s *remoteDelegate) Key() string { return remoteDelegateKey }

func (s *remoteDelegate) Run(ctx context.Context) (any, error) {
	if s.Endpoint == "" {
		return nil, fmt.Errorf("no remote builder endpoint: %w", step.ErrInappropriateBuildStep)
	}
	if s.GitURI == "" {
		return nil, fmt.Errorf("remote builds need a git uri: %w", step.ErrInappropriateBuildStep)
	}

	payload, err := json.Marshal(map[string]string{
		"image":   s.build.Image,
		"git_uri": s.GitURI,
		"git_ref": s.GitRef,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding build request: %w", err)
	}

	log.Info().Str("endpoint", s.Endpoint).Msg("delegating build to remote builder")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote builder: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("remote builder returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		ImageID    string   `json:"image_id"`
		FailReason string   `json:"fail_reason"`
		Logs       []string `json:"logs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding remote builder response: %w", err)
	}

	return &step.BuildOutcome{
		ImageID:    out.ImageID,
		FailReason: out.FailReason,
		Delegated:  true,
		Logs:       out.Logs,
	}, nil
}
