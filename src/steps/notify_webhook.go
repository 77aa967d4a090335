package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sofmeright/forgeline/src/step"
)

const notifyWebhookKey = "notify_webhook"

func init() {
	step.Register(step.Descriptor{
		Key: notifyWebhookKey,
		New: func(b *step.Build, conf map[string]any) (step.Step, error) {
			s := &notifyWebhook{build: b, client: http.DefaultClient}
			if err := step.DecodeConf(notifyWebhookKey, conf, s); err != nil {
				return nil, err
			}
			if s.URL == "" {
				return nil, fmt.Errorf("notify_webhook needs a url")
			}
			return s, nil
		},
	})
}

// notifyWebhook POSTs the final build status to an HTTP endpoint.
// Runs as an exit step.
type notifyWebhook struct {
	build  *step.Build
	client *http.Client

	URL string `mapstructure:"url"`
}

func (s *notifyWebhook) Key() string { return notifyWebhookKey }

func (s *notifyWebhook) Run(ctx context.Context) (any, error) {
	payload, err := json.Marshal(map[string]any{
		"image":    s.build.Image,
		"image_id": s.build.ImageID,
		"status":   buildStatus(s.build),
		"errors":   s.build.Errors,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	log.Info().Str("url", s.URL).Msg("sent build notification")
	return map[string]any{"status_code": resp.StatusCode}, nil
}
