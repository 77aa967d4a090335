package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a thin registry v2 API client.
type Client struct {
	// Base is the registry base URL (e.g. "https://registry-1.docker.io").
	Base string

	// Optional credentials. Token wins over basic auth when both are set.
	Username string
	Password string
	Token    string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewClient returns an anonymous client for a registry host.
func NewClient(host string) *Client {
	return &Client{Base: "https://" + host}
}

const manifestAccept = "application/vnd.docker.distribution.manifest.v2+json, " +
	"application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.oci.image.manifest.v1+json, " +
	"application/vnd.oci.image.index.v1+json"

// ManifestExists checks whether repo:ref is present in the registry.
// A 404 is not an error; anything else unexpected is.
func (c *Client) ManifestExists(ctx context.Context, repo, ref string) (bool, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", strings.TrimSuffix(c.Base, "/"), repo, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", manifestAccept)
	c.authorize(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("HEAD %s: unexpected status %d", url, resp.StatusCode)
	}
}

// Tags lists the tags of a repository.
func (c *Client) Tags(ctx context.Context, repo string) ([]string, error) {
	url := fmt.Sprintf("%s/v2/%s/tags/list", strings.TrimSuffix(c.Base, "/"), repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, truncateBody(body, 512))
	}

	var out struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding tag list from %s: %w", url, err)
	}
	return out.Tags, nil
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case c.Username != "":
		req.SetBasicAuth(c.Username, c.Password)
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func truncateBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
