// Package registry talks to container image registries over the
// distribution v2 API. Only the operations the build steps need are
// implemented: manifest existence checks and tag listing.
package registry

import (
	"fmt"
	"strings"
)

// Reference is a parsed image reference.
type Reference struct {
	Host string // registry host, e.g. "registry-1.docker.io"
	Repo string // repository path, e.g. "library/alpine"
	Tag  string // tag or digest, e.g. "3.20"
}

// String reassembles the reference in registry/repo:tag form.
func (r Reference) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Host, r.Repo, r.Tag)
}

// ParseRef splits an image reference into host, repository, and tag,
// applying Docker Hub conventions: bare names get the library/ prefix
// and hubless references resolve to registry-1.docker.io.
func ParseRef(ref string) Reference {
	out := Reference{Host: "registry-1.docker.io", Tag: "latest"}

	rest := ref
	if i := strings.Index(rest, "/"); i >= 0 {
		head := rest[:i]
		// A host segment contains a dot or colon, or is "localhost".
		if strings.ContainsAny(head, ".:") || head == "localhost" {
			if head == "docker.io" {
				head = "registry-1.docker.io"
			}
			out.Host = head
			rest = rest[i+1:]
		}
	}

	if i := strings.LastIndex(rest, "@"); i >= 0 {
		out.Tag = rest[i+1:]
		rest = rest[:i]
	} else if i := strings.LastIndex(rest, ":"); i >= 0 {
		out.Tag = rest[i+1:]
		rest = rest[:i]
	}

	if out.Host == "registry-1.docker.io" && !strings.Contains(rest, "/") {
		rest = "library/" + rest
	}
	out.Repo = rest
	return out
}
