// Package dockerfile inspects Dockerfiles far enough to plan a build:
// stages, parent images, declared args, exposed ports, and labels.
// This is a regex-based scanner, not a full AST.
package dockerfile

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(\S+?)(?:=.*)?$`)
	// EXPOSE <port>[/<proto>] ...
	exposeRe = regexp.MustCompile(`(?i)^EXPOSE\s+(.+)`)
	// LABEL <key>=<value> (single-pair form)
	labelRe = regexp.MustCompile(`(?i)^LABEL\s+([^\s=]+)=("?)(.*?)("?)\s*$`)
)

// Stage is one FROM instruction.
type Stage struct {
	Name      string // AS alias, may be empty
	BaseImage string
	Line      int
}

// Info is the extracted Dockerfile structure.
type Info struct {
	Stages []Stage
	Args   []string
	Expose []string
	Labels map[string]string
}

// Parents returns the external parent images of the build: base
// images that are neither aliases of earlier stages nor scratch.
// Duplicates are collapsed, order of first appearance is kept.
func (i *Info) Parents() []string {
	aliases := map[string]bool{}
	for _, s := range i.Stages {
		if s.Name != "" {
			aliases[strings.ToLower(s.Name)] = true
		}
	}

	var parents []string
	seen := map[string]bool{}
	for _, s := range i.Stages {
		img := s.BaseImage
		if strings.EqualFold(img, "scratch") || aliases[strings.ToLower(img)] || seen[img] {
			continue
		}
		seen[img] = true
		parents = append(parents, img)
	}
	return parents
}

// Parse reads and inspects the Dockerfile at path.
func Parse(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &Info{Labels: map[string]string{}}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := fromRe.FindStringSubmatch(line); m != nil {
			stage := Stage{
				BaseImage: m[1],
				Line:      lineNum,
			}
			if len(m) > 2 {
				stage.Name = m[2]
			}
			info.Stages = append(info.Stages, stage)
			continue
		}

		if m := argRe.FindStringSubmatch(line); m != nil {
			info.Args = append(info.Args, m[1])
			continue
		}

		if m := exposeRe.FindStringSubmatch(line); m != nil {
			info.Expose = append(info.Expose, strings.Fields(m[1])...)
			continue
		}

		if m := labelRe.FindStringSubmatch(line); m != nil {
			info.Labels[m[1]] = m[3]
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}
