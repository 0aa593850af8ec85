// Package delta computes differences between two artifact snapshots
// (component E): a filesystem three-way hash-join between two
// ProjectArtifact snapshots, and a VCS-backed delta between two git
// revisions.
package delta

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

// ExternalToolError reports that a required external tool (git) was
// unavailable or disabled.
type ExternalToolError struct {
	Tool   string
	Reason string
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("delta: external tool %q unavailable: %s", e.Tool, e.Reason)
}

// FSDelta compares two artifact snapshots by rel_path: present only in new
// is added, present in both with a different content hash is modified,
// present only in old is removed. Changes are sorted by rel_path. A nil old
// snapshot is treated as empty (every file in new is added).
func FSDelta(old, new *artifact.ProjectArtifact) artifact.DeltaSummary {
	oldFiles := fileMap(old)
	newFiles := fileMap(new)

	var changes []artifact.Change
	for relPath, newFile := range newFiles {
		if oldFile, ok := oldFiles[relPath]; ok {
			if oldFile.Hash != newFile.Hash {
				changes = append(changes, artifact.Change{RelPath: relPath, Kind: artifact.ChangeModified})
			}
		} else {
			changes = append(changes, artifact.Change{RelPath: relPath, Kind: artifact.ChangeAdded})
		}
	}
	for relPath := range oldFiles {
		if _, ok := newFiles[relPath]; !ok {
			changes = append(changes, artifact.Change{RelPath: relPath, Kind: artifact.ChangeRemoved})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].RelPath < changes[j].RelPath })

	summary := artifact.DeltaSummary{Changes: changes}
	for _, c := range changes {
		switch c.Kind {
		case artifact.ChangeAdded:
			summary.Added++
		case artifact.ChangeModified:
			summary.Modified++
		case artifact.ChangeRemoved:
			summary.Removed++
		}
	}
	return summary
}

func fileMap(a *artifact.ProjectArtifact) map[string]artifact.FileArtifact {
	m := make(map[string]artifact.FileArtifact)
	if a == nil {
		return m
	}
	for _, f := range a.Files {
		m[f.RelPath] = f
	}
	return m
}

// VCSDelta runs `git diff --name-status <revision>..HEAD` in projectRoot
// and parses its output into a DeltaSummary. gitDeltaEnabled gates the
// feature per the churn.git_delta config flag; when false this returns an
// ExternalToolError without ever invoking git.
func VCSDelta(ctx context.Context, projectRoot, revision string, gitDeltaEnabled bool) (artifact.DeltaSummary, error) {
	if !gitDeltaEnabled {
		return artifact.DeltaSummary{}, &ExternalToolError{Tool: "git", Reason: "git_delta feature flag is disabled"}
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", revision+"..HEAD")
	cmd.Dir = projectRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return artifact.DeltaSummary{}, &ExternalToolError{Tool: "git", Reason: strings.TrimSpace(stderr.String())}
	}

	var changes []artifact.Change
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status, path := fields[0], fields[len(fields)-1]
		kind, ok := changeKindForStatus(status)
		if !ok {
			continue
		}
		changes = append(changes, artifact.Change{RelPath: path, Kind: kind})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].RelPath < changes[j].RelPath })

	summary := artifact.DeltaSummary{Changes: changes}
	for _, c := range changes {
		switch c.Kind {
		case artifact.ChangeAdded:
			summary.Added++
		case artifact.ChangeModified:
			summary.Modified++
		case artifact.ChangeRemoved:
			summary.Removed++
		}
	}
	return summary, nil
}

func changeKindForStatus(status string) (artifact.ChangeKind, bool) {
	switch status[0] {
	case 'A':
		return artifact.ChangeAdded, true
	case 'M', 'R', 'C':
		return artifact.ChangeModified, true
	case 'D':
		return artifact.ChangeRemoved, true
	default:
		return "", false
	}
}
