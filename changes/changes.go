// Package changes narrows the working set to files touched by the latest commit.
package changes

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"link-archiver/extractor"

	"github.com/sourcegraph/go-diff/diff"
	"go.uber.org/zap"
)

// ChangedFileProvider reports the files changed by the most recent change set.
//
// A nil or empty result means the change set is unknown and callers should
// process every file.
type ChangedFileProvider interface {
	ChangedFiles(ctx context.Context) []string
}

// CommandRunner executes git with args in dir and returns its stdout.
type CommandRunner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// GitChanges diffs HEAD against its parent.
//
// # Thread Safety
//
// Safe for concurrent use.
type GitChanges struct {
	dir    string
	run    CommandRunner
	logger *zap.Logger
}

// NewGitChanges returns a provider for the repository containing dir.
func NewGitChanges(dir string, logger *zap.Logger) *GitChanges {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitChanges{dir: dir, run: runGit, logger: logger}
}

// WithRunner replaces the git invocation, mainly for tests.
func (g *GitChanges) WithRunner(run CommandRunner) *GitChanges {
	g.run = run
	return g
}

// ChangedFiles returns the structured-data files that differ between HEAD~1
// and HEAD, slash-separated and relative to the provider directory. Any failure
// is logged and reported as nil.
func (g *GitChanges) ChangedFiles(ctx context.Context) []string {
	args := []string{"diff", "--no-color", "--no-ext-diff", "--relative",
		"--src-prefix=a/", "--dst-prefix=b/", "HEAD~1", "HEAD", "--"}
	for _, ext := range extractor.Extensions {
		args = append(args, "*"+ext)
	}

	out, err := g.run(ctx, g.dir, args...)
	if err != nil {
		g.logger.Warn("Error getting changed files", zap.Error(err))
		return nil
	}

	files, err := ParseDiffNames(out)
	if err != nil {
		g.logger.Warn("Error parsing git diff output", zap.Error(err))
		return nil
	}
	return files
}

// ParseDiffNames extracts the original and new names of every structured-data
// file in a unified multi-file diff.
func ParseDiffNames(out []byte) ([]string, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(out)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	seen := make(map[string]struct{})
	for _, fd := range fileDiffs {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			path := stripPrefix(name)
			if path == "" || !extractor.HasStructuredExt(path) {
				continue
			}
			seen[path] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func stripPrefix(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
