// Package gitops records project changes as git commits using the git CLI.
package gitops

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned by Commit when the staged tree matches HEAD.
var ErrNothingToCommit = errors.New("nothing to commit")

// Author identifies who a commit is made by.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// env sets the committer too, so commits work on machines without a git identity.
func (a Author) env() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME="+a.Name,
		"GIT_AUTHOR_EMAIL="+a.Email,
		"GIT_COMMITTER_NAME="+a.Name,
		"GIT_COMMITTER_EMAIL="+a.Email,
	)
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if _, err := run(dir, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// Commit stages paths (everything when none are given) and commits them.
// It returns the short hash of the new commit.
func Commit(dir, message string, author Author, paths ...string) (string, error) {
	add := []string{"add", "-A"}
	if len(paths) > 0 {
		add = append(append(add, "--"), paths...)
	}
	if _, err := run(dir, nil, add...); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}

	if hasHead(dir) {
		if _, err := run(dir, nil, "diff", "--cached", "--quiet"); err == nil {
			return "", ErrNothingToCommit
		}
	}

	if _, err := run(dir, author.env(), "commit", "--quiet", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return HeadHash(dir)
}

// HeadHash returns the short hash of HEAD.
func HeadHash(dir string) (string, error) {
	out, err := run(dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// LogEntry is one commit as reported by Log.
type LogEntry struct {
	Hash    string
	Message string
}

// Log returns the commits reachable from HEAD, newest first. A repository
// without commits has an empty log.
func Log(dir string) ([]LogEntry, error) {
	if !hasHead(dir) {
		return nil, nil
	}
	out, err := run(dir, nil, "log", "--format=%h%x00%B%x1e")
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	var entries []LogEntry
	for _, rec := range strings.Split(out, "\x1e") {
		rec = strings.TrimLeft(rec, "\n")
		hash, msg, ok := strings.Cut(rec, "\x00")
		if !ok {
			continue
		}
		entries = append(entries, LogEntry{Hash: hash, Message: strings.TrimSpace(msg)})
	}
	return entries, nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func hasHead(dir string) bool {
	_, err := run(dir, nil, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

func run(dir string, env []string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}
