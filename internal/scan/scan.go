// Package scan enumerates Go source files under a root directory and reads
// their contents.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// DefaultPatterns selects every Go file below the root.
var DefaultPatterns = []string{"**/*.go"}

// ErrUnavailable marks a file that was enumerated but could not be read.
var ErrUnavailable = errors.New("scan: source unavailable")

// FileError reports a read failure for one file. It matches both
// ErrUnavailable and the underlying error under errors.Is.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("scan: read %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// skipDirs are excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// Scanner lists and reads source files. Patterns and Ignore are doublestar
// globs matched against slash-separated paths relative to Root.
type Scanner struct {
	Root     string
	Patterns []string
	Ignore   []string
	UseGit   bool

	// Logger receives a warning for each subtree the walk cannot read.
	// Nil means log.Default().
	Logger *log.Logger
}

// New returns a Scanner for root with the default patterns.
func New(root string) *Scanner {
	return &Scanner{Root: root, Patterns: DefaultPatterns, UseGit: true}
}

// Enumerate returns the absolute paths of matching files. When UseGit is set
// and root is inside a git work tree, git ls-files is used so .gitignore is
// respected; otherwise the tree is walked.
func (s *Scanner) Enumerate(ctx context.Context) ([]string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("scan: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: %s is not a directory", root)
	}

	var candidates []string
	if s.UseGit {
		candidates, err = gitListFiles(ctx, root)
	}
	if !s.UseGit || err != nil {
		candidates, err = walkListFiles(ctx, os.DirFS(root), root, s.logger())
		if err != nil {
			return nil, err
		}
	}

	paths := []string{}
	for _, p := range candidates {
		ok, err := s.Match(root, p)
		if err != nil {
			return nil, err
		}
		if ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// Match reports whether path (absolute) passes the pattern and ignore
// filters relative to root.
func (s *Scanner) Match(root, path string) (bool, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false, nil
	}
	rel = filepath.ToSlash(rel)

	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	matched := false
	for _, p := range patterns {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("scan: pattern %q: %w", p, err)
		}
		if ok {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	for _, p := range s.Ignore {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("scan: ignore pattern %q: %w", p, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// Read returns the contents of path. Failures are *FileError.
func (s *Scanner) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return data, nil
}

// gitListFiles lists tracked and untracked, non-ignored files under root.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, filepath.Join(root, line))
	}
	return paths, nil
}

func (s *Scanner) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// walkListFiles walks fsys, skipping hidden directories, node_modules and
// vendor, and returns paths joined onto root. An entry that cannot be read
// is skipped with a warning; only a failure to read the top directory is
// an error.
func walkListFiles(ctx context.Context, fsys fs.FS, root string, logger *log.Logger) ([]string, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == "." {
				return err
			}
			logger.Warn("skipping unreadable path", "path", filepath.Join(root, filepath.FromSlash(path)), "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != "." && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return fs.SkipDir
			}
			return nil
		}
		paths = append(paths, filepath.Join(root, filepath.FromSlash(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk directory: %w", err)
	}
	return paths, nil
}
