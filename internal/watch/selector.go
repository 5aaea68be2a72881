// Package watch decides which documents the server cares about and,
// optionally, watches their backing files for changes made outside the
// client.
package watch

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// DefaultPatterns matches the file names CloudFormation templates usually
// carry.
var DefaultPatterns = []string{"*.yaml", "*.yml", "*.json", "*.template"}

// Selector matches document paths against a set of glob patterns.
type Selector struct {
	globs []glob.Glob
}

// NewSelector compiles patterns into a selector. With no patterns the
// selector falls back to DefaultPatterns.
func NewSelector(patterns ...string) (*Selector, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	globs := make([]glob.Glob, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		globs = append(globs, g)
	}

	return &Selector{globs: globs}, nil
}

// Matches reports whether the file at path is a document the server should
// lint. Patterns are matched against the base name.
func (s *Selector) Matches(path string) bool {
	name := filepath.Base(path)

	for _, g := range s.globs {
		if g.Match(name) {
			return true
		}
	}

	return false
}
