// Package security checks filesystem paths supplied on the command line.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInsideInput is returned when an output location lies in the frame
// directory being read.
var ErrInsideInput = errors.New("security: output inside input directory")

// ValidatePathWithinDirectory checks that filePath resolves inside dir.
// Symlinks are resolved on both sides; for a path that does not exist yet,
// the nearest existing ancestor is resolved instead.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}

	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}
	rel, err := filepath.Rel(canonicalDir, canonical(absPath))
	if err != nil {
		return fmt.Errorf("path is outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// canonical resolves symlinks in abs, or in its deepest existing ancestor.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for p := abs; ; {
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rest)
		}
		p = parent
	}
}

// ValidateOutsideInput rejects an output path equal to or inside the input
// frame directory. Files written there would be listed as frames on the
// next run.
func ValidateOutsideInput(out, input string) error {
	if out == "" {
		return nil
	}
	if err := ValidatePathWithinDirectory(out, input); err == nil {
		return fmt.Errorf("%w: %s is within %s", ErrInsideInput, out, input)
	}
	return nil
}
