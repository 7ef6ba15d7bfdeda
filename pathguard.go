// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CanonicalRoot returns the absolute form of dir with all symbolic links
// resolved. The result can be used as root for [ValidatePath].
func CanonicalRoot(dir string) (string, error) {
	return canonicalize(NewTargetDisk(), dir)
}

// ValidatePath resolves the entry name candidate below root and returns the
// canonical path a file for that entry is written to. root must be canonical,
// see [CanonicalRoot].
//
// The candidate is rejected with an [*Error] of kind [KindTraversalDetected]
// if it is absolute or if its canonical form, with symbolic links of the
// existing part of the path resolved, is not strictly below root.
func ValidatePath(root, candidate string) (string, error) {
	return validatePath(NewTargetDisk(), root, candidate)
}

// validatePath is [ValidatePath] with the filesystem provided by t
func validatePath(t Target, root string, name string) (string, error) {
	if isAbsName(name) {
		return "", newError(KindTraversalDetected, name, fmt.Errorf("absolute path in entry name"))
	}

	joined := filepath.Join(root, filepath.FromSlash(name))
	path, err := canonicalize(t, joined)
	if err != nil {
		return "", newError(KindTraversalDetected, joined, err)
	}

	if !isWithin(root, path) {
		return "", newError(KindTraversalDetected, path, fmt.Errorf("outside of %s", root))
	}

	return path, nil
}

// isAbsName reports if an entry name is absolute on any platform
func isAbsName(name string) bool {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return true
	}
	return filepath.IsAbs(name) || len(filepath.VolumeName(name)) > 0
}

// canonicalize returns the absolute, cleaned form of path. Symbolic links in
// the longest existing prefix of path are resolved, the remaining elements
// are appended unchanged.
func canonicalize(t Target, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot get absolute path: %w", err)
	}

	// walk up until an existing path is found
	existing := abs
	var missing []string
	for {
		if _, err := t.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}

	resolved, err := t.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("cannot resolve symlinks: %w", err)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, missing[i])
	}
	return resolved, nil
}

// isWithin reports if path is strictly below root. The character after the
// root prefix must be a path separator.
func isWithin(root string, path string) bool {
	if path == root {
		return false
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
