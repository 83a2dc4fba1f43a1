package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal indicates a path traversal attempt was detected
var ErrPathTraversal = errors.New("path traversal attempt detected")

// ErrPathOutsideAllowedDir indicates the path is outside the allowed directory
var ErrPathOutsideAllowedDir = errors.New("path outside allowed directory")

// ErrSymlinkNotAllowed indicates a symlink was detected and is not allowed
var ErrSymlinkNotAllowed = errors.New("symlink not allowed")

// ResolveInDir joins name onto dir and returns the absolute result, refusing
// anything that would escape dir. It is used for static assets and resumes,
// where name comes from the client.
func ResolveInDir(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("allowed directory cannot be empty")
	}
	if name == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	// Check before cleaning; filepath.Clean would hide the ".." segments.
	for _, seg := range strings.FieldsFunc(filepath.ToSlash(name), func(r rune) bool { return r == '/' }) {
		if seg == ".." {
			return "", ErrPathTraversal
		}
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("null bytes not allowed in path")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve allowed directory: %w", err)
	}

	absPath := filepath.Join(absDir, filepath.Clean("/"+name))
	if absPath != absDir && !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", ErrPathOutsideAllowedDir
	}

	if fi, err := os.Lstat(absPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return "", ErrSymlinkNotAllowed
	}

	return absPath, nil
}
