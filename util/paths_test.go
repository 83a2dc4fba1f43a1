package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInDir(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain file", input: "resume.pdf", want: filepath.Join(dir, "resume.pdf")},
		{name: "nested file", input: "css/site.css", want: filepath.Join(dir, "css", "site.css")},
		{name: "leading slash stays inside", input: "/index.html", want: filepath.Join(dir, "index.html")},
		{name: "parent traversal", input: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "embedded traversal", input: "css/../../secret", wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInDir(dir, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInDir_DotsInFileNameAllowed(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveInDir(dir, "my..resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my..resume.pdf"), got)
}

func TestResolveInDir_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := ResolveInDir(dir, "link.txt")
	assert.ErrorIs(t, err, ErrSymlinkNotAllowed)
}

func TestResolveInDir_EmptyInputs(t *testing.T) {
	_, err := ResolveInDir("", "a.txt")
	assert.Error(t, err)
	_, err = ResolveInDir(t.TempDir(), "")
	assert.Error(t, err)
}
