package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./notes",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/notes",
			wantError: false,
		},
		{
			name:      "home-relative path",
			input:     "~/Obsidian",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(result), "ResolvePath(%q) = %q, want absolute", tt.input, result)
		})
	}
}

func TestResolvePathExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	result, err := ResolvePath("~/Obsidian")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Obsidian"), result)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))

	// idempotent
	assert.NoError(t, EnsureDir(dir))
}

func TestEnsureParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dgmt.log")

	require.NoError(t, EnsureParent(path))
	assert.True(t, DirExists(filepath.Dir(path)))
	assert.False(t, FileExists(path))
}

func TestFileAndDirExists(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
	assert.True(t, DirExists(tmp))
	assert.False(t, FileExists(tmp))
	assert.False(t, FileExists(filepath.Join(tmp, "missing")))
}
