// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("hello, world!"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!", string(content))
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("test data"), 0644))
	assert.FileExists(t, path)
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("original"), 0644))
	require.NoError(t, AtomicWriteFile(path, []byte("replaced"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(content))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "secret.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("token = 'x'"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicWriteFile_FailsOnDirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := AtomicWriteFile(target, []byte("x"), 0644)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename temp file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed on failure")
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"日本語のテキスト", 5, "日本..."},
		{"émoji 🎉 party", 9, "émoji ..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max), "TruncateRunes(%q, %d)", tt.in, tt.max)
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "hello", TruncateWidth("hello", 5))
	assert.Equal(t, "hell...", TruncateWidth("hello world", 7))
	assert.Equal(t, "", TruncateWidth("hello", 0))

	// Each CJK character is two columns wide.
	got := TruncateWidth("日本語テキスト", 7)
	assert.LessOrEqual(t, StringWidth(got), 7)
	assert.Equal(t, "日本...", got)
}

func TestPadWidth(t *testing.T) {
	assert.Equal(t, "ab   ", PadWidth("ab", 5))
	assert.Equal(t, "日本 ", PadWidth("日本", 5))
	assert.Equal(t, 6, StringWidth(PadWidth("a very long title", 6)))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", OneLine("  a\n\tb   c \n"))
	assert.Equal(t, "", OneLine(" \n "))
}

func TestPadLeftWidth(t *testing.T) {
	assert.Equal(t, "   42", PadLeftWidth("42", 5))
	assert.Equal(t, " 日本", PadLeftWidth("日本", 5))
}

func TestWrapWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"the quick brown fox", 9, "the quick\nbrown fox"},
		{"keep\nnewlines here", 20, "keep\nnewlines here"},
		{"supercalifragilistic word", 5, "supercalifragilistic\nword"},
		{"日本語 テキスト です", 8, "日本語\nテキスト\nです"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WrapWidth(tt.in, tt.width), "WrapWidth(%q, %d)", tt.in, tt.width)
	}
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n\n  b", Indent("a\n\nb", "  "))
}
