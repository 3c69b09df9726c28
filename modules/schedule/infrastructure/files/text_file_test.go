package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "ProjectName,TaskID,TaskName,Start,Finish\nP,1,基礎工事,2025-01-06,2025-01-10\n"

func utf16LE(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestDecodeText(t *testing.T) {
	t.Run("plain utf-8", func(t *testing.T) {
		got, err := DecodeText([]byte(sample))
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	})

	t.Run("utf-8 bom is removed", func(t *testing.T) {
		got, err := DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, sample...))
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	})

	t.Run("utf-16le with bom", func(t *testing.T) {
		got, err := DecodeText(utf16LE(sample))
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := DecodeText(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("binary is rejected", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
		_, err := DecodeText(png)
		require.ErrorIs(t, err, ErrNotText)
		assert.Contains(t, err.Error(), "image/png")
	})
}

func TestReadText_Limit(t *testing.T) {
	_, err := ReadText(strings.NewReader(strings.Repeat("a", MaxFileSize+1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestWriteAndReadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteTextFile(path, sample))
	got, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestReadTextFile_Missing(t *testing.T) {
	_, err := ReadTextFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteTextFile_MissingDir(t *testing.T) {
	err := WriteTextFile(filepath.Join(t.TempDir(), "no", "such", "dir.csv"), sample)
	require.Error(t, err)
}
