package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReplacesUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "C__Windows_System32_foo.txt", sanitize(`C:\Windows\System32/foo.txt`))
}

func TestSanitizeEmptyBecomesUnderscore(t *testing.T) {
	assert.Equal(t, "_", sanitize(""))
}

func TestMatchesHeaderExactPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.lnk")
	header := []byte{0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00}
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, header...), 0xAA, 0xBB), 0o644))
	assert.True(t, matchesHeader(path, header))
}

func TestMatchesHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.lnk")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x00, 0x00, 0x00}, 0o644))
	header := []byte{0x4C, 0x00, 0x00, 0x00}
	assert.False(t, matchesHeader(path, header))
}

func TestMatchesHeaderTooShort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(path, []byte{0x01}, 0o644))
	assert.False(t, matchesHeader(path, []byte{0x01, 0x02, 0x03}))
}

func TestParseGetThisResolvesOriginalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GetThis.csv")
	content := "a,b,c,d,C:\\Windows\\System32\\foo.dat,General\\NTFSInfo\\foo.dat\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got := parseGetThis(path)
	require.NotNil(t, got)
	assert.Equal(t, `C:\Windows\System32\foo.dat`, got["foo.dat"])
}

func TestParseGetThisMissingFileReturnsNil(t *testing.T) {
	got := parseGetThis(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Nil(t, got)
}
