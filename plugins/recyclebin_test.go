package plugins

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utf16leBytes(s string, padTo int) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, padTo)
	for i, u := range units {
		if i*2+2 > len(out) {
			break
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

func TestRecycleBinHeaderOneFixedWidthPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "$IABCDEF.txt")

	buf := make([]byte, 24+250)
	binary.LittleEndian.PutUint64(buf[0:8], 1)
	binary.LittleEndian.PutUint64(buf[8:16], 4096)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(filetimeEpochDelta))
	copy(buf[24:], utf16leBytes(`C:\Users\a\Desktop\file.txt`, 250))

	require.NoError(t, os.WriteFile(path, buf, 0o644))

	p := &recycleBinPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig"))
	require.Len(t, ctx.events, 1)
	assert.Contains(t, ctx.events[0].Description, `C:\Users\a\Desktop\file.txt`)
	assert.Contains(t, ctx.events[0].Description, "Filesize : 4096")
	assert.True(t, ctx.events[0].Timestamp.Equal(time.Unix(0, 0).UTC()))
}

func TestRecycleBinHeaderTwoLengthPrefixedPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "$IXYZ123.txt")

	pathStr := `C:\Users\a\Documents\report.docx`
	pathBytes := utf16leBytes(pathStr, len(pathStr)*2)

	buf := make([]byte, 24+4+len(pathBytes))
	binary.LittleEndian.PutUint64(buf[0:8], 2)
	binary.LittleEndian.PutUint64(buf[8:16], 2048)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(filetimeEpochDelta))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(pathStr)))
	copy(buf[28:], pathBytes)

	require.NoError(t, os.WriteFile(path, buf, 0o644))

	p := &recycleBinPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig"))
	require.Len(t, ctx.events, 1)
	assert.Contains(t, ctx.events[0].Description, pathStr)
	assert.Contains(t, ctx.events[0].Description, "Filesize : 2048")
}

func TestRecycleBinRejectsUnknownHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "$IWEIRD.txt")

	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], 99)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	p := &recycleBinPlugin{}
	ctx := &fakeContext{}
	err := p.ParseArtefact(ctx, path, "orig")
	assert.Error(t, err)
	assert.Empty(t, ctx.events)
}
