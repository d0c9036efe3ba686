package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSVFixture(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\r\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNTFSInfoSkipsDeletedFileNameEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFixture(t, dir, "NTFSInfo.csv",
		"FilenameFlags,ParentName,File,SizeInBytes,CreationDate,LastModificationDate,LastAccessDate,LastAttrChangeDate,FileNameCreationDate,FileNameLastModificationDate,FileNameLastAccessDate,FileNameLastAttrModificationDate",
		"2,\\Users,deleted.txt,100,t1,t1,t1,t1,t1,t1,t1,t1",
	)

	p := &ntfsInfoPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig.csv"))
	assert.Empty(t, ctx.events)
}

func TestNTFSInfoEmitsOneEventPerMacbGroup(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFixture(t, dir, "NTFSInfo.csv",
		"FilenameFlags,ParentName,File,SizeInBytes,CreationDate,LastModificationDate,LastAccessDate,LastAttrChangeDate,FileNameCreationDate,FileNameLastModificationDate,FileNameLastAccessDate,FileNameLastAttrModificationDate",
		"0,\\Users,file.txt,1024,2020-01-01,2020-01-01,2020-01-01,2020-01-01,2020-01-01,2020-01-01,2020-01-01,2020-01-01",
	)

	p := &ntfsInfoPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig.csv"))
	require.Len(t, ctx.events, 1)
	evt := ctx.events[0]
	assert.Equal(t, "2020-01-01", evt.TimestampStr)
	assert.Contains(t, evt.Description, "Name: \\Users\\file.txt")
	assert.Contains(t, evt.Description, "$SI: MACB")
	assert.Contains(t, evt.Description, "$FN: MACB")
	// NTFSInfo reports are never GetThis-collected, so Source is always
	// the bare basename, never the in-archive hint passed to ParseArtefact.
	assert.Equal(t, "NTFSInfo.csv", evt.Source)
}

func TestNTFSSeparatorRules(t *testing.T) {
	assert.Equal(t, "\\", ntfsSeparator(""))
	assert.Equal(t, "", ntfsSeparator("\\"))
	assert.Equal(t, "\\", ntfsSeparator("x"))
	assert.Equal(t, "", ntfsSeparator("\\Users\\"))
	assert.Equal(t, "\\", ntfsSeparator("\\Users"))
}
