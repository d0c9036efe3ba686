package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI30InfoSkipsNonCarvedEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFixture(t, dir, "I30Info.csv",
		"CarvedEntry,FRN,ParentFRN,Name,FileNameCreationDate,FileNameLastModificationDate,FileNameLastAccessDate,FileNameLastAttrModificationDate",
		"N,1,2,file.txt,t1,t1,t1,t1",
	)

	p := &i30InfoPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig.csv"))
	assert.Empty(t, ctx.events)
}

func TestI30InfoEmitsCarvedEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeCSVFixture(t, dir, "I30Info.csv",
		"CarvedEntry,FRN,ParentFRN,Name,FileNameCreationDate,FileNameLastModificationDate,FileNameLastAccessDate,FileNameLastAttrModificationDate",
		"Y,ff,10,carved.txt,t1,t1,t1,t1",
	)

	p := &i30InfoPlugin{}
	ctx := &fakeContext{}
	require.NoError(t, p.ParseArtefact(ctx, path, "orig.csv"))
	require.Len(t, ctx.events, 1)
	evt := ctx.events[0]
	assert.Equal(t, "t1", evt.TimestampStr)
	assert.Contains(t, evt.Description, "$FN: MACB")
	assert.Contains(t, evt.Description, "Name: carved.txt")
	assert.Contains(t, evt.Description, "MFT segment num: 255")
	assert.Contains(t, evt.Description, "Parent FRN: 10")
	// I30Info reports are never GetThis-collected, so Source is always
	// the bare basename, never the in-archive hint passed to ParseArtefact.
	assert.Equal(t, "I30Info.csv", evt.Source)
}
