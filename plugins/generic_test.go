package plugins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiletimeToUnixEpoch(t *testing.T) {
	// 116444736000000000 is exactly the FILETIME value of the Unix epoch.
	got := filetimeToUnix(filetimeEpochDelta)
	assert.True(t, got.Equal(time.Unix(0, 0).UTC()))
}

func TestFiletimeToUnixKnownValue(t *testing.T) {
	// 2021-01-01T00:00:00Z in FILETIME ticks.
	want := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	delta := want.Sub(time.Unix(0, 0).UTC())
	filetime := filetimeEpochDelta + delta.Nanoseconds()/100

	got := filetimeToUnix(filetime)
	assert.True(t, got.Equal(want), "got %v want %v", got, want)
}

func TestRot13RoundTrips(t *testing.T) {
	original := "UEME_RUNPATH:C:\\Windows\\explorer.exe"
	encoded := rot13(original)
	assert.NotEqual(t, original, encoded)
	assert.Equal(t, original, rot13(encoded))
}

func TestRot13LeavesNonLettersUntouched(t *testing.T) {
	assert.Equal(t, "123 !@#", rot13("123 !@#"))
}

func TestMacbGroupsSingleGroupWhenAllIdentical(t *testing.T) {
	row := map[string]string{"A": "t1", "B": "t1", "C": "t1"}
	groups := macbGroups(row, []string{"A", "B", "C"})
	require.Len(t, groups, 1)
	assert.Equal(t, "t1", groups[0].Timestamp)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, groups[0].Fields)
}

func TestMacbGroupsSplitsByDistinctValue(t *testing.T) {
	row := map[string]string{"A": "t1", "B": "t2", "C": "t1", "D": "t2"}
	groups := macbGroups(row, []string{"A", "B", "C", "D"})
	require.Len(t, groups, 2)

	byTimestamp := map[string][]string{}
	for _, g := range groups {
		byTimestamp[g.Timestamp] = g.Fields
	}
	assert.ElementsMatch(t, []string{"A", "C"}, byTimestamp["t1"])
	assert.ElementsMatch(t, []string{"B", "D"}, byTimestamp["t2"])
}

func TestMacbGroupsProcessesFromEnd(t *testing.T) {
	row := map[string]string{"A": "t1", "B": "t2"}
	groups := macbGroups(row, []string{"A", "B"})
	require.Len(t, groups, 2)
	// The last field in the list seeds the first group produced.
	assert.Equal(t, []string{"B"}, groups[0].Fields)
	assert.Equal(t, []string{"A"}, groups[1].Fields)
}

func TestMacbMeaningRendersDotsForAbsentFields(t *testing.T) {
	order := []macbCode{{Field: "A", Code: "M"}, {Field: "B", Code: "A"}, {Field: "C", Code: "C"}}
	meaning := macbMeaning("$SI: ", order, []string{"A", "C"})
	assert.Equal(t, "$SI: M.C", meaning)
}

func TestBaseNameStripsDirectory(t *testing.T) {
	assert.Equal(t, "NTFSInfo.csv", baseName("/tmp/scratch/host/NTFSInfo.csv"))
}
