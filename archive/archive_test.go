package archive

import (
	"testing"

	"github.com/orc2timeline/orc2timeline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	typ, ok := TypeOf("DFIR-ORC_S_A.dom_General.7z")
	require.True(t, ok)
	assert.Equal(t, "General", typ)
}

func TestBuildBundle(t *testing.T) {
	b, skipped := BuildBundle("A.dom", []string{
		"DFIR-ORC_S_A.dom_General.7z",
		"DFIR-ORC_S_A.dom_Little.7z",
	})
	assert.Empty(t, skipped)
	assert.Equal(t, "DFIR-ORC_S_A.dom_General.7z", b.Members["General"])
	assert.Equal(t, "DFIR-ORC_S_A.dom_Little.7z", b.Members["Little"])
}

// S3 sub_archive cartesian: the index never looks inside outer
// archives, so every (archive × sub_archive) combination becomes an
// instance, including the two whose sub-archive is absent from that
// outer archive; those extract nothing at run time and contribute no
// events.
func TestInstancesCartesianYieldsEveryCombination(t *testing.T) {
	bundle := Bundle{
		Hostname: "A.dom",
		Members: map[Type]string{
			"General": "outer_general.7z",
			"Little":  "outer_little.7z",
		},
	}
	spec := config.PluginSpec{
		Name:         "EventLogsToTimeline",
		Archives:     []string{"General", "Little"},
		SubArchives:  []string{"Event.7z", "Event_Little.7z"},
		MatchPattern: `.*\.evtx$`,
		SourceType:   "EventLogs",
	}

	instances, err := Instances(bundle, spec)
	require.NoError(t, err)
	require.Len(t, instances, 4)

	byKey := map[string]Instance{}
	for _, i := range instances {
		byKey[i.Archive+"/"+i.SubArchive] = i
	}
	_, hasGeneralEvent := byKey["General/Event.7z"]
	_, hasLittleEventLittle := byKey["Little/Event_Little.7z"]
	assert.True(t, hasGeneralEvent)
	assert.True(t, hasLittleEventLittle)
}

func TestInstancesMissingArchiveSkippedNotError(t *testing.T) {
	bundle := Bundle{Hostname: "A.dom", Members: map[Type]string{"General": "outer.7z"}}
	spec := config.PluginSpec{
		Name:         "Foo",
		Archives:     []string{"General", "Offline"},
		MatchPattern: ".*",
		SourceType:   "Foo",
	}
	instances, err := Instances(bundle, spec)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "General", instances[0].Archive)
}

func TestAllInstancesDedupesAcrossSpecsWithSameName(t *testing.T) {
	bundle := Bundle{Hostname: "A.dom", Members: map[Type]string{"General": "outer.7z"}}
	specs := []config.PluginSpec{
		{Name: "Foo", Archives: []string{"General"}, MatchPattern: ".*", SourceType: "Foo"},
		{Name: "Foo", Archives: []string{"General"}, MatchPattern: ".*csv$", SourceType: "Foo"},
	}
	instances, err := AllInstances(bundle, specs)
	require.NoError(t, err)
	require.Len(t, instances, 1)
}
