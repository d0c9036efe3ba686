package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/orc2timeline/orc2timeline/config"
	"github.com/orc2timeline/orc2timeline/hostgroup"
	"github.com/orc2timeline/orc2timeline/sortmerge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyConfig() *config.Config {
	// A plugin spec whose archive types never occur in any bundle built
	// from these test paths, so AllInstances always resolves to zero
	// instances and the pipeline exercises grouping + empty-merge only,
	// without needing a real 7z fixture.
	raw := []byte(`
chunk_size: 10
Plugins:
  - NoSuchPlugin:
      archives: [NoSuchArchiveType]
      match_pattern: ".*"
      sourcetype: Nothing
`)
	cfg, err := config.Parse(raw, "test")
	if err != nil {
		panic(err)
	}
	return cfg
}

// S1 multi-host grouping: process over files spanning two hosts fails
// with BadInput before any pipeline work starts.
func TestProcessRejectsMultiHostFileList(t *testing.T) {
	cfg := emptyConfig()
	paths := []string{
		"DFIR-ORC_S_A.dom_General.7z",
		"DFIR-ORC_S_A.dom_Little.7z",
		"DFIR-ORC_S_B.dom_Offline.7z",
	}
	out := filepath.Join(t.TempDir(), "out.csv.gz")

	_, err := Process(context.Background(), paths, out, cfg, Options{Jobs: 2}, nil)
	require.Error(t, err)
	var bad *hostgroup.BadInputError
	assert.ErrorAs(t, err, &bad)
	assert.Contains(t, err.Error(), "A.dom")
	assert.Contains(t, err.Error(), "B.dom")
}

// With no matching instances, a single host still produces a valid
// (empty) output file, and the outcome reports success.
func TestProcessSingleHostNoMatchingInstancesProducesEmptyOutput(t *testing.T) {
	cfg := emptyConfig()
	dir := t.TempDir()
	paths := []string{"DFIR-ORC_S_A.dom_General.7z"}
	out := filepath.Join(dir, "A.dom.csv.gz")

	outcome, err := Process(context.Background(), paths, out, cfg, Options{Jobs: 2, ScratchRoot: dir}, nil)
	require.NoError(t, err)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, "A.dom", outcome.Hostname)
	assert.Equal(t, 0, outcome.EventCount)
	assert.FileExists(t, out)

	// scratch directory must not survive the run
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "orc2timeline-A.dom-")
	}
}

// S6 overwrite protection, exercised through the engine boundary.
func TestProcessOverwriteProtection(t *testing.T) {
	cfg := emptyConfig()
	dir := t.TempDir()
	paths := []string{"DFIR-ORC_S_A.dom_General.7z"}
	out := filepath.Join(dir, "A.dom.csv.gz")

	_, err := Process(context.Background(), paths, out, cfg, Options{Jobs: 1, ScratchRoot: dir}, nil)
	require.NoError(t, err)

	outcome2, err := Process(context.Background(), paths, out, cfg, Options{Jobs: 1, ScratchRoot: dir}, nil)
	require.NoError(t, err)
	require.Error(t, outcome2.Err)
	var exists *sortmerge.OutputExistsError
	assert.ErrorAs(t, outcome2.Err, &exists)

	outcome3, err := Process(context.Background(), paths, out, cfg, Options{Jobs: 1, Overwrite: true, ScratchRoot: dir}, nil)
	require.NoError(t, err)
	assert.NoError(t, outcome3.Err)
}

// S1 multi-host grouping / multi-host isolation (spec.md §8 invariant
// 6): ProcessDir on N hosts produces N separate output files.
func TestProcessDirProducesOneFilePerHost(t *testing.T) {
	cfg := emptyConfig()
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	for _, name := range []string{
		"DFIR-ORC_S_A.dom_General.7z",
		"DFIR-ORC_S_A.dom_Little.7z",
		"DFIR-ORC_S_B.dom_Offline.7z",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte("x"), 0o644))
	}

	summary, err := ProcessDir(context.Background(), in, outDir, cfg, Options{Jobs: 2, ScratchRoot: t.TempDir()}, nil)
	require.NoError(t, err)
	require.Len(t, summary.Hosts, 2)
	assert.Equal(t, 0, summary.ExitCode())

	assert.FileExists(t, filepath.Join(outDir, "A.dom.csv.gz"))
	assert.FileExists(t, filepath.Join(outDir, "B.dom.csv.gz"))
}

func TestSummaryExitCodeReflectsWorstOutcome(t *testing.T) {
	assert.Equal(t, 0, Summary{Hosts: []HostOutcome{{Hostname: "a"}}}.ExitCode())
	assert.Equal(t, 1, Summary{Hosts: []HostOutcome{
		{Hostname: "a"},
		{Hostname: "b", Err: assertError("merge failed")},
	}}.ExitCode())
	assert.Equal(t, 1, Summary{Hosts: []HostOutcome{
		{Hostname: "a", Instances: []InstanceOutcome{{InstanceKey: "k", Err: assertError("boom")}}},
	}}.ExitCode())
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }
