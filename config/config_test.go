package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpandsArchiveCartesian(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: [General, Little]
      sub_archives: [Event.7z, Event_Little.7z]
      match_pattern: '.*\.evtx$'
      sourcetype: Foo
`)
	cfg, err := Parse(raw, "test.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 2)
	assert.Equal(t, []string{"General"}, cfg.Plugins[0].Archives)
	assert.Equal(t, []string{"Event.7z", "Event_Little.7z"}, cfg.Plugins[0].SubArchives)
	assert.Equal(t, []string{"Little"}, cfg.Plugins[1].Archives)
}

func TestParseSubArchivesOmittedMeansDirect(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: [General]
      match_pattern: '.*\.csv$'
      sourcetype: Foo
`)
	cfg, err := Parse(raw, "test.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 1)
	assert.Empty(t, cfg.Plugins[0].SubArchives)
}

func TestParseRejectsEmptyArchives(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: []
      match_pattern: '.*'
      sourcetype: Foo
`)
	_, err := Parse(raw, "test.yaml")
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseRejectsBadRegex(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: [General]
      match_pattern: '('
      sourcetype: Foo
`)
	_, err := Parse(raw, "test.yaml")
	require.Error(t, err)
}

func TestParseRejectsEmptySourceType(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: [General]
      match_pattern: '.*'
      sourcetype: ""
`)
	_, err := Parse(raw, "test.yaml")
	require.Error(t, err)
}

func TestParseChunkSizeOverride(t *testing.T) {
	raw := []byte(`
chunk_size: 3
Plugins:
  - Foo:
      archives: [General]
      match_pattern: '.*'
      sourcetype: Foo
`)
	cfg, err := Parse(raw, "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ChunkSize)
}

func TestParseDefaultChunkSize(t *testing.T) {
	raw := []byte(`
Plugins:
  - Foo:
      archives: [General]
      match_pattern: '.*'
      sourcetype: Foo
`)
	cfg, err := Parse(raw, "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, defaultChunkSize, cfg.ChunkSize)
}

func TestLoadEmbeddedDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Plugins)
	assert.Equal(t, embeddedSourcePath, cfg.Source())
}
