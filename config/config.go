// Package config resolves the declarative YAML plugin configuration
// into an immutable PluginSpec table. Construction happens once at
// process start; the resulting *Config is threaded explicitly through
// the scheduler and engine rather than kept as mutable global state
// (spec.md §9 "Global config singleton" redesign note).
package config

import (
	"fmt"
	"regexp"

	yaml "github.com/Velocidex/yaml/v2"
)

// Error is returned for any malformed configuration: bad YAML, an
// empty archive list, an uncompilable regex, a missing source type.
// Fatal to the whole run (exit code 3 at the CLI boundary).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func newConfigError(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// PluginSpec is one resolved plugin configuration entry. Immutable
// once constructed. Multiple raw YAML entries may share the same
// Name; they are expanded independently and later deduplicated by
// (name, archive, sub_archive) triple in the Archive Index.
type PluginSpec struct {
	Name         string
	Archives     []string
	SubArchives  []string // empty means "artefact sits in the outer archive directly"
	MatchPattern string
	SourceType   string
}

// Config is the immutable, fully parsed plugin table.
type Config struct {
	Plugins []PluginSpec

	// ChunkSize bounds the External Sorter's in-memory buffer, in
	// number of events, before a spill to a SortedRun is forced. A
	// first-class tunable (spec.md §9: avoid the source's hard-coded
	// constant hazard).
	ChunkSize int

	// source is the logical path reported by show_conf_file / used by
	// show_conf. It does not need to exist on disk: the default
	// config ships embedded in the binary.
	source string
}

const defaultChunkSize = 500_000

// rawDocument mirrors the YAML shape: a top-level Plugins sequence of
// single-key mappings, exactly as orc2timeline.yaml in the original
// tool is laid out.
type rawDocument struct {
	Plugins   []map[string]rawPluginEntry `yaml:"Plugins" json:"Plugins"`
	ChunkSize int                         `yaml:"chunk_size" json:"chunk_size"`
}

type rawPluginEntry struct {
	Archives    []string `yaml:"archives" json:"archives"`
	SubArchives []string `yaml:"sub_archives" json:"sub_archives"`
	// sourcetype is the original tool's YAML key; source_type is kept
	// as an alias for readability in new configs.
	SourceType  string `yaml:"sourcetype" json:"sourcetype"`
	SourceType2 string `yaml:"source_type" json:"source_type"`
	MatchPattern string `yaml:"match_pattern" json:"match_pattern"`
}

// Parse resolves raw YAML bytes into a Config. sourcePath is purely
// informational (used by show_conf_file).
func Parse(raw []byte, sourcePath string) (*Config, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, newConfigError("parsing configuration: %v", err)
	}

	cfg := &Config{
		ChunkSize: defaultChunkSize,
		source:    sourcePath,
	}
	if doc.ChunkSize > 0 {
		cfg.ChunkSize = doc.ChunkSize
	}

	for _, entryMap := range doc.Plugins {
		for name, entry := range entryMap {
			if err := validateEntry(name, entry); err != nil {
				return nil, err
			}

			sourceType := entry.SourceType
			if sourceType == "" {
				sourceType = entry.SourceType2
			}

			for _, archive := range entry.Archives {
				cfg.Plugins = append(cfg.Plugins, PluginSpec{
					Name:         name,
					Archives:     []string{archive},
					SubArchives:  append([]string(nil), entry.SubArchives...),
					MatchPattern: entry.MatchPattern,
					SourceType:   sourceType,
				})
			}
		}
	}

	if len(cfg.Plugins) == 0 {
		return nil, newConfigError("plugin list is empty after parsing configuration")
	}

	return cfg, nil
}

func validateEntry(name string, entry rawPluginEntry) error {
	if name == "" {
		return newConfigError("empty plugin name in configuration is not allowed")
	}
	if len(entry.Archives) == 0 {
		return newConfigError("plugin %s: archives should not be empty", name)
	}
	if entry.MatchPattern == "" {
		return newConfigError(
			"plugin %s: empty match_pattern is not allowed (hint: \".*\" matches everything)", name)
	}
	sourceType := entry.SourceType
	if sourceType == "" {
		sourceType = entry.SourceType2
	}
	if sourceType == "" {
		return newConfigError("plugin %s: empty sourcetype is not allowed", name)
	}
	if _, err := regexp.Compile(entry.MatchPattern); err != nil {
		return newConfigError("plugin %s: invalid match_pattern %q: %v", name, entry.MatchPattern, err)
	}
	return nil
}

// Source returns the logical path this Config was parsed from.
func (c *Config) Source() string { return c.source }
