// Package pluginapi defines the contract every artefact parser
// satisfies. The core never opens archives on a plugin's behalf and
// never subclasses a plugin; it hands each plugin an already-extracted
// file plus an injected Context carrying the capabilities the original
// Python plugins got through inheritance (add_event, get_original_path).
package pluginapi

import "time"

// Event is the core's in-flight representation of one timeline row.
// An Event with no usable timestamp is discarded at emission (the
// Context implementation enforces this, not the plugin).
type Event struct {
	// Timestamp is set when the plugin already has a parsed instant.
	Timestamp *time.Time
	// TimestampStr is used when the plugin only has a loose string
	// (e.g. copied straight out of a DFIR-ORC CSV column). Ignored
	// when Timestamp is set.
	TimestampStr string

	SourceType  string
	Description string
	// Source is the original Windows path when recoverable via the
	// GetThis.csv sidecar convention, otherwise the in-archive path.
	Source string
}

// Context is injected into every plugin instance by the Plugin
// Runtime. It is the only way a plugin talks back to the core.
type Context interface {
	// Emit hands one Event to the runtime's External Sorter. Safe for
	// concurrent use only insofar as a single plugin instance never
	// calls it from more than one goroutine at a time; the runtime
	// never does either.
	Emit(Event)

	// OriginalPath resolves the recovered Windows path for an
	// extracted file's on-disk basename, falling back to the
	// in-archive path hint when no sidecar metadata was recorded.
	OriginalPath(extractedBasename, inArchiveHint string) string

	// Hostname of the bundle currently being processed.
	Hostname() string
}

// Plugin is the capability set every artefact parser implements.
type Plugin interface {
	// FileHeaderFilter returns the expected first bytes of a matching
	// artefact, or nil if the plugin does not filter by header.
	FileHeaderFilter() []byte

	// ParseArtefact is called exactly once per matching extracted
	// file. path is the on-disk scratch location; originalPathHint is
	// the in-archive member path recorded by the extractor (used when
	// no GetThis.csv sidecar resolves a better original path).
	ParseArtefact(ctx Context, path string, originalPathHint string) error

	// Finalize flushes any per-instance buffered state. Called once
	// after the last ParseArtefact call for this instance.
	Finalize(ctx Context) error
}

// Constructor builds a fresh Plugin instance. Called once per
// PluginInstance by the Plugin Runtime.
type Constructor func() Plugin

// Registration is how a concrete plugin makes itself available to the
// Config Resolver by name.
type Registration struct {
	Name string
	// Family groups plugin instances that share a single mutex
	// because their underlying parser library is not safe for
	// unguarded concurrent use (e.g. "registry", "evtx"). Empty means
	// no shared lock is required.
	Family string
	New    Constructor
}

var registry = map[string]Registration{}

// Register adds a plugin implementation to the global by-name table,
// mirroring the teacher's init()-time self-registration idiom
// (vql/parsers registers functions/plugins the same way). Intended to
// be called from plugin package init() functions.
func Register(r Registration) {
	if r.Name == "" {
		panic("pluginapi: Register called with empty name")
	}
	registry[r.Name] = r
}

// Lookup returns the registration for name, if any.
func Lookup(name string) (Registration, bool) {
	r, ok := registry[name]
	return r, ok
}
