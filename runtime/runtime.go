// Package runtime constructs plugin instances (one per (PluginSpec,
// archive, sub_archive) triple), feeds them their extracted files, and
// captures the Events they yield into the External Sorter. Grounded on
// the source's _load_plugins / _run_plugin (core.py).
package runtime

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/orc2timeline/orc2timeline/archive"
	"github.com/orc2timeline/orc2timeline/extractor"
	"github.com/orc2timeline/orc2timeline/logging"
	"github.com/orc2timeline/orc2timeline/pluginapi"
	"github.com/orc2timeline/orc2timeline/sortmerge"
)

// InstanceFailure records a plugin instance that raised uncaught; its
// partial timeline is treated as empty and other instances still run.
type InstanceFailure struct {
	Instance archive.Instance
	Err      error
}

func (e *InstanceFailure) Error() string {
	return fmt.Sprintf("plugin instance %s failed: %v", e.Instance.Key(), e.Err)
}
func (e *InstanceFailure) Unwrap() error { return e.Err }

// FamilyLocks hands out one *sync.Mutex per plugin family, shared
// across every instance of plugins registered under that family
// (spec.md §9: "one mutex per plugin-family shared across its
// instances", never one global lock).
type FamilyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFamilyLocks() *FamilyLocks {
	return &FamilyLocks{locks: map[string]*sync.Mutex{}}
}

func (f *FamilyLocks) For(family string) *sync.Mutex {
	if family == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[family]
	if !ok {
		l = &sync.Mutex{}
		f.locks[family] = l
	}
	return l
}

// Result is the outcome of running one plugin instance: the number of
// unique events in its partial timeline after dedup/merge, and the path
// to that partial timeline (empty on total failure).
type Result struct {
	Instance       archive.Instance
	PartialPath    string
	EventCount     int
	SkippedFiles   int
	Err            error
}

// Run executes one PluginInstance end to end: extract matching inner
// files, feed them to the plugin, sort/spill/merge into a partial
// timeline. hostScratchDir is the per-host scratch root; instScratchDir
// is this instance's own subdirectory within it so concurrent
// instances never collide (spec.md §5 shared-resources item (a)).
func Run(
	inst archive.Instance,
	hostname string,
	hostScratchDir string,
	chunkSize int,
	familyLock *sync.Mutex,
	log *logging.Logger,
) Result {
	res := Result{Instance: inst}

	reg, ok := pluginapi.Lookup(inst.Spec.Name)
	if !ok {
		res.Err = fmt.Errorf("no plugin registered under name %q", inst.Spec.Name)
		return res
	}
	plugin := reg.New()

	instScratchDir := filepath.Join(hostScratchDir, sanitizeComponent(inst.Key()))

	files, extractErrs := extractor.Extract(extractor.Options{
		OuterPath:    inst.OuterPath,
		SubArchive:   inst.SubArchive,
		Match:        inst.MatchRegexp,
		HeaderFilter: plugin.FileHeaderFilter(),
		ScratchDir:   filepath.Join(instScratchDir, "extracted"),
	}, log)
	for _, e := range extractErrs {
		res.SkippedFiles++
		if log != nil {
			log.Warnf("[%s] [%s] %v", hostname, inst.Key(), e)
		}
	}

	sorter := sortmerge.NewSorter(filepath.Join(instScratchDir, "runs"), chunkSize)
	ctx := &pluginContext{hostname: hostname, sourceType: inst.Spec.SourceType, sorter: sorter, originalPaths: map[string]string{}}
	for _, f := range files {
		ctx.originalPaths[filepath.Base(f.Path)] = f.OriginalPathHint
	}

	if familyLock != nil {
		familyLock.Lock()
	}
	err := runPlugin(plugin, ctx, files, log, hostname, inst.Key())
	if familyLock != nil {
		familyLock.Unlock()
	}

	if err != nil {
		res.Err = &InstanceFailure{Instance: inst, Err: err}
		sorter.Abort()
		return res
	}

	partialPath, count, err := sorter.Finalize()
	if err != nil {
		res.Err = &InstanceFailure{Instance: inst, Err: err}
		return res
	}

	res.PartialPath = partialPath
	res.EventCount = count
	return res
}

func runPlugin(
	plugin pluginapi.Plugin,
	ctx *pluginContext,
	files []extractor.File,
	log *logging.Logger,
	hostname, instanceKey string,
) error {
	for _, f := range files {
		if err := plugin.ParseArtefact(ctx, f.Path, f.OriginalPathHint); err != nil {
			if log != nil {
				log.Warnf("[%s] [%s] parse error on %s: %v", hostname, instanceKey, f.Path, err)
			}
			continue
		}
	}
	return plugin.Finalize(ctx)
}

func sanitizeComponent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\x1f', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// pluginContext implements pluginapi.Context.
type pluginContext struct {
	hostname string
	// sourceType is the configured sourcetype of the instance's
	// PluginSpec, stamped on every emitted event.
	sourceType    string
	sorter        *sortmerge.Sorter
	originalPaths map[string]string
}

func (c *pluginContext) Emit(e pluginapi.Event) {
	if c.sourceType != "" {
		e.SourceType = c.sourceType
	}
	c.sorter.Emit(e, c.hostname)
}

func (c *pluginContext) OriginalPath(extractedBasename, inArchiveHint string) string {
	if orig, ok := c.originalPaths[extractedBasename]; ok && orig != "" {
		return orig
	}
	return inArchiveHint
}

func (c *pluginContext) Hostname() string { return c.hostname }
