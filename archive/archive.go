// Package archive resolves a HostBundle and a PluginSpec into the
// concrete set of PluginInstance descriptors the runtime must execute.
// Grounded on the source's PluginConfig expansion (config.py) and
// GenericToTimeline's _get_relevant_archives.
package archive

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/orc2timeline/orc2timeline/config"
)

// Type is the archive-type token extracted from an outer ORC filename
// (General, Little, Detail, Offline, SAM, Browsers, ...). Unknown
// types are preserved as-is; there is no enum to validate against.
type Type = string

// filenameArchivePattern extracts the trailing type token: everything
// after the last underscore, before ".7z".
var filenameArchivePattern = regexp.MustCompile(`_([^_]+)\.7z$`)

// TypeOf extracts the archive-type token from an outer archive path.
func TypeOf(path string) (Type, bool) {
	m := filenameArchivePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Bundle is a HostBundle: every outer archive available for one host,
// keyed by archive type. All members agree on hostname by
// construction (BuildBundle only ever adds paths already grouped by
// host).
type Bundle struct {
	Hostname string
	Members  map[Type]string
}

// BuildBundle indexes a host's outer archive paths by archive type.
// When two paths share a type, the first one wins and the rest are
// reported as skipped (an ORC collection should not contain
// duplicates, but the index must still resolve deterministically).
func BuildBundle(hostname string, paths []string) (Bundle, []string) {
	b := Bundle{Hostname: hostname, Members: map[Type]string{}}
	var skipped []string
	for _, p := range paths {
		t, ok := TypeOf(p)
		if !ok {
			skipped = append(skipped, p)
			continue
		}
		if _, exists := b.Members[t]; exists {
			skipped = append(skipped, p)
			continue
		}
		b.Members[t] = p
	}
	return b, skipped
}

// Instance is one (spec, archive, sub_archive) triple to execute. The
// zero value of SubArchive ("") means "the outer archive itself is the
// source of candidate members" (spec.md §4.4 step 2).
type Instance struct {
	Spec        config.PluginSpec
	Archive     Type
	OuterPath   string
	SubArchive  string // "" for direct (no sub_archive)
	MatchRegexp *regexp.Regexp
}

// Key uniquely identifies an instance for deduplication purposes:
// plugin name, archive type, sub-archive name.
func (i Instance) Key() string {
	return strings.Join([]string{i.Spec.Name, i.Archive, i.SubArchive}, "\x1f")
}

// Instances computes the cross join described in spec.md §4.3:
// spec.Archives ∩ bundle.Members × spec.SubArchives (or the singleton
// direct marker). Missing outer archives are silently skipped — an
// ORC collection need not contain every archive type.
func Instances(bundle Bundle, spec config.PluginSpec) ([]Instance, error) {
	re, err := regexp.Compile(spec.MatchPattern)
	if err != nil {
		return nil, err
	}

	var out []Instance
	for _, archiveType := range spec.Archives {
		outerPath, ok := bundle.Members[archiveType]
		if !ok {
			continue // ORC set need not contain every archive type
		}

		if len(spec.SubArchives) == 0 {
			out = append(out, Instance{
				Spec:        spec,
				Archive:     archiveType,
				OuterPath:   outerPath,
				MatchRegexp: re,
			})
			continue
		}

		for _, sub := range spec.SubArchives {
			out = append(out, Instance{
				Spec:        spec,
				Archive:     archiveType,
				OuterPath:   outerPath,
				SubArchive:  sub,
				MatchRegexp: re,
			})
		}
	}
	return out, nil
}

// AllInstances expands every PluginSpec in cfg against bundle,
// deduplicating by (plugin name, archive, sub_archive) triple across
// specs that share a name (spec.md §3 PluginSpec invariant).
func AllInstances(bundle Bundle, specs []config.PluginSpec) ([]Instance, error) {
	seen := map[string]bool{}
	var out []Instance
	for _, spec := range specs {
		instances, err := Instances(bundle, spec)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			key := inst.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, inst)
		}
	}
	return out, nil
}
