// Package plugins holds every concrete artefact parser known to
// orc2timeline, each registering itself with pluginapi from an init()
// function. Grounded file-for-file on original_source/src/orc2timeline/plugins/*.py,
// re-expressed as pluginapi.Plugin implementations instead of a
// GenericToTimeline base class: shared helpers below play the role
// the Python base class's _add_event/_get_original_path methods did.
package plugins

import (
	"path/filepath"
	"strings"
	"time"
)

// filetimeToUnix converts a Windows FILETIME (100ns ticks since
// 1601-01-01) to a UTC time.Time. Grounded on the EPOCH_AS_FILETIME /
// HUNDREDS_OF_NANOSECONDS constants shared by AmCacheToTimeline.py,
// UserAssistToTimeline.py and RecycleBinToTimeline.py.
const filetimeEpochDelta = 116444736000000000 // 100ns ticks between 1601-01-01 and 1970-01-01

func filetimeToUnix(filetime int64) time.Time {
	hundredsNs := filetime - filetimeEpochDelta
	return time.Unix(0, hundredsNs*100).UTC()
}

// rot13 mirrors Python's codecs.encode(s, "rot_13"), used by
// UserAssistToTimeline.py to decode ROT13-obfuscated value names.
func rot13(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z':
			out[i] = 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			out[i] = 'A' + (r-'A'+13)%26
		}
	}
	return string(out)
}

// baseName is filepath.Base by another name, kept local so plugin
// files read the same as the Python original's Path(artefact).name.
func baseName(path string) string { return filepath.Base(path) }

// macbGroup is one cluster of NTFS/$I30 timestamp fields that share an
// identical value, plus that shared value.
type macbGroup struct {
	Timestamp string
	Fields    []string
}

// macbGroups partitions fields into groups of identical timestamp
// value, processed as a stack from the end exactly like the Python
// original's list.pop()-driven loop, so tie-break order matches it
// field for field. Grounded on NTFSInfoToTimeline.py's
// __parse_artefact and I30InfoToTimeline.py's _parse_line.
func macbGroups(row map[string]string, fields []string) []macbGroup {
	remaining := append([]string(nil), fields...)
	var groups []macbGroup
	for len(remaining) > 0 {
		n := len(remaining) - 1
		refField := remaining[n]
		remaining = remaining[:n]
		refTS := row[refField]

		group := []string{refField}
		var rest []string
		for _, f := range remaining {
			if row[f] == refTS {
				group = append(group, f)
			} else {
				rest = append(rest, f)
			}
		}
		remaining = rest
		groups = append(groups, macbGroup{Timestamp: refTS, Fields: group})
	}
	return groups
}

type macbCode struct {
	Field string
	Code  string
}

// macbMeaning renders prefix followed by one code-or-"." per entry in
// order, exactly like NTFSInfoToTimeline.py's "$SI: " / "$FN: " strings.
func macbMeaning(prefix string, order []macbCode, group []string) string {
	in := func(f string) bool {
		for _, g := range group {
			if g == f {
				return true
			}
		}
		return false
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, o := range order {
		if in(o.Field) {
			sb.WriteString(o.Code)
		} else {
			sb.WriteString(".")
		}
	}
	return sb.String()
}
