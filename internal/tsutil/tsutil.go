// Package tsutil provides the single shared timestamp normalisation
// helper used across the core and every plugin. All timestamps stored
// on disk (sort keys, CSV fields) go through here so that "lexical
// order equals temporal order" holds for the external sort and the
// final merge.
package tsutil

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// KeyLayout is the fixed-width, lexically sortable encoding used for
// both the on-disk sort key and the emitted Timestamp column.
const KeyLayout = "2006-01-02 15:04:05.000"

// Normalize converts t to UTC and truncates to millisecond precision.
// Timezone-naive inputs are assumed UTC, matching the source tool's
// behaviour. Instants before the Unix epoch are preserved as-is; no
// clamping is applied.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ParseLoose normalises an already-parsed instant, or, when absent,
// attempts to parse a permissive timestamp string (as produced by
// assorted DFIR-ORC CSV parsers and plugin-local formatting). It
// reports ok=false when neither input yields a usable timestamp.
func ParseLoose(t *time.Time, raw string) (time.Time, bool) {
	if t != nil {
		return Normalize(*t), true
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	// Already in our own canonical layout: parse directly so we don't
	// pay dateparse's heuristics on our own output (e.g. strings read
	// back from a SortedRun during tests).
	if parsed, err := time.ParseInLocation(KeyLayout, raw, time.UTC); err == nil {
		return Normalize(parsed), true
	}

	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return Normalize(parsed), true
}

// FormatKey renders t using KeyLayout. Used both for the external sort
// key and for the final CSV Timestamp column.
func FormatKey(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}
