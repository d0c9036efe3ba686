// Package sortmerge implements the External Sorter (chunked in-memory
// sort + spill + k-way merge, per plugin instance) and the Final
// Merger (k-way merge of all partial timelines for a host, dedup,
// gzip). Grounded on the source's SortedChunk (GenericToTimeline.py)
// for the chunk/spill half and _merge_sorted_files (core.py) for the
// k-way merge half; both are re-expressed here using
// container/heap + sort rather than Python's bisect.insort + heapq —
// no example repo reaches for an external-sort library for this shape
// of "sort more data than fits in memory," and stdlib is exactly
// what's built for it.
package sortmerge

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orc2timeline/orc2timeline/internal/tsutil"
	"github.com/orc2timeline/orc2timeline/pluginapi"
)

// Sorter buffers Events for one plugin instance, spilling sorted runs
// to disk once the buffer reaches chunkSize, and produces a single
// sorted, deduplicated PartialTimeline on Finalize.
type Sorter struct {
	dir       string
	chunkSize int
	buffer    []string
	runFiles  []string
	runSeq    int
	dropped   int
}

// NewSorter creates a Sorter spilling run files under dir (created on
// first spill).
func NewSorter(dir string, chunkSize int) *Sorter {
	if chunkSize <= 0 {
		chunkSize = 500_000
	}
	return &Sorter{dir: dir, chunkSize: chunkSize}
}

// Emit encodes and buffers one event, spilling synchronously once the
// buffer is full (spec.md §5 backpressure: the producing goroutine
// spills before accepting more events, capping peak memory at
// J*chunk_size*avg_event_bytes across the whole run).
func (s *Sorter) Emit(e pluginapi.Event, hostname string) {
	ts, ok := tsutil.ParseLoose(e.Timestamp, e.TimestampStr)
	if !ok {
		s.dropped++
		return
	}

	line := encodeLine(ts, hostname, e.SourceType, e.Description, e.Source)
	s.buffer = append(s.buffer, line)
	if len(s.buffer) >= s.chunkSize {
		s.spill()
	}
}

// DroppedCount returns how many events were discarded for lacking a
// usable timestamp (spec.md §3 invariant).
func (s *Sorter) DroppedCount() int { return s.dropped }

func encodeLine(ts time.Time, hostname, sourceType, description, source string) string {
	sanitize := func(s string) string { return strings.ReplaceAll(s, "\n", "\\n") }
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{
		tsutil.FormatKey(ts),
		sanitize(hostname),
		sanitize(sourceType),
		sanitize(description),
		sanitize(source),
	})
	w.Flush()
	return strings.TrimRight(sb.String(), "\r\n")
}

func (s *Sorter) spill() {
	if len(s.buffer) == 0 {
		return
	}
	sort.Strings(s.buffer)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		// Nothing sane to do with a scratch-directory failure mid
		// stream; drop the chunk rather than panic. Finalize's own
		// MkdirAll will surface the same error loudly if it's
		// persistent.
		s.buffer = s.buffer[:0]
		return
	}

	s.runSeq++
	path := filepath.Join(s.dir, "run_"+strconv.Itoa(s.runSeq))
	f, err := os.Create(path)
	if err != nil {
		s.buffer = s.buffer[:0]
		return
	}
	w := bufio.NewWriter(f)
	var prev string
	first := true
	for _, line := range s.buffer {
		if !first && line == prev {
			continue // dedup within the chunk before it ever hits disk
		}
		w.WriteString(line)
		w.WriteByte('\n')
		prev = line
		first = false
	}
	w.Flush()
	f.Close()

	s.runFiles = append(s.runFiles, path)
	s.buffer = s.buffer[:0]
}

// Finalize flushes any residual buffer, k-way merges all runs into a
// single sorted, deduplicated PartialTimeline file, and returns its
// path plus the number of unique events it holds.
func (s *Sorter) Finalize() (string, int, error) {
	s.spill()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating sort scratch dir: %w", err)
	}

	outPath := filepath.Join(s.dir, "partial.csv")
	count, err := mergeRuns(s.runFiles, outPath)
	if err != nil {
		return "", 0, err
	}

	for _, rf := range s.runFiles {
		os.Remove(rf)
	}
	s.runFiles = nil

	return outPath, count, nil
}

// Abort discards any spilled run files without producing a partial
// timeline, used when the owning plugin instance failed.
func (s *Sorter) Abort() {
	for _, rf := range s.runFiles {
		os.Remove(rf)
	}
	s.runFiles = nil
	s.buffer = nil
}
