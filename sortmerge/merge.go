package sortmerge

import (
	"bufio"
	"container/heap"
	"os"
)

// lineHeapItem is one candidate line from one open run, tracked with
// its source index so the merge can pull the next line from the same
// scanner once this one is consumed.
type lineHeapItem struct {
	line string
	idx  int
}

type lineHeap []lineHeapItem

func (h lineHeap) Len() int            { return len(h) }
func (h lineHeap) Less(i, j int) bool  { return h[i].line < h[j].line }
func (h lineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *lineHeap) Push(x interface{}) { *h = append(*h, x.(lineHeapItem)) }
func (h *lineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeRuns k-way merges the already-sorted line-oriented files in
// paths into out, dropping byte-identical adjacent lines, and returns
// the number of unique lines written. Grounded on _merge_sorted_files
// (core.py), which does the same thing with heapq.merge over open
// file objects; here a container/heap min-heap plays the same role.
func mergeRuns(paths []string, out string) (int, error) {
	outFile, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer outFile.Close()
	writer := bufio.NewWriter(outFile)
	defer writer.Flush()

	if len(paths) == 0 {
		return 0, nil
	}

	files := make([]*os.File, len(paths))
	scanners := make([]*bufio.Scanner, len(paths))
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return 0, err
		}
		files[i] = f
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		scanners[i] = sc
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	h := &lineHeap{}
	heap.Init(h)
	for i, sc := range scanners {
		if sc.Scan() {
			heap.Push(h, lineHeapItem{line: sc.Text(), idx: i})
		}
	}

	count := 0
	var prev string
	first := true
	for h.Len() > 0 {
		item := heap.Pop(h).(lineHeapItem)

		if first || item.line != prev {
			writer.WriteString(item.line)
			writer.WriteByte('\n')
			prev = item.line
			first = false
			count++
		}

		if scanners[item.idx].Scan() {
			heap.Push(h, lineHeapItem{line: scanners[item.idx].Text(), idx: item.idx})
		}
	}

	return count, nil
}
