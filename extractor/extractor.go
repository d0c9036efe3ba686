// Package extractor selectively materialises inner 7z members into a
// scratch directory without inflating whole archives. Grounded on the
// source's _extract_filtered_files_from_archive / _extract_safe /
// _deflate_archives (GenericToTimeline.py) for algorithm and edge
// cases, and on accessors/zip/zip.go for the "open archive, enumerate,
// materialise selected members" shape in the teacher's own idiom.
package extractor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/orc2timeline/orc2timeline/logging"
)

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// ExtractionError wraps a non-fatal failure: a corrupt inner archive
// or an unreadable member. The caller logs it at WARNING and
// continues; it never aborts the whole plugin instance.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error for %s: %v", e.Path, e.Err)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

// File describes one materialised artefact.
type File struct {
	// Path is the on-disk scratch location.
	Path string
	// OriginalPathHint is the in-archive member path, used by the
	// Plugin Runtime's OriginalPath fallback when no GetThis.csv
	// sidecar resolves a better Windows path.
	OriginalPathHint string
}

// Options configures one extraction pass.
type Options struct {
	OuterPath  string
	SubArchive string // "" means the outer archive is the source directly
	Match      *regexp.Regexp
	// HeaderFilter, if non-empty, is compared against the first
	// len(HeaderFilter) bytes of every candidate match; mismatches are
	// discarded (spec.md §4.4 step 4).
	HeaderFilter []byte
	ScratchDir   string
}

// Extract runs the full selective-extraction algorithm from spec.md
// §4.4 and returns the materialised files plus any non-fatal errors
// encountered along the way (corrupt inner archives, unreadable
// members). A failure creating the scratch directory or opening the
// outer archive itself ends the pass early: no files are returned and
// that failure is the only entry in the error slice.
func Extract(opts Options, log *logging.Logger) ([]File, []error) {
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, []error{fmt.Errorf("creating scratch dir %s: %w", opts.ScratchDir, err)}
	}

	outer, err := sevenzip.OpenReader(opts.OuterPath)
	if err != nil {
		return nil, []error{&ExtractionError{Path: opts.OuterPath, Err: err}}
	}
	defer outer.Close()

	var candidateReaders []*sevenzip.ReadCloser
	var softErrors []error
	defer func() {
		for _, r := range candidateReaders {
			r.Close()
		}
	}()

	if opts.SubArchive == "" {
		return extractMatchesFrom(outer.File, opts, log)
	}

	// Locate and extract every member whose basename equals
	// SubArchive, then recurse into each as a nested 7z container.
	var files []File
	for _, member := range outer.File {
		if filepath.Base(member.Name) != opts.SubArchive {
			continue
		}

		subScratch := filepath.Join(opts.ScratchDir, sanitize(member.Name)+"_sub")
		nestedPath, err := extractOne(member, subScratch, "__nested__")
		if err != nil {
			softErrors = append(softErrors, &ExtractionError{Path: member.Name, Err: err})
			continue
		}

		nested, err := sevenzip.OpenReader(nestedPath)
		if err != nil {
			softErrors = append(softErrors, &ExtractionError{Path: member.Name, Err: err})
			continue
		}
		candidateReaders = append(candidateReaders, nested)

		matched, errs := extractMatchesFrom(nested.File, opts, log)
		files = append(files, matched...)
		softErrors = append(softErrors, errs...)
	}

	return files, softErrors
}

func extractMatchesFrom(members []*sevenzip.File, opts Options, log *logging.Logger) ([]File, []error) {
	var files []File
	var softErrors []error
	counts := map[string]int{}

	var getThisOriginal map[string]string

	for _, member := range members {
		if member.FileInfo().IsDir() {
			continue
		}
		if !opts.Match.MatchString(member.Name) && filepath.Base(member.Name) != "GetThis.csv" {
			continue
		}
		if member.FileInfo().Size() == 0 {
			continue
		}

		base := sanitize(filepath.Base(member.Name))
		counts[base]++
		if counts[base] > 1 {
			ext := filepath.Ext(base)
			base = strings.TrimSuffix(base, ext) + "_" + strconv.Itoa(counts[base]) + ext
		}

		outPath, err := extractOne(member, opts.ScratchDir, base)
		if err != nil {
			if log != nil {
				log.Warnf("skipping unreadable member %s in %s: %v", member.Name, opts.OuterPath, err)
			}
			softErrors = append(softErrors, &ExtractionError{Path: member.Name, Err: err})
			continue
		}

		if filepath.Base(member.Name) == "GetThis.csv" {
			getThisOriginal = parseGetThis(outPath)
			os.Remove(outPath)
			continue
		}

		if len(opts.HeaderFilter) > 0 && !matchesHeader(outPath, opts.HeaderFilter) {
			os.Remove(outPath)
			continue
		}

		files = append(files, File{Path: outPath, OriginalPathHint: member.Name})
	}

	if getThisOriginal != nil {
		for i := range files {
			base := filepath.Base(files[i].Path)
			if orig, ok := getThisOriginal[base]; ok {
				files[i].OriginalPathHint = orig
			}
		}
	}

	return files, softErrors
}

func extractOne(member *sevenzip.File, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	rc, err := member.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	outPath := filepath.Join(dir, name)
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", err
	}
	return outPath, nil
}

func matchesHeader(path string, header []byte) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(header))
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return n == len(header) && string(buf) == string(header)
}

// sanitize strips filesystem-unsafe characters from an in-archive
// member path so it can be used as a flat on-disk filename.
func sanitize(name string) string {
	replacer := strings.NewReplacer(
		"\\", "_", "/", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	clean := replacer.Replace(name)
	if clean == "" {
		clean = "_"
	}
	return clean
}

// parseGetThis parses the DFIR-ORC GetThis.csv sidecar convention:
// column 5 (0-indexed 4) is the original Windows path, column 6 is the
// in-archive path whose basename we key on. Grounded on
// _parse_then_delete_getthis_file in the original GenericToTimeline.py.
func parseGetThis(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	result := map[string]string{}
	rows, err := readCSV(f)
	if err != nil {
		return result
	}
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		inArchivePath := strings.ReplaceAll(row[5], "\\", "/")
		result[filepath.Base(inArchivePath)] = row[4]
	}
	return result
}
