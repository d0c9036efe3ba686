// Package hostgroup infers hostnames from DFIR-ORC outer archive
// filenames and groups input paths by host. Grounded on the source
// CLI's ORC_REGEX and _crawl_input_dir_and_return_megastruct.
package hostgroup

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
)

// orcFilenamePattern matches DFIR-ORC_<role>_<hostname>_<type>.7z,
// capturing as the hostname everything between the underscore that
// ends the role token and the last underscore (the one before the
// type token and ".7z"). The optional "DFIR-" prefix mirrors the
// source's own regex, which tolerates both "ORC_" and "DFIR-ORC_".
var orcFilenamePattern = regexp.MustCompile(`^(?:DFIR-)?ORC_[^_]*_(.*)_[^_]*\.7z$`)

// BadInputError is returned when a filename cannot be parsed, or when
// a caller-provided file list spans more than one host.
type BadInputError struct {
	Msg string
}

func (e *BadInputError) Error() string { return e.Msg }

// Job is one unit of work: a hostname and the outer archive paths that
// belong to it.
type Job struct {
	Hostname string
	Paths    []string
}

// Hostname extracts the hostname from a single outer archive filename.
// Returns an error if the filename does not match the DFIR-ORC naming
// convention.
func Hostname(path string) (string, error) {
	base := filepath.Base(path)
	m := orcFilenamePattern.FindStringSubmatch(base)
	if m == nil {
		return "", &BadInputError{Msg: fmt.Sprintf(
			"unable to extract hostname from filename %q (must match %s)",
			path, orcFilenamePattern.String())}
	}
	return m[1], nil
}

// GroupSingleHost resolves a caller-supplied file list (the `process`
// subcommand's argument) into one Job. Fails if the files span more
// than one host.
func GroupSingleHost(paths []string) (Job, error) {
	hosts := map[string]bool{}
	var job Job
	for _, p := range paths {
		host, err := Hostname(p)
		if err != nil {
			return Job{}, err
		}
		hosts[host] = true
		job.Hostname = host
		job.Paths = append(job.Paths, p)
	}

	if len(hosts) != 1 {
		names := make([]string, 0, len(hosts))
		for h := range hosts {
			names = append(names, h)
		}
		sort.Strings(names)
		return Job{}, &BadInputError{Msg: fmt.Sprintf(
			"all files must belong to the same host; parsed hosts: %v", names)}
	}

	return job, nil
}

// GroupByHost groups an arbitrary path list by inferred hostname,
// silently skipping any path that doesn't match the naming convention
// (mirrors _crawl_input_dir_and_return_megastruct, which logs and
// ignores non-matching files rather than failing the whole walk).
// Returned jobs are ordered by hostname for determinism.
func GroupByHost(paths []string) []Job {
	byHost := map[string][]string{}
	for _, p := range paths {
		host, err := Hostname(p)
		if err != nil {
			continue
		}
		byHost[host] = append(byHost[host], p)
	}

	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	jobs := make([]Job, 0, len(hosts))
	for _, h := range hosts {
		jobs = append(jobs, Job{Hostname: h, Paths: byHost[h]})
	}
	return jobs
}
