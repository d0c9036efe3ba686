// Package engine wires together the Host Grouper, Archive Index,
// Scheduler, Plugin Runtime and Final Merger into the two top-level
// operations the CLI exposes: Process (an explicit file list, one
// host) and ProcessDir (a directory, N hosts). Grounded on the
// source's Orc2Timeline.process/process_dir (core.py), which performs
// the same grouping-then-per-host-pipeline shape.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/orc2timeline/orc2timeline/archive"
	"github.com/orc2timeline/orc2timeline/config"
	"github.com/orc2timeline/orc2timeline/hostgroup"
	"github.com/orc2timeline/orc2timeline/logging"
	"github.com/orc2timeline/orc2timeline/pluginapi"
	"github.com/orc2timeline/orc2timeline/runtime"
	"github.com/orc2timeline/orc2timeline/scheduler"
	"github.com/orc2timeline/orc2timeline/sortmerge"
)

// Options bundles the run-wide settings threaded from the CLI down
// into the engine (spec.md §6 global flags), constructed once and
// passed by value rather than kept as mutable global state.
type Options struct {
	ScratchRoot string // parent of every per-host scratch directory; defaults to os.TempDir()
	Overwrite   bool
	Jobs        int
}

func (o Options) scratchRoot() string {
	if o.ScratchRoot != "" {
		return o.ScratchRoot
	}
	return os.TempDir()
}

// InstanceOutcome reports one plugin instance's contribution to a
// host's timeline, surfaced for the CLI summary and for tests.
type InstanceOutcome struct {
	InstanceKey  string
	EventCount   int
	SkippedFiles int
	Err          error
}

// HostOutcome is the result of processing one host end to end.
type HostOutcome struct {
	Hostname   string
	OutputPath string
	EventCount int
	Instances  []InstanceOutcome
	// Err is set for a host-fatal failure: OutputExists, MergeError, or
	// a scratch-directory setup failure. Individual instance failures
	// are recorded in Instances instead and do not set this.
	Err error
}

// Failed reports whether this host hit a host-fatal error (Err set),
// as opposed to a purely instance-local failure, which is reported by
// HasInstanceFailures instead.
func (h HostOutcome) Failed() bool { return h.Err != nil }

// HasInstanceFailures reports whether at least one plugin instance
// failed outright, even though the host as a whole produced output.
func (h HostOutcome) HasInstanceFailures() bool {
	for _, i := range h.Instances {
		if i.Err != nil {
			return true
		}
	}
	return false
}

// Summary aggregates every host processed by ProcessDir (or the
// single host processed by Process).
type Summary struct {
	Hosts []HostOutcome
}

// ExitCode implements spec.md §7's exit-code precedence across hosts:
// 0 success; 1 if at least one host had a processing failure; 2 if at
// least one host's output already existed (OutputExists is recorded in
// that host's Err). BadInput and ConfigError are surfaced as errors
// from Process/ProcessDir themselves (exit 2/3), not here.
func (s Summary) ExitCode() int {
	worst := 0
	for _, h := range s.Hosts {
		code := 0
		var exists *sortmerge.OutputExistsError
		switch {
		case errors.As(h.Err, &exists):
			code = 2
		case h.Failed() || h.HasInstanceFailures():
			code = 1
		}
		if code > worst {
			worst = code
		}
	}
	return worst
}

// Process runs the single-host pipeline over an explicit file list
// (the `process` CLI subcommand). Fails fast with a *hostgroup.BadInputError
// if paths span more than one host.
func Process(ctx context.Context, paths []string, outputPath string, cfg *config.Config, opts Options, log *logging.Logger) (HostOutcome, error) {
	job, err := hostgroup.GroupSingleHost(paths)
	if err != nil {
		return HostOutcome{}, err
	}
	outcomes := runHosts(ctx, []jobOutput{{job: job, outputPath: outputPath}}, cfg, opts, log)
	return outcomes[0], nil
}

// ProcessDir recursively walks inputDir for *.7z files, groups them by
// host, and processes each host into <outputDir>/<hostname>.csv.gz
// (the `process_dir` CLI subcommand).
func ProcessDir(ctx context.Context, inputDir, outputDir string, cfg *config.Config, opts Options, log *logging.Logger) (Summary, error) {
	paths, err := collect7z(inputDir)
	if err != nil {
		return Summary{}, err
	}

	jobs := hostgroup.GroupByHost(paths)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}

	jobOutputs := make([]jobOutput, len(jobs))
	for i, job := range jobs {
		jobOutputs[i] = jobOutput{job: job, outputPath: filepath.Join(outputDir, job.Hostname+".csv.gz")}
	}

	outcomes := runHosts(ctx, jobOutputs, cfg, opts, log)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Hostname < outcomes[j].Hostname })
	return Summary{Hosts: outcomes}, nil
}

// jobOutput pairs one host's input job with its destination file.
type jobOutput struct {
	job        hostgroup.Job
	outputPath string
}

// runHosts drives both scheduler phases across every job: phase 1
// (archive indexing + plugin instances) runs for all hosts behind one
// shared pool, so total instance concurrency never exceeds opts.Jobs
// regardless of how many hosts are in flight; phase 2 (final merge)
// starts only once every host has drained phase 1, and is itself
// bounded by the same pool via Pool.RunMerges (spec.md §4.7: per-host
// final merges are parallelised up to J). Each host's scratch
// directory is torn down only after its merge has run, successfully or
// not (spec.md §3 lifecycle).
func runHosts(ctx context.Context, jobs []jobOutput, cfg *config.Config, opts Options, log *logging.Logger) []HostOutcome {
	pool := scheduler.NewPool(opts.Jobs)

	outcomes := make([]HostOutcome, len(jobs))
	partials := make([][]string, len(jobs))
	scratchDirs := make([]string, len(jobs))

	var wg sync.WaitGroup
	for i, jo := range jobs {
		wg.Add(1)
		go func(i int, jo jobOutput) {
			defer wg.Done()
			outcome, partialPaths, scratchDir := runHostPhase1(ctx, pool, jo.job, cfg, opts, log)
			outcome.OutputPath = jo.outputPath
			outcomes[i] = outcome
			partials[i] = partialPaths
			scratchDirs[i] = scratchDir
		}(i, jo)
	}
	wg.Wait()

	var mergeTasks []scheduler.MergeTask
	mergeIndex := map[string]int{}
	for i, jo := range jobs {
		if outcomes[i].Err != nil {
			continue
		}
		i := i
		mergeIndex[jo.job.Hostname] = i
		mergeTasks = append(mergeTasks, scheduler.MergeTask{
			Hostname: jo.job.Hostname,
			Run: func() error {
				count, err := sortmerge.FinalMerge(partials[i], outcomes[i].OutputPath, opts.Overwrite)
				if err != nil {
					return err
				}
				outcomes[i].EventCount = count
				return nil
			},
		})
	}

	for _, merged := range pool.RunMerges(ctx, mergeTasks) {
		if merged.Err != nil {
			outcomes[mergeIndex[merged.Hostname]].Err = merged.Err
		}
	}

	for _, dir := range scratchDirs {
		if dir != "" {
			os.RemoveAll(dir)
		}
	}

	return outcomes
}

// runHostPhase1 builds one host's archive index and runs every plugin
// instance against it. The host's scratch directory is returned rather
// than removed here: its partial timelines are still needed by phase 2.
func runHostPhase1(ctx context.Context, pool *scheduler.Pool, job hostgroup.Job, cfg *config.Config, opts Options, log *logging.Logger) (HostOutcome, []string, string) {
	outcome := HostOutcome{Hostname: job.Hostname}

	bundle, skipped := archive.BuildBundle(job.Hostname, job.Paths)
	for _, p := range skipped {
		if log != nil {
			log.Warnf("[%s] skipping archive with unrecognised or duplicate type: %s", job.Hostname, p)
		}
	}

	instances, err := archive.AllInstances(bundle, cfg.Plugins)
	if err != nil {
		outcome.Err = err
		return outcome, nil, ""
	}

	hostScratchDir, err := os.MkdirTemp(opts.scratchRoot(), "orc2timeline-"+sanitizeHost(job.Hostname)+"-")
	if err != nil {
		outcome.Err = fmt.Errorf("creating scratch directory: %w", err)
		return outcome, nil, ""
	}

	familyLocks := runtime.NewFamilyLocks()
	tasks := make([]scheduler.InstanceTask, len(instances))
	for i, inst := range instances {
		reg, ok := lookupFamily(inst.Spec.Name)
		var lock *sync.Mutex
		if ok {
			lock = familyLocks.For(reg)
		}
		tasks[i] = scheduler.InstanceTask{
			Instance:       inst,
			Hostname:       job.Hostname,
			HostScratchDir: hostScratchDir,
			ChunkSize:      cfg.ChunkSize,
			FamilyLock:     lock,
		}
	}

	results := pool.RunInstances(ctx, tasks, log)

	var partialPaths []string
	for _, r := range results {
		io := InstanceOutcome{InstanceKey: r.Instance.Key(), EventCount: r.EventCount, SkippedFiles: r.SkippedFiles, Err: r.Err}
		outcome.Instances = append(outcome.Instances, io)
		outcome.EventCount += r.EventCount
		if r.Err == nil && r.PartialPath != "" {
			partialPaths = append(partialPaths, r.PartialPath)
		}
	}

	return outcome, partialPaths, hostScratchDir
}

func collect7z(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".7z" {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking input directory: %w", err)
	}
	return out, nil
}

func lookupFamily(pluginName string) (string, bool) {
	reg, ok := pluginapi.Lookup(pluginName)
	if !ok || reg.Family == "" {
		return "", false
	}
	return reg.Family, true
}

func sanitizeHost(h string) string {
	out := make([]rune, 0, len(h))
	for _, r := range h {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
