package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/orc2timeline/orc2timeline/config"
	"github.com/orc2timeline/orc2timeline/engine"
)

var (
	processCmd = app.Command("process",
		"Process an explicit list of 7z archives belonging to a single host.")
	processFiles = processCmd.Arg("files",
		"DFIR-ORC outer archives; all must belong to the same host.").Required().Strings()
	processOutput = processCmd.Arg("output",
		"Output path; must end in .csv.gz.").Required().String()
)

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case processCmd.FullCommand():
			exitCode = doProcess()
		default:
			return false
		}
		return true
	})
}

func doProcess() int {
	if !strings.HasSuffix(*processOutput, ".csv.gz") {
		fmt.Fprintf(os.Stderr, "process: output path %q must end in .csv.gz\n", *processOutput)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Errorf("loading configuration: %v", err)
		return 3
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := engine.Options{ScratchRoot: *tmpDir, Overwrite: *overwrite, Jobs: *jobs}
	outcome, err := engine.Process(ctx, *processFiles, *processOutput, cfg, opts, log)
	if err != nil {
		log.Errorf("process: %v", err)
		return classifyErr(err)
	}

	return reportHostOutcome("process", outcome)
}

// reportHostOutcome logs one host's result and returns the exit code it
// contributes, shared between process (one host) and process_dir (many).
func reportHostOutcome(command string, outcome engine.HostOutcome) int {
	if outcome.Err != nil {
		log.Errorf("%s: host %s: %v", command, outcome.Hostname, outcome.Err)
		return classifyErr(outcome.Err)
	}

	for _, inst := range outcome.Instances {
		if inst.Err != nil {
			log.Warnf("%s: host %s: instance %s failed: %v",
				command, outcome.Hostname, inst.InstanceKey, inst.Err)
		}
	}

	log.Infof("%s: host %s: wrote %d events to %s",
		command, outcome.Hostname, outcome.EventCount, outcome.OutputPath)

	if outcome.HasInstanceFailures() {
		return 1
	}
	return 0
}
