package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/orc2timeline/orc2timeline/config"
	"github.com/orc2timeline/orc2timeline/engine"
)

var (
	processDirCmd = app.Command("process_dir",
		"Recursively process every host found under a directory.")
	processDirInput = processDirCmd.Arg("input_dir",
		"Directory to walk recursively for *.7z archives.").Required().String()
	processDirOutput = processDirCmd.Arg("output_dir",
		"Directory to write <hostname>.csv.gz into, one file per host.").Required().String()
)

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case processDirCmd.FullCommand():
			exitCode = doProcessDir()
		default:
			return false
		}
		return true
	})
}

func doProcessDir() int {
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("loading configuration: %v", err)
		return 3
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := engine.Options{ScratchRoot: *tmpDir, Overwrite: *overwrite, Jobs: *jobs}
	summary, err := engine.ProcessDir(ctx, *processDirInput, *processDirOutput, cfg, opts, log)
	if err != nil {
		log.Errorf("process_dir: %v", err)
		return classifyErr(err)
	}

	worst := 0
	for _, host := range summary.Hosts {
		if code := reportHostOutcome("process_dir", host); code > worst {
			worst = code
		}
	}
	return worst
}
