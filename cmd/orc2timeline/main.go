// Command orc2timeline ingests DFIR-ORC 7z collections and emits a
// single sorted, deduplicated, gzip-compressed CSV timeline per host.
// Subcommand dispatch mirrors bin/main.go's command_handlers slice: each
// subcommand file registers its own handler at init() rather than main
// growing one long switch.
package main

import (
	"errors"
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/orc2timeline/orc2timeline/hostgroup"
	"github.com/orc2timeline/orc2timeline/logging"
	"github.com/orc2timeline/orc2timeline/sortmerge"

	// Import every built-in plugin so it self-registers with pluginapi
	// before the config table is resolved against it.
	_ "github.com/orc2timeline/orc2timeline/plugins"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("orc2timeline",
		"Build a sorted, deduplicated timeline from DFIR-ORC collections.")

	logLevel = app.Flag("log-level", "Logging verbosity: DEBUG, INFO, WARNING or ERROR.").
			Default("INFO").Enum("DEBUG", "INFO", "WARNING", "ERROR")

	tmpDir = app.Flag("tmp-dir", "Scratch directory root (defaults to $TMPDIR, then the OS default).").
		Envar("TMPDIR").String()

	overwrite = app.Flag("overwrite", "Overwrite an existing output file instead of failing.").Bool()

	jobs = app.Flag("jobs", "Number of plugin instances to run concurrently.").
		Short('j').Default("1").Int()

	command_handlers []CommandHandler

	// exitCode is set by whichever handler runs and read back in main
	// once dispatch returns. log is built once flags are parsed and
	// threaded explicitly into every subcommand, never a package global
	// mutated later.
	exitCode int
	log      *logging.Logger
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate).DefaultEnvars()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	log, err = logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(3)
	}

	for _, handler := range command_handlers {
		if handler(command) {
			break
		}
	}

	os.Exit(exitCode)
}

// classifyErr maps an error returned from the engine onto the spec's
// exit-code scale: a multi-host file list or an output path that
// already exists are both "bad input" (2); everything else
// that stopped a host cold is a processing failure (1).
func classifyErr(err error) int {
	var badInput *hostgroup.BadInputError
	var outputExists *sortmerge.OutputExistsError
	switch {
	case errors.As(err, &badInput):
		return 2
	case errors.As(err, &outputExists):
		return 2
	default:
		return 1
	}
}
