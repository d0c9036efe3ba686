package main

import (
	"fmt"
	"os"

	"github.com/orc2timeline/orc2timeline/config"
)

var (
	showConfFileCmd = app.Command("show_conf_file",
		"Print the path of the effective configuration file.")
	showConfCmd = app.Command("show_conf",
		"Print the effective configuration, as loaded and parsed.")
)

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case showConfFileCmd.FullCommand():
			exitCode = doShowConfFile()
		case showConfCmd.FullCommand():
			exitCode = doShowConf()
		default:
			return false
		}
		return true
	})
}

func doShowConfFile() int {
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("loading configuration: %v", err)
		return 3
	}
	fmt.Println(cfg.Source())
	return 0
}

func doShowConf() int {
	// Parse first so a malformed embedded config is reported as exit 3
	// rather than silently dumping invalid YAML.
	if _, err := config.Load(); err != nil {
		log.Errorf("loading configuration: %v", err)
		return 3
	}
	os.Stdout.Write(config.Raw())
	return 0
}
