package config

import _ "embed"

//go:embed default.yaml
var embeddedDefault []byte

// embeddedSourcePath is what show_conf_file reports: fixed relative to
// the installation, no flag overrides it (spec.md §6). Editing
// default.yaml and rebuilding is the sanctioned path, matching the
// source tool's "editing in place" behaviour.
const embeddedSourcePath = "conf/orc2timeline.yaml"

// Load resolves the effective configuration. There is currently one
// source: the config embedded into the binary at build time.
func Load() (*Config, error) {
	return Parse(embeddedDefault, embeddedSourcePath)
}

// Raw returns the embedded configuration document's bytes, for
// `show_conf`.
func Raw() []byte {
	return embeddedDefault
}
