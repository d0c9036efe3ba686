// Package plugindata is the AuxiliaryFileSet lookup described in
// spec.md §6 ("Plugin auxiliary files"): a plugin-name -> installation
// directory table, backed by files embedded into the binary rather
// than read from a filesystem path (the same rationale as
// config/embedded.go's default configuration). Grounded on the
// source's Path(__file__).parent / "<Plugin>-<sidecar>" convention
// (EventLogsToTimeline.py, RegistryToTimeline.py,
// BrowsersHistoryToTimeline.py all ship a sidecar next to the plugin
// module); interpretation of the bytes is entirely the plugin's
// concern, this package only resolves names to bytes.
package plugindata

import "embed"

//go:embed EventLogsToTimeline RegistryToTimeline BrowsersHistoryToTimeline
var files embed.FS

// Read returns the bytes of filename inside pluginName's installation
// directory, or an error if either does not exist.
func Read(pluginName, filename string) ([]byte, error) {
	return files.ReadFile(pluginName + "/" + filename)
}
