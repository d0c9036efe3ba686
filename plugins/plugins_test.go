package plugins

import "github.com/orc2timeline/orc2timeline/pluginapi"

// fakeContext is a minimal pluginapi.Context recording every emitted
// event, standing in for the Plugin Runtime's real implementation
// across every plugin's tests.
type fakeContext struct {
	events   []pluginapi.Event
	hostname string
}

func (f *fakeContext) Emit(e pluginapi.Event) { f.events = append(f.events, e) }

func (f *fakeContext) OriginalPath(extractedBasename, inArchiveHint string) string {
	if inArchiveHint != "" {
		return inArchiveHint
	}
	return extractedBasename
}

func (f *fakeContext) Hostname() string { return f.hostname }
