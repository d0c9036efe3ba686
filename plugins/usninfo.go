package plugins

import (
	"fmt"
	"os"
	"strconv"

	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name: "USNInfoToTimeline",
		New:  func() pluginapi.Plugin { return &usnInfoPlugin{} },
	})
}

// usnInfoPlugin parses DFIR-ORC's USNInfo CSV output (one row per USN
// journal record), grounded on USNInfoToTimeline.py.
type usnInfoPlugin struct{}

func (p *usnInfoPlugin) FileHeaderFilter() []byte { return nil }

func (p *usnInfoPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, _, err := readCSVDict(f)
	if err != nil {
		return err
	}
	source := baseName(path)

	for _, row := range rows {
		if row["USN"] == "USN" {
			continue // repeated header row, mirrors the Python original's guard
		}
		var mftSegment uint64
		if frn, err := strconv.ParseUint(row["FRN"], 16, 64); err == nil {
			mftSegment = frn & 0xFFFFFFFF
		}

		ctx.Emit(pluginapi.Event{
			TimestampStr: row["TimeStamp"],
			SourceType:   "USNInfo",
			Description:  fmt.Sprintf("%s - %s - MFT segment num : %d", row["FullPath"], row["Reason"], mftSegment),
			// USNInfo is a DFIR-ORC-generated report, never a
			// GetThis-collected target, so the original always uses the
			// bare artefact basename rather than resolving through the
			// recovered-original-path lookup.
			Source: source,
		})
	}
	return nil
}

func (p *usnInfoPlugin) Finalize(ctx pluginapi.Context) error { return nil }
