package plugins

import (
	"fmt"
	"os"
	"strconv"

	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name: "I30InfoToTimeline",
		New:  func() pluginapi.Plugin { return &i30InfoPlugin{} },
	})
}

var i30FNFields = []macbCode{
	{Field: "FileNameLastModificationDate", Code: "M"},
	{Field: "FileNameLastAccessDate", Code: "A"},
	{Field: "FileNameLastAttrModificationDate", Code: "C"},
	{Field: "FileNameCreationDate", Code: "B"},
}

var i30TimestampFields = []string{
	"FileNameCreationDate",
	"FileNameLastModificationDate",
	"FileNameLastAccessDate",
	"FileNameLastAttrModificationDate",
}

// i30InfoPlugin parses DFIR-ORC's I30Info CSV output: carved $I30
// directory index entries recovered from slack space, grounded on
// I30InfoToTimeline.py.
type i30InfoPlugin struct{}

func (p *i30InfoPlugin) FileHeaderFilter() []byte { return nil }

func (p *i30InfoPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
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
		if row["CarvedEntry"] != "Y" {
			continue
		}
		var mftSegment uint64
		if frn, err := strconv.ParseUint(row["FRN"], 16, 64); err == nil {
			mftSegment = frn & 0xFFFFFFFFFFFF
		}

		for _, g := range macbGroups(row, i30TimestampFields) {
			meaning := macbMeaning("", i30FNFields, g.Fields)
			ctx.Emit(pluginapi.Event{
				TimestampStr: g.Timestamp,
				SourceType:   "I30Info",
				Description: fmt.Sprintf(
					"Entry in slackspace - $FN: %s - Name: %s - MFT segment num: %d - Parent FRN: %s ",
					meaning, row["Name"], mftSegment, row["ParentFRN"]),
				// I30Info is a DFIR-ORC-generated report, never a
				// GetThis-collected target, so the original always uses
				// the bare artefact basename rather than resolving
				// through the recovered-original-path lookup.
				Source: source,
			})
		}
	}
	return nil
}

func (p *i30InfoPlugin) Finalize(ctx pluginapi.Context) error { return nil }
