package plugins

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name: "NTFSInfoToTimeline",
		New:  func() pluginapi.Plugin { return &ntfsInfoPlugin{} },
	})
}

var ntfsSIFields = []macbCode{
	{Field: "LastModificationDate", Code: "M"},
	{Field: "LastAccessDate", Code: "A"},
	{Field: "LastAttrChangeDate", Code: "C"},
	{Field: "CreationDate", Code: "B"},
}

var ntfsFNFields = []macbCode{
	{Field: "FileNameLastModificationDate", Code: "M"},
	{Field: "FileNameLastAccessDate", Code: "A"},
	{Field: "FileNameLastAttrModificationDate", Code: "C"},
	{Field: "FileNameCreationDate", Code: "B"},
}

var ntfsTimestampFields = []string{
	"CreationDate",
	"LastModificationDate",
	"LastAccessDate",
	"LastAttrChangeDate",
	"FileNameCreationDate",
	"FileNameLastModificationDate",
	"FileNameLastAccessDate",
	"FileNameLastAttrModificationDate",
}

// ntfsInfoPlugin parses DFIR-ORC's NTFSInfo CSV output: one row per
// MFT entry, with up to eight $STANDARD_INFORMATION / $FILE_NAME
// timestamps that are frequently identical within a group (MACB
// clustering), grounded on NTFSInfoToTimeline.py.
type ntfsInfoPlugin struct{}

func (p *ntfsInfoPlugin) FileHeaderFilter() []byte { return nil }

func (p *ntfsInfoPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, header, err := readCSVDict(f)
	if err != nil {
		return err
	}
	source := baseName(path)
	_ = header

	for _, row := range rows {
		if row["FilenameFlags"] == "2" {
			continue
		}
		separator := ntfsSeparator(row["ParentName"])
		name := row["ParentName"] + separator + row["File"]
		size := row["SizeInBytes"]
		if size == "" {
			size = "unknown"
		}

		for _, g := range macbGroups(row, ntfsTimestampFields) {
			meaning := macbMeaning("$SI: ", ntfsSIFields, g.Fields) + " - " + macbMeaning("$FN: ", ntfsFNFields, g.Fields)
			ctx.Emit(pluginapi.Event{
				TimestampStr: g.Timestamp,
				SourceType:   "NTFSInfo",
				Description:  fmt.Sprintf("%s - Name: %s - Size in bytes: %s", meaning, name, size),
				// NTFSInfo is a DFIR-ORC-generated report, never a
				// GetThis-collected target, so the original always uses
				// the bare artefact basename rather than resolving
				// through the recovered-original-path lookup.
				Source: source,
			})
		}
	}
	return nil
}

func (p *ntfsInfoPlugin) Finalize(ctx pluginapi.Context) error { return nil }

func ntfsSeparator(parentName string) string {
	switch {
	case len(parentName) == 0:
		return "\\"
	case len(parentName) == 1:
		if parentName != "\\" {
			return "\\"
		}
		return ""
	case parentName[len(parentName)-1] != '\\':
		return "\\"
	default:
		return ""
	}
}

// readCSVDict reads r as a header + rows CSV, returning each row as a
// header-name -> value map (mirroring Python's csv.DictReader) plus
// the header itself.
func readCSVDict(r *os.File) ([]map[string]string, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}
