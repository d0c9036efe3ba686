package plugins

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name: "RecycleBinToTimeline",
		New:  func() pluginapi.Plugin { return &recycleBinPlugin{} },
	})
}

// recycleBinPlugin parses a single $I recycle-bin record, grounded on
// RecycleBinToTimeline.py. Two on-disk layouts exist: header 1 (Vista
// / 7, a fixed 250-byte UTF-16LE path) and header 2 (Windows 10+, a
// length-prefixed UTF-16LE path).
type recycleBinPlugin struct{}

func (p *recycleBinPlugin) FileHeaderFilter() []byte { return nil }

func (p *recycleBinPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) < 24 {
		return fmt.Errorf("recyclebin: file too small: %d bytes", len(raw))
	}

	header := int64(binary.LittleEndian.Uint64(raw[0:8]))
	fileSize := int64(binary.LittleEndian.Uint64(raw[8:16]))
	deletionFiletime := int64(binary.LittleEndian.Uint64(raw[16:24]))
	deletionTime := filetimeToUnix(deletionFiletime)

	index := 24
	var filePath string
	switch header {
	case 1:
		if len(raw) < index+250 {
			return fmt.Errorf("recyclebin: truncated header-1 record")
		}
		filePath = decodeUTF16LE(raw[index : index+250])
	case 2:
		if len(raw) < index+4 {
			return fmt.Errorf("recyclebin: truncated header-2 length")
		}
		pathLen := int(int32(binary.LittleEndian.Uint32(raw[index : index+4])))
		index += 4
		byteLen := pathLen * 2
		if pathLen < 0 || len(raw) < index+byteLen {
			return fmt.Errorf("recyclebin: truncated header-2 path")
		}
		filePath = decodeUTF16LE(raw[index : index+byteLen])
	default:
		return fmt.Errorf("recyclebin: unexpected header value: %d", header)
	}

	ctx.Emit(pluginapi.Event{
		Timestamp:   &deletionTime,
		SourceType:  "RecycleBin",
		Description: fmt.Sprintf("Deletion of file %s - Filesize : %d", filePath, fileSize),
		Source:      ctx.OriginalPath(baseName(path), originalPathHint),
	})
	return nil
}

func (p *recycleBinPlugin) Finalize(ctx pluginapi.Context) error { return nil }

func decodeUTF16LE(raw []byte) string {
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
