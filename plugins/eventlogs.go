package plugins

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/0xrawsec/golang-evtx/evtx"
	"github.com/0xrawsec/golang-utils/encoding"
	"github.com/orc2timeline/orc2timeline/conf/plugin_data"
	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name:   "EventLogsToTimeline",
		Family: "evtx",
		New:    func() pluginapi.Plugin { return &eventLogsPlugin{tags: loadEventTags()} },
	})
}

// eventLogsPlugin walks the chunk structure of a raw EVTX file exactly
// as Velociraptor's own vql/parsers/evtx.go does (golang-evtx exposes
// the chunk/record structures directly rather than a stream API), and
// emits one Event per record. Grounded on EventLogsToTimeline.py.
type eventLogsPlugin struct {
	tags map[string]map[int]string
}

func (p *eventLogsPlugin) FileHeaderFilter() []byte { return []byte("ElfFile\x00") }

func (p *eventLogsPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	source := ctx.OriginalPath(baseName(path), originalPathHint)

	header := &evtx.FileHeader{}
	if err := encoding.Unmarshal(f, header, evtx.Endianness); err != nil {
		return fmt.Errorf("reading evtx header: %w", err)
	}

	var lastEventID int64
	for chunkIndex := int64(0); ; chunkIndex++ {
		offset := int64(header.ChunkDataOffset) + int64(evtx.ChunkSize)*chunkIndex

		chunk := evtx.NewChunk()
		chunk.Offset = offset
		chunk.Data = make([]byte, evtx.ChunkSize)

		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			break
		}
		if _, err := io.ReadAtLeast(f, chunk.Data, len(chunk.Data)); err != nil {
			break
		}

		chunkReader := bytes.NewReader(chunk.Data)
		chunk.ParseChunkHeader(chunkReader)
		if chunk.Header.LastEventRecID <= lastEventID {
			continue
		}

		chunkReader.Seek(int64(chunk.Header.SizeHeader), io.SeekStart)
		chunk.ParseStringTable(chunkReader)
		if err := chunk.ParseTemplateTable(chunkReader); err != nil {
			continue
		}
		if err := chunk.ParseEventOffsets(chunkReader); err != nil {
			continue
		}

		for _, eventOffset := range chunk.EventOffsets {
			raw := chunk.ParseEvent(int64(eventOffset))
			item, err := raw.GoEvtxMap(&chunk)
			if err != nil {
				continue
			}
			if item.EventRecordID() <= lastEventID {
				continue
			}
			lastEventID = item.EventRecordID()

			normalized, err := normalizeEvent(item)
			if err != nil {
				continue
			}
			if evt := p.buildEvent(normalized, source); evt != nil {
				ctx.Emit(*evt)
			}
		}
	}

	return nil
}

// buildEvent walks the plain map[string]interface{} produced by
// normalizeEvent the same way Velociraptor's own downstream VQL
// queries address EVTX fields: Event.System.TimeCreated.#attributes.
// SystemTime, Event.System.EventID, Event.System.Provider.#attributes.
// Name, Event.System.Security.#attributes.UserID.
func (p *eventLogsPlugin) buildEvent(normalized map[string]interface{}, source string) *pluginapi.Event {
	event, _ := normalized["Event"].(map[string]interface{})
	if event == nil {
		return nil
	}
	system, _ := event["System"].(map[string]interface{})
	if system == nil {
		return nil
	}

	timestampStr := mapPath(system, "TimeCreated", "#attributes", "SystemTime")
	if timestampStr == "" {
		return nil
	}

	eventIDRaw := mapPath(system, "EventID")
	eventID64, _ := strconv.ParseInt(strings.TrimSpace(eventIDRaw), 10, 64)
	eventID := int(0xFFFF & eventID64)

	provider := mapPath(system, "Provider", "#attributes", "Name")
	if provider == "" {
		provider = "Unknown"
	}
	userID := mapPath(system, "Security", "#attributes", "UserID")

	description := p.buildDescription(provider, eventID, userID, extractArgs(event))
	if description == "" {
		return nil
	}

	return &pluginapi.Event{
		TimestampStr: timestampStr,
		SourceType:   "EventLogs",
		Description:  description,
		Source:       source,
	}
}

// mapPath walks a chain of nested map[string]interface{} keys and
// renders whatever is found at the end as a string.
func mapPath(m map[string]interface{}, keys ...string) string {
	var cur interface{} = m
	for _, k := range keys {
		next, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		cur, ok = next[k]
		if !ok {
			return ""
		}
	}
	if cur == nil {
		return ""
	}
	return fmt.Sprint(cur)
}

func (p *eventLogsPlugin) buildDescription(provider string, eventID int, userID string, args []string) string {
	desc := fmt.Sprintf("%s:%d", provider, eventID)
	if byID, ok := p.tags[provider]; ok {
		if tag, ok := byID[eventID]; ok {
			desc += " " + tag
		}
	}
	desc += " " + userID
	if len(args) != 0 {
		desc += " (" + strings.Join(args, " ") + ")"
	}
	return desc
}

func (p *eventLogsPlugin) Finalize(ctx pluginapi.Context) error { return nil }

// normalizeEvent flattens the library's nested GoEvtxMap into a plain
// map[string]interface{}, exactly as Velociraptor's Normalize() does
// (evtx.go), so EventData strings can be pulled out generically.
func normalizeEvent(event *evtx.GoEvtxMap) (map[string]interface{}, error) {
	encoded, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// extractArgs pulls the EventData/Data string values out of a
// normalized event map, mirroring _get_args' string-argument list.
func extractArgs(normalized map[string]interface{}) []string {
	eventData, _ := normalized["EventData"].(map[string]interface{})
	if eventData == nil {
		return nil
	}
	dataField, ok := eventData["Data"]
	if !ok {
		return nil
	}

	var args []string
	switch v := dataField.(type) {
	case []interface{}:
		for _, item := range v {
			args = append(args, sanitizeArg(fmt.Sprint(item)))
		}
	default:
		args = append(args, sanitizeArg(fmt.Sprint(v)))
	}
	return args
}

func sanitizeArg(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\\r\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// loadEventTags parses the embedded "Provider/EventID:Label" sidecar,
// grounded on EventLogsToTimeline.py's _parse_event_tags_file.
func loadEventTags() map[string]map[int]string {
	tags := map[string]map[int]string{}
	raw, err := plugindata.Read("EventLogsToTimeline", "eventmap.txt")
	if err != nil {
		return tags
	}

	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		eventParts := strings.SplitN(parts[0], "/", 2)
		if len(eventParts) != 2 {
			continue
		}
		provider := eventParts[0]
		id, err := strconv.Atoi(eventParts[1])
		if err != nil {
			continue
		}
		if tags[provider] == nil {
			tags[provider] = map[int]string{}
		}
		tags[provider][id] = parts[1]
	}
	return tags
}
