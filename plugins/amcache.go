package plugins

import (
	"strconv"
	"strings"
	"time"

	"github.com/orc2timeline/orc2timeline/pluginapi"
	"www.velocidex.com/golang/regparser"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name:   "AmCacheToTimeline",
		Family: "registry",
		New:    func() pluginapi.Plugin { return &amCachePlugin{} },
	})
}

// amCachePlugin walks the four AmCache hive subtrees DFIR-ORC
// collects (installed application inventory, driver inventory, raw
// per-file execution records and the legacy Programs key), grounded on
// AmCacheToTimeline.py. Hive access reuses the shared helpers built
// for RegistryToTimeline.
type amCachePlugin struct{}

func (p *amCachePlugin) FileHeaderFilter() []byte { return []byte("regf") }

func (p *amCachePlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	reg, f, err := openHive(path)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := rootKeyNode(reg)
	if err != nil {
		return err
	}
	source := ctx.OriginalPath(baseName(path), originalPathHint)

	if key := findKey(root, "Root\\InventoryApplicationFile"); key != nil {
		for _, entry := range descendantKeys(key) {
			p.parseInventoryApplicationFile(ctx, entry, source)
		}
	}
	if key := findKey(root, "Root\\InventoryDriverBinary"); key != nil {
		for _, entry := range descendantKeys(key) {
			p.parseInventoryDriverBinary(ctx, entry, source)
		}
	}
	if key := findKey(root, "Root\\File"); key != nil {
		for _, diskGUID := range key.Subkeys() {
			for _, entry := range diskGUID.Subkeys() {
				p.parseFileKey(ctx, entry, source)
			}
		}
	}
	if key := findKey(root, "Root\\Programs"); key != nil {
		for _, entry := range key.Subkeys() {
			p.parseProgramsKey(ctx, entry, source)
		}
	}

	return nil
}

func (p *amCachePlugin) Finalize(ctx pluginapi.Context) error { return nil }

func (p *amCachePlugin) parseInventoryApplicationFile(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	ts := key.LastWriteTime().Time
	desc := []string{"KeyPath: " + key.Name()}
	if v := namedValue(key, "Name"); v != "" {
		desc = append(desc, "Name: "+v)
	}
	if v := namedValue(key, "LowerCaseLongPath"); v != "" {
		desc = append(desc, "ExecPath: "+v)
	}
	if v := namedValue(key, "FileId"); v != "" && len(v) > 4 {
		desc = append(desc, "SHA1: "+v[4:])
	}
	if v := namedValue(key, "Size"); v != "" {
		desc = append(desc, "FileSize: "+v)
	}
	ctx.Emit(pluginapi.Event{
		Timestamp:   &ts,
		SourceType:  "AmCache",
		Description: "Key last modified timestamp - " + strings.Join(desc, " - "),
		Source:      source,
	})

	if lnk := namedValue(key, "LinkDate"); lnk != "" {
		if t, err := time.Parse("01/02/2006 15:04:05", lnk); err == nil {
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Compilation timestamp - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
}

func (p *amCachePlugin) parseInventoryDriverBinary(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	ts := key.LastWriteTime().Time
	desc := []string{"KeyPath: " + key.Name()}
	if v := namedValue(key, "DriverName"); v != "" {
		desc = append(desc, "Name: "+v)
	}
	if v := namedValue(key, "LowerCaseLongPath"); v != "" {
		desc = append(desc, "DriverPath: "+v)
	}
	if v := namedValue(key, "DriverId"); v != "" && len(v) > 4 {
		desc = append(desc, "SHA1: "+v[4:])
	} else if strings.HasPrefix(key.Name(), "0000") && len(key.Name()) > 4 {
		desc = append(desc, "SHA1: "+key.Name()[4:])
	}
	if v := namedValue(key, "ImageSize"); v != "" {
		desc = append(desc, "FileSize: "+v)
	}
	ctx.Emit(pluginapi.Event{
		Timestamp:   &ts,
		SourceType:  "AmCache",
		Description: "Key last modified timestamp - " + strings.Join(desc, " - "),
		Source:      source,
	})

	if dlwt := namedValue(key, "DriverLastWriteTime"); dlwt != "" {
		if t, err := time.Parse("01/02/2006 15:04:05", dlwt); err == nil {
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Driver Last Write time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
}

func (p *amCachePlugin) parseFileKey(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	ts := key.LastWriteTime().Time
	desc := []string{"KeyPath: " + key.Name()}
	if v := namedValue(key, "15"); v != "" {
		desc = append(desc, "ExecPath: "+v)
	}
	if v := namedValue(key, "101"); v != "" && len(v) > 4 {
		desc = append(desc, "SHA1: "+v[4:])
	}
	if v := namedValue(key, "6"); v != "" {
		desc = append(desc, "FileSize: "+v)
	}
	ctx.Emit(pluginapi.Event{
		Timestamp:   &ts,
		SourceType:  "AmCache",
		Description: "Key last modified timestamp - " + strings.Join(desc, " - "),
		Source:      source,
	})

	if mod := namedValue(key, "17"); mod != "" {
		if ft, err := strconv.ParseInt(mod, 10, 64); err == nil {
			t := filetimeToUnix(ft)
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Modification time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
	if created := namedValue(key, "12"); created != "" {
		if ft, err := strconv.ParseInt(created, 10, 64); err == nil {
			t := filetimeToUnix(ft)
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Creation time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
	if compiled := namedValue(key, "f"); compiled != "" {
		if unixSecs, err := strconv.ParseInt(compiled, 10, 64); err == nil {
			t := time.Unix(unixSecs, 0).UTC()
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Compilation time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
}

func (p *amCachePlugin) parseProgramsKey(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	ts := key.LastWriteTime().Time
	desc := []string{"KeyPath: " + key.Name()}
	if v := namedValue(key, "0"); v != "" {
		desc = append(desc, "Name: "+v)
	}
	if v := namedValue(key, "1"); v != "" {
		desc = append(desc, "Version: "+v)
	}
	if v := namedValue(key, "2"); v != "" {
		desc = append(desc, "Publisher: "+v)
	}
	ctx.Emit(pluginapi.Event{
		Timestamp:   &ts,
		SourceType:  "AmCache",
		Description: "Key last modified timestamp - " + strings.Join(desc, " - "),
		Source:      source,
	})

	if install := namedValue(key, "a"); install != "" {
		if unixSecs, err := strconv.ParseInt(install, 10, 64); err == nil {
			t := time.Unix(unixSecs, 0).UTC()
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Installation time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
	if uninstall := namedValue(key, "b"); uninstall != "" && uninstall != "0" {
		if unixSecs, err := strconv.ParseInt(uninstall, 10, 64); err == nil {
			t := time.Unix(unixSecs, 0).UTC()
			ctx.Emit(pluginapi.Event{
				Timestamp:   &t,
				SourceType:  "AmCache",
				Description: "Uninstallation time - " + strings.Join(desc, " - "),
				Source:      source,
			})
		}
	}
}

// descendantKeys flattens every key below root, excluding root itself,
// mirroring dfwinreg's RecurseKeys().
func descendantKeys(root *regparser.CM_KEY_NODE) []*regparser.CM_KEY_NODE {
	var result []*regparser.CM_KEY_NODE
	for _, subkey := range root.Subkeys() {
		result = append(result, subkey)
		result = append(result, descendantKeys(subkey)...)
	}
	return result
}

func namedValue(key *regparser.CM_KEY_NODE, name string) string {
	for _, value := range key.Values() {
		if strings.EqualFold(value.ValueName(), name) {
			return readableValue(value)
		}
	}
	return ""
}
