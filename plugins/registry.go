package plugins

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/orc2timeline/orc2timeline/conf/plugin_data"
	"github.com/orc2timeline/orc2timeline/pluginapi"
	"www.velocidex.com/golang/regparser"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name:   "RegistryToTimeline",
		Family: "registry",
		New:    func() pluginapi.Plugin { return &registryPlugin{important: loadImportantKeys()} },
	})
}

// registryPlugin walks every key of a raw registry hive and emits one
// "key touched" event per key (timestamped by the key's own
// LastWriteTime), with a full value dump for keys named in the
// important-keys sidecar. Grounded on RegistryToTimeline.py; hive
// parsing itself is grounded on the teacher's
// accessors/raw_registry/raw_registry.go, which is the only place in
// the retrieved pack that exercises www.velocidex.com/golang/regparser.
type registryPlugin struct {
	important map[string]bool
}

func (p *registryPlugin) FileHeaderFilter() []byte { return []byte("regf") }

func (p *registryPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
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
	walkRegistryKey(root, "", func(keyPath string, key *regparser.CM_KEY_NODE) {
		ts := key.LastWriteTime().Time
		ctx.Emit(pluginapi.Event{
			Timestamp:   &ts,
			SourceType:  "Registry",
			Description: "Key: " + keyPath,
			Source:      source,
		})

		if !p.important[strings.ToLower(keyPath)] {
			return
		}
		for _, value := range key.Values() {
			name := value.ValueName()
			if name == "" {
				name = "@"
			}
			ctx.Emit(pluginapi.Event{
				Timestamp:  &ts,
				SourceType: "Registry",
				Description: fmt.Sprintf("Key: %s - Value: %s (%s) = %s",
					keyPath, name, value.TypeString(), readableValue(value)),
				Source: source,
			})
		}
	})

	return nil
}

func (p *registryPlugin) Finalize(ctx pluginapi.Context) error { return nil }

// walkRegistryKey recurses depth-first over every subkey, calling
// visit(fullPath, key) for each one including the root.
func walkRegistryKey(key *regparser.CM_KEY_NODE, parentPath string, visit func(string, *regparser.CM_KEY_NODE)) {
	path := parentPath
	if name := key.Name(); name != "" {
		if path == "" {
			path = name
		} else {
			path = path + "\\" + name
		}
	}
	visit(path, key)
	for _, subkey := range key.Subkeys() {
		walkRegistryKey(subkey, path, visit)
	}
}

// openHive opens a raw hive file for regparser, mirroring
// getRegHive's use of regparser.NewRegistry on a ReaderAt.
func openHive(path string) (*regparser.Registry, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := regparser.NewRegistry(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return reg, f, nil
}

// rootKeyNode resolves the root CM_KEY_NODE the same way
// RawRegFileSystemAccessor._readDirWithOSPath does for the top level.
func rootKeyNode(reg *regparser.Registry) (*regparser.CM_KEY_NODE, error) {
	rootCell := reg.Profile.HCELL(reg.Reader, 0x1000+int64(reg.BaseBlock.RootCell()))
	key := rootCell.KeyNode()
	if key == nil {
		return nil, fmt.Errorf("registry: no root key node")
	}
	return key, nil
}

// findKey walks key by a sequence of \-separated path components,
// matching names case-insensitively (registry paths are case
// insensitive).
func findKey(key *regparser.CM_KEY_NODE, path string) *regparser.CM_KEY_NODE {
	for _, part := range strings.Split(path, "\\") {
		if part == "" {
			continue
		}
		var next *regparser.CM_KEY_NODE
		for _, subkey := range key.Subkeys() {
			if strings.EqualFold(subkey.Name(), part) {
				next = subkey
				break
			}
		}
		if next == nil {
			return nil
		}
		key = next
	}
	return key
}

// readableValue renders a CM_KEY_VALUE's payload as a display string,
// mirroring _readable_reg_value's per-type formatting.
func readableValue(value *regparser.CM_KEY_VALUE) string {
	data := value.ValueData()
	switch data.Type {
	case regparser.REG_SZ, regparser.REG_EXPAND_SZ:
		return strings.TrimRight(data.String, "\x00")
	case regparser.REG_MULTI_SZ:
		return strings.Join(data.MultiSz, "; ")
	case regparser.REG_DWORD, regparser.REG_QWORD, regparser.REG_DWORD_BIG_ENDIAN:
		return strconv.FormatUint(data.Uint64, 10)
	default:
		return fmt.Sprintf("<%d bytes binary>", len(data.Data))
	}
}

// loadImportantKeys parses the embedded newline-separated list of key
// paths whose values get fully dumped, grounded on
// RegistryToTimeline.py's IMPORTANT_KEYS file.
func loadImportantKeys() map[string]bool {
	important := map[string]bool{}
	raw, err := plugindata.Read("RegistryToTimeline", "important-keys.txt")
	if err != nil {
		return important
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		important[strings.ToLower(line)] = true
	}
	return important
}
