package plugins

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/orc2timeline/orc2timeline/pluginapi"
	"www.velocidex.com/golang/regparser"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name:   "UserAssistToTimeline",
		Family: "registry",
		New:    func() pluginapi.Plugin { return &userAssistPlugin{} },
	})
}

var guidToPath = map[string]string{
	"{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}": `C:\Windows\System32`,
	"{6D809377-6AF0-444B-8957-A3773F02200E}": `C:\Program Files`,
	"{7C5A40EF-A0FB-4BFC-874A-C0F2E0B9FA8E}": `C:\Program Files (x86)`,
	"{F38BF404-1D43-42F2-9305-67DE0B28FC23}": `C:\Windows`,
	"{0139D44E-6AFE-49F2-8690-3DAFCAE6FFB8}": `C:\ProgramData\Microsoft\Windows \Start Menu\Programs`,
	"{9E3995AB-1F9C-4F13-B827-48B24B6C7174}": `%AppData%\Roaming\Microsoft\Internet Explorer\Quick Launch\User Pinned`,
	"{A77F5D77-2E2B-44C3-A6A2-ABA601054A51}": `%AppData%\Roaming\Microsoft\Windows \Start Menu\Programs`,
	"{D65231B0-B2F1-4857-A4CE-A8E7C6EA7D27}": `C:\Windows\SysWOW64`,
}

// userAssistPlugin decodes the ROT13-obfuscated UserAssist Count
// values recorded per user hive, grounded on UserAssistToTimeline.py.
type userAssistPlugin struct{}

func (p *userAssistPlugin) FileHeaderFilter() []byte { return []byte("regf") }

func (p *userAssistPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
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

	key := findKey(root, `Software\Microsoft\Windows\CurrentVersion\Explorer\UserAssist`)
	if key == nil {
		return nil
	}
	p.walk(ctx, key, source)
	return nil
}

func (p *userAssistPlugin) Finalize(ctx pluginapi.Context) error { return nil }

func (p *userAssistPlugin) walk(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	if strings.EqualFold(key.Name(), "Count") {
		p.parseCountValues(ctx, key, source)
	}
	for _, subkey := range key.Subkeys() {
		p.walk(ctx, subkey, source)
	}
}

func (p *userAssistPlugin) parseCountValues(ctx pluginapi.Context, key *regparser.CM_KEY_NODE, source string) {
	regTime := key.LastWriteTime().Time

	for _, value := range key.Values() {
		execPath := rot13(value.ValueName())
		if strings.HasPrefix(execPath, "UEME_CTL") {
			continue
		}
		if prefix := strings.SplitN(execPath, `\`, 2)[0]; guidToPath[prefix] != "" {
			execPath = strings.Replace(execPath, prefix, guidToPath[prefix], 1)
		}

		data := value.ValueData().Data
		switch len(data) {
		case 72:
			runCount := binary.LittleEndian.Uint32(data[4:8])
			focusTime := binary.LittleEndian.Uint32(data[12:16])
			lastRun := int64(binary.LittleEndian.Uint64(data[60:68]))
			t := filetimeToUnix(lastRun)
			ctx.Emit(pluginapi.Event{
				Timestamp:  &t,
				SourceType: "UserAssist",
				Description: fmt.Sprintf("ExecPath: %s - RunCount: %d - FocusTime: %d - RegistryTimestamp: %s",
					execPath, runCount, focusTime, regTime.Format("2006-01-02 15:04:05.000")),
				Source: source,
			})

		case 16:
			runCount := int32(binary.LittleEndian.Uint32(data[4:8])) - 5
			lastRun := int64(binary.LittleEndian.Uint64(data[8:16]))
			t := filetimeToUnix(lastRun)
			ctx.Emit(pluginapi.Event{
				Timestamp:  &t,
				SourceType: "UserAssist",
				Description: fmt.Sprintf("ExecPath: %s - RunCount: %d - RegistryTimestamp: %s",
					execPath, runCount, regTime.Format("2006-01-02 15:04:05.000")),
				Source: source,
			})
		}
	}
}
