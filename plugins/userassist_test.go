package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuidToPathTableCoversKnownFolders(t *testing.T) {
	assert.Equal(t, `C:\Windows\System32`, guidToPath["{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}"])
	assert.Equal(t, `C:\Program Files`, guidToPath["{6D809377-6AF0-444B-8957-A3773F02200E}"])
	assert.Empty(t, guidToPath["{00000000-0000-0000-0000-000000000000}"])
}

func TestRot13DecodesUserAssistValueName(t *testing.T) {
	obfuscated := rot13(`{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}\cmd.exe`)
	decoded := rot13(obfuscated)
	assert.Equal(t, `{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}\cmd.exe`, decoded)
}
