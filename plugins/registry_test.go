package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findKey, walkRegistryKey and readableValue all take a
// *regparser.CM_KEY_NODE / *regparser.CM_KEY_VALUE populated only by
// parsing a real hive file; regparser exposes no constructor for
// them, so those helpers are exercised only by hand against real
// hives, not unit tests here. loadImportantKeys has no such
// dependency and is covered directly.
func TestLoadImportantKeysParsesEmbeddedSidecar(t *testing.T) {
	important := loadImportantKeys()
	require.NotEmpty(t, important)
	assert.True(t, important[`microsoft\windows\currentversion\run`])
}
