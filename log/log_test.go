package log

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"gotest.tools/v3/assert"
)

func TestLevels(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	buf := new(bytes.Buffer)
	t.Cleanup(SetOutput(buf))
	t.Cleanup(func() { SetLevel(WarnLevel) })

	Debugf("hidden %d", 1)
	Warnf("careful %s", "now")
	Error("broken")
	assert.Equal(t, buf.String(), "WARN careful now\nERROR broken\n")

	buf.Reset()
	SetLevel(DebugLevel)
	Debugf("exec: %v", []string{"go", "test"})
	assert.Equal(t, buf.String(), "exec: [go test]\n")

	buf.Reset()
	SetLevel(ErrorLevel)
	Warnf("hidden")
	Errorf("failed: %v", "reason")
	assert.Equal(t, buf.String(), "ERROR failed: reason\n")
}
