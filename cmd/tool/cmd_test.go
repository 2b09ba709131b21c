package tool

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestRun_InvalidCommand(t *testing.T) {
	err := Run("gotestfail tool", nil)
	assert.Error(t, err, "a command is required")

	err = Run("gotestfail tool", []string{"slowest"})
	assert.Error(t, err, "invalid command: gotestfail tool slowest")
}

func TestRun_Help(t *testing.T) {
	assert.NilError(t, Run("gotestfail tool", []string{"--help"}))
	assert.NilError(t, Run("gotestfail tool", []string{"parse", "--help"}))
}
