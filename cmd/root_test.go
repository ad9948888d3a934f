package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevels(t *testing.T) {
	orig := logLevel
	t.Cleanup(func() { logLevel = orig })

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "bogus"} {
		logLevel = level
		assert.NotNil(t, newLogger())
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["version"])
}
