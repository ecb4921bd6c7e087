package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptext/internal/cli"
	"github.com/leapstack-labs/leaptext/internal/cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leaptext v"+cli.Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{"process", "preview", "batch", "tui", "ui", "config", "completion"} {
		assert.Contains(t, out, expected)
	}
	for _, flag := range []string{"--backend", "--timeout", "--output", "--log-format"} {
		assert.Contains(t, out, flag)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := run(t, "completion", shell)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}

	_, err := run(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestBackendFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("LEAPTEXT_BACKEND__URL", "http://from-env:5000")

	out, err := run(t, "config", "-o", "json", "--backend", "http://from-flag:5000")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	backendCfg := got["backend"].(map[string]any)
	assert.Equal(t, "http://from-flag:5000", backendCfg["url"])
	assert.Equal(t, "json", got["output"])
}

func TestInvalidOutputMode(t *testing.T) {
	_, err := run(t, "config", "-o", "yaml")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "output"), err.Error())
}
