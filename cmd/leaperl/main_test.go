// Package main provides tests for the leaperl CLI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/cli"
	"github.com/leapstack-labs/leaperl/internal/cli/testutil"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leaperl")
}

func TestHelpCommand(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{"parse", "lower", "defmap", "classify", "context", "includes", "doctor", "watch", "completion"} {
		assert.Contains(t, out, expected, "help output should list %q", expected)
	}
}

func TestParseCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out, _, err := run(t,
		"parse", filepath.Join(root, "src", "shop.erl"),
		"--project-root", root,
		"--output", "text")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("src", "shop.erl")+": ")
	assert.Contains(t, out, "0 errors")
}

func TestLowerCommandJSON(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out, _, err := run(t,
		"lower", filepath.Join(root, "src", "cart.erl"),
		"--project-root", root,
		"-o", "json")
	require.NoError(t, err)

	var got struct {
		Files []struct {
			File  string
			Forms []struct{ Kind, Text string }
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Files, 1)
	require.Len(t, got.Files[0].Forms, 1)
	assert.Contains(t, got.Files[0].Forms[0].Text, "checkout(")
}

func TestDefMapWithLibDir(t *testing.T) {
	root := testutil.SetupTestProject(t, `
//- app/src/app.erl
-module(app).
-include_lib("util/include/util.hrl").
go() -> ?UTIL.
//- deps/util-1.2.0/include/util.hrl
-define(UTIL, util).
`)

	out, _, err := run(t,
		"defmap", filepath.Join(root, "app", "src", "app.erl"),
		"--project-root", filepath.Join(root, "app"),
		"--lib-dir", filepath.Join(root, "deps"),
		"-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "module app")
	assert.Contains(t, out, "?UTIL")
	assert.Contains(t, out, "util.hrl")
}

func TestConfigFile(t *testing.T) {
	root := testutil.SetupTestProject(t, `
//- src/a.erl
-module(a).
-include("defs.hrl").
f() -> ?X.
//- hdrs/defs.hrl
-define(X, 1).
//- leaperl.yaml
include_dirs:
  - hdrs
output: json
`)
	a := filepath.Join(root, "src", "a.erl")

	out, _, err := run(t, "classify", a, "--offset", fmt.Sprint(strings.Index(readFile(t, a), "?X")+1),
		"--project-root", root)
	require.NoError(t, err)

	var got struct {
		Found   bool
		Targets []struct{ Kind, File string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.True(t, got.Found)
	require.Len(t, got.Targets, 1)
	assert.Equal(t, "define", got.Targets[0].Kind)
	assert.Equal(t, filepath.Join("hdrs", "defs.hrl"), got.Targets[0].File)
}

func TestDebugLogging(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	_, errOut, err := run(t,
		"context", filepath.Join(root, "src", "cart.erl"), "--offset", "0",
		"--project-root", root,
		"--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"project loaded"`)
}

func TestInvalidConfig(t *testing.T) {
	_, _, err := run(t, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCompletionCommand(t *testing.T) {
	shells := []string{"bash", "zsh", "fish", "powershell"}

	for _, shell := range shells {
		t.Run(shell, func(t *testing.T) {
			out, _, err := run(t, "completion", shell)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := run(t, "unknown-command")
	assert.Error(t, err, "unknown command should return an error")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
